package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdcio/clixon-engine/internal/errs"
)

func TestLock_RejectsSecondSessionWithInUse(t *testing.T) {
	r := NewRegistry()
	a := r.Open(false)
	b := r.Open(false)

	require.Nil(t, r.Lock(a.ID, "candidate"))

	err := r.Lock(b.ID, "candidate")
	require.NotNil(t, err)
	require.Equal(t, errs.TagInUse, err.Tag)
}

func TestLock_SameSessionRelockIsNoOp(t *testing.T) {
	r := NewRegistry()
	a := r.Open(false)
	require.Nil(t, r.Lock(a.ID, "candidate"))
	require.Nil(t, r.Lock(a.ID, "candidate"))
}

func TestUnlock_ByNonHolderIsAccessDenied(t *testing.T) {
	r := NewRegistry()
	a := r.Open(false)
	b := r.Open(false)
	require.Nil(t, r.Lock(a.ID, "candidate"))

	err := r.Unlock(b.ID, "candidate")
	require.NotNil(t, err)
	require.Equal(t, errs.TagAccessDenied, err.Tag)
}

func TestClose_ReleasesAllLocksHeldBySession(t *testing.T) {
	r := NewRegistry()
	a := r.Open(false)
	require.Nil(t, r.Lock(a.ID, "candidate"))
	require.Nil(t, r.Lock(a.ID, "running"))

	r.Close(a.ID)

	holder, held := r.LockHolder("candidate")
	require.False(t, held)
	require.Empty(t, holder)

	b := r.Open(false)
	require.Nil(t, r.Lock(b.ID, "candidate"), "lock must be free after the holding session closed")
}

func TestKill_RequiresPrivilegedSession(t *testing.T) {
	r := NewRegistry()
	unprivileged := r.Open(false)
	target := r.Open(false)
	require.Nil(t, r.Lock(target.ID, "candidate"))

	err := r.Kill(unprivileged.ID, target.ID)
	require.NotNil(t, err)
	require.Equal(t, errs.TagAccessDenied, err.Tag)

	_, held := r.LockHolder("candidate")
	require.True(t, held, "a rejected kill must not release the target's locks")
}

func TestKill_PrivilegedSessionReleasesTargetLocks(t *testing.T) {
	r := NewRegistry()
	admin := r.Open(true)
	target := r.Open(false)
	require.Nil(t, r.Lock(target.ID, "candidate"))

	require.Nil(t, r.Kill(admin.ID, target.ID))

	_, held := r.LockHolder("candidate")
	require.False(t, held)
	require.Nil(t, r.Get(target.ID))
}

func TestKill_InvokesRegisteredCloser(t *testing.T) {
	r := NewRegistry()
	admin := r.Open(true)
	target := r.Open(false)

	closed := false
	r.SetCloser(target.ID, func() { closed = true })

	require.Nil(t, r.Kill(admin.ID, target.ID))
	require.True(t, closed, "kill-session must tear down the target's connection")
}

func TestIDs_ReflectsOpenSessions(t *testing.T) {
	r := NewRegistry()
	a := r.Open(false)
	b := r.Open(false)

	require.ElementsMatch(t, []string{a.ID, b.ID}, r.IDs())

	r.Close(a.ID)
	require.ElementsMatch(t, []string{b.ID}, r.IDs())
}

func TestRequireUnlockedOrOwned(t *testing.T) {
	r := NewRegistry()
	a := r.Open(false)

	err := r.RequireUnlockedOrOwned(a.ID, "candidate")
	require.NotNil(t, err, "edit-config without a held lock must fail when autolock is off")

	require.Nil(t, r.Lock(a.ID, "candidate"))
	require.Nil(t, r.RequireUnlockedOrOwned(a.ID, "candidate"))
}
