package rpcsock

import (
	"context"
	"net"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"

	"github.com/sdcio/clixon-engine/internal/errs"
	"github.com/sdcio/clixon-engine/internal/plugin"
	"github.com/sdcio/clixon-engine/internal/session"
	"github.com/sdcio/clixon-engine/internal/txn"
	"github.com/sdcio/clixon-engine/internal/validate"
	"github.com/sdcio/clixon-engine/internal/xmltree"
)

func newTestDispatcher(t *testing.T, autolock Autolock) (*Dispatcher, *session.Session) {
	store := xmltree.NewStore()
	store.Create("running")
	store.Create("candidate")
	reg := plugin.NewRegistry()
	e := txn.New(store, reg, &validate.Schema{Leaves: map[string]*validate.LeafConstraint{}}, nil)
	sessions := session.NewRegistry()
	sess := sessions.Open(false)
	d := &Dispatcher{Store: store, Engine: e, Sessions: sessions, Autolock: autolock}
	return d, sess
}

func rpcElement(opTag string, attrs map[string]string, child *etree.Element) *etree.Element {
	rpc := etree.NewElement("rpc")
	op := rpc.CreateElement(opTag)
	for k, v := range attrs {
		op.CreateAttr(k, v)
	}
	if child != nil {
		op.AddChild(child)
	}
	return rpc
}

func TestDispatch_EditConfigRequiresLockWhenAutolockOff(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOff)

	cfg := etree.NewElement("config")
	cfg.CreateElement("hostname").SetText("r1")
	req := rpcElement("edit-config", map[string]string{"target": "candidate"}, cfg)

	reply := d.Dispatch(context.Background(), sess, req)
	errEl := reply.SelectElement("rpc-error")
	require.NotNil(t, errEl)
	require.Equal(t, "in-use", errEl.SelectElement("error-tag").Text())
}

func TestDispatch_EditConfigSucceedsWithLockHeld(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOff)
	require.Nil(t, d.Sessions.Lock(sess.ID, "candidate"))

	cfg := etree.NewElement("config")
	cfg.CreateElement("hostname").SetText("r1")
	req := rpcElement("edit-config", map[string]string{"target": "candidate"}, cfg)

	reply := d.Dispatch(context.Background(), sess, req)
	require.NotNil(t, reply.SelectElement("ok"))

	got, _ := d.Store.Get("candidate", "hostname")
	require.NotEmpty(t, got.Children(got.Root()))
}

func TestDispatch_EditConfigAutolockAcquiresAndReleases(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)

	cfg := etree.NewElement("config")
	cfg.CreateElement("hostname").SetText("r1")
	req := rpcElement("edit-config", map[string]string{"target": "candidate"}, cfg)

	reply := d.Dispatch(context.Background(), sess, req)
	require.NotNil(t, reply.SelectElement("ok"))

	_, held := d.Sessions.LockHolder("candidate")
	require.False(t, held, "autolock must release the lock after the edit completes")
}

func TestDispatch_CommitAppliesCandidateToRunning(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)

	cfg := etree.NewElement("config")
	cfg.CreateElement("hostname").SetText("r1")
	editReq := rpcElement("edit-config", map[string]string{"target": "candidate"}, cfg)
	require.NotNil(t, d.Dispatch(context.Background(), sess, editReq).SelectElement("ok"))

	commitReq := rpcElement("commit", nil, nil)
	reply := d.Dispatch(context.Background(), sess, commitReq)
	require.NotNil(t, reply.SelectElement("ok"))

	running, _ := d.Store.Get("running", "hostname")
	require.NotEmpty(t, running.Children(running.Root()))
}

func TestDispatch_GetConfigReturnsData(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)
	edit := xmltree.New()
	edit.NewChild(edit.Root(), "", "hostname")
	d.Store.Put("running", xmltree.OpMerge, edit, "tester")

	req := rpcElement("get-config", map[string]string{"source": "running"}, nil)
	reply := d.Dispatch(context.Background(), sess, req)

	data := reply.SelectElement("data")
	require.NotNil(t, data)
	require.NotNil(t, data.SelectElement("hostname"))
}

func TestDispatch_EditConfigMultiEntryListMatchedByKeyThroughRealPipeline(t *testing.T) {
	store := xmltree.NewStore()
	store.Create("running")
	store.Create("candidate")
	reg := plugin.NewRegistry()
	schema := &validate.Schema{
		Leaves: map[string]*validate.LeafConstraint{},
		Lists: map[string]*validate.ListConstraint{
			"interfaces.interface": {Keys: []string{"name"}},
		},
	}
	e := txn.New(store, reg, schema, nil)
	sessions := session.NewRegistry()
	sess := sessions.Open(false)
	d := &Dispatcher{Store: store, Engine: e, Sessions: sessions, Autolock: AutolockOff}
	require.Nil(t, d.Sessions.Lock(sess.ID, "candidate"))

	first := etree.NewElement("config")
	ifs := first.CreateElement("interfaces")
	eth0 := ifs.CreateElement("interface")
	eth0.CreateElement("name").SetText("eth0")
	eth1 := ifs.CreateElement("interface")
	eth1.CreateElement("name").SetText("eth1")
	firstReq := rpcElement("edit-config", map[string]string{"target": "candidate"}, first)
	require.NotNil(t, d.Dispatch(context.Background(), sess, firstReq).SelectElement("ok"))

	second := etree.NewElement("config")
	patchIfs := second.CreateElement("interfaces")
	patchEth1 := patchIfs.CreateElement("interface")
	patchEth1.CreateElement("name").SetText("eth1")
	patchEth1.CreateElement("mtu").SetText("9000")
	secondReq := rpcElement("edit-config", map[string]string{"target": "candidate"}, second)
	require.NotNil(t, d.Dispatch(context.Background(), sess, secondReq).SelectElement("ok"))

	candidate, _ := d.Store.Get("candidate", "")
	candidateIfs := candidate.FindChildByQName(candidate.Root(), "", "interfaces")
	require.Len(t, candidate.Children(candidateIfs), 2,
		"a second edit-config naming eth1 by key must merge into the existing eth1 entry, not collapse or duplicate entries")

	for _, entry := range candidate.Children(candidateIfs) {
		name := candidate.Node(candidate.FindChildByQName(entry, "", "name")).Body
		if name == "eth1" {
			mtu := candidate.FindChildByQName(entry, "", "mtu")
			require.NotZero(t, mtu)
			require.Equal(t, "9000", candidate.Node(mtu).Body)
		}
	}
}

func TestDispatch_KillSessionDeniedForUnprivileged(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)
	other := d.Sessions.Open(false)

	req := rpcElement("kill-session", map[string]string{"session-id": other.ID}, nil)
	reply := d.Dispatch(context.Background(), sess, req)

	errEl := reply.SelectElement("rpc-error")
	require.NotNil(t, errEl)
	require.Equal(t, string(errs.TagAccessDenied), errEl.SelectElement("error-tag").Text())
}

func TestDispatch_DebugChangesLogLevel(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)
	req := rpcElement("debug", map[string]string{"level": "2"}, nil)
	reply := d.Dispatch(context.Background(), sess, req)
	require.NotNil(t, reply.SelectElement("ok"))
}

func TestDispatch_DebugRejectsNonIntegerLevel(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)
	req := rpcElement("debug", map[string]string{"level": "loud"}, nil)
	reply := d.Dispatch(context.Background(), sess, req)

	errEl := reply.SelectElement("rpc-error")
	require.NotNil(t, errEl)
	require.Equal(t, "invalid-value", errEl.SelectElement("error-tag").Text())
}

func TestDispatch_UnauthenticatedRequestIsDenied(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)
	d.Registry = plugin.NewRegistry()
	d.Registry.Register(&plugin.Plugin{Auth: func(ctx context.Context, request any) (bool, error) {
		return false, nil
	}})

	req := rpcElement("get-config", map[string]string{"source": "running"}, nil)
	reply := d.Dispatch(context.Background(), sess, req)

	errEl := reply.SelectElement("rpc-error")
	require.NotNil(t, errEl)
	require.Equal(t, string(errs.TagAccessDenied), errEl.SelectElement("error-tag").Text())
}

func TestDispatch_UnknownOperation(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)
	req := rpcElement("frobnicate", nil, nil)
	reply := d.Dispatch(context.Background(), sess, req)

	errEl := reply.SelectElement("rpc-error")
	require.NotNil(t, errEl)
	require.Equal(t, "operation-not-supported", errEl.SelectElement("error-tag").Text())
}

func TestHandler_RunsInterceptorsAroundDispatch(t *testing.T) {
	d, sess := newTestDispatcher(t, AutolockOn)
	var order []string
	first := func(ctx context.Context, s *session.Session, req *etree.Element, next DispatchFunc) *etree.Element {
		order = append(order, "first-before")
		r := next(ctx, s, req)
		order = append(order, "first-after")
		return r
	}
	second := func(ctx context.Context, s *session.Session, req *etree.Element, next DispatchFunc) *etree.Element {
		order = append(order, "second-before")
		r := next(ctx, s, req)
		order = append(order, "second-after")
		return r
	}

	handler := d.Handler(first, second)
	reply := handler(context.Background(), sess, rpcElement("discard-changes", nil, nil))

	require.NotNil(t, reply.SelectElement("ok"))
	require.Equal(t, []string{"first-before", "second-before", "second-after", "first-after"}, order)
}

func TestFramer_LengthPrefixedRoundTrip(t *testing.T) {
	pr, pw := net.Pipe()
	go func() {
		w := NewFramer(pw, FrameLengthPrefixed)
		_ = w.WriteMessage([]byte("<rpc><get-config/></rpc>"))
	}()
	r := NewFramer(pr, FrameLengthPrefixed)
	msg, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "<rpc><get-config/></rpc>", string(msg))
}

func TestFramer_LegacyEOMRoundTrip(t *testing.T) {
	pr, pw := net.Pipe()
	go func() {
		w := NewFramer(pw, FrameLegacyEOM)
		_ = w.WriteMessage([]byte("<rpc><commit/></rpc>"))
	}()
	r := NewFramer(pr, FrameLegacyEOM)
	msg, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "<rpc><commit/></rpc>", string(msg))
}
