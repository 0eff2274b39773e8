// Package plugin implements the application callback registry (spec
// §4.D): an ordered sequence of capability records, each carrying the
// subset of phase hooks it implements. Forward phases iterate the
// sequence in registration order, except commit-done, whose hooks run
// concurrently in no defined order; revert iterates it in reverse, so
// that each plugin sees resources torn down after its dependents.
//
// Grounded on pkg/datastore/transaction.go's
// RollbackInterface/TransactionManager pattern, generalized from a
// single intent-priority commit model to per-plugin ordered phase
// dispatch.
package plugin

import (
	"context"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/sdcio/clixon-engine/internal/errs"
	"github.com/sdcio/clixon-engine/internal/xmltree"
	"golang.org/x/sync/errgroup"
)

// defaultCommitTimeoutSeconds is the soft per-callback timeout spec §5
// falls back to when a Plugin doesn't set TimeoutSeconds.
var defaultCommitTimeoutSeconds = pointer.ToInt64(60)

// Diff is the change set a callback observes: the proposed candidate
// and the target's content before the transaction began (spec §3's
// Transaction tuple). It mirrors internal/txn.Diff's fields exactly so
// txn.Transaction.Diff() can be returned here without a conversion.
type Diff struct {
	Empty     bool
	Candidate *xmltree.Tree
	Original  *xmltree.Tree
}

// Transaction is the subset of the transaction engine's state a plugin
// callback observes: bookkeeping (id, phase) plus the candidate/original
// trees and their diff, since pre-validate/validate/commit callbacks
// (spec §4.D) act on the data, not just the bookkeeping. It is a narrow
// interface so that internal/plugin has no dependency on internal/txn
// (txn depends on plugin, not the other way around); internal/txn's
// concrete *txn.Transaction implements it by returning its own Diff()
// field-for-field.
type Transaction interface {
	ID() string
	Phase() string
	Diff() Diff
}

// Target is the lifecycle hook a reset callback receives: the name of
// the datastore being reset.
type Target string

// Plugin is the set of optional callback hooks an application may
// implement. Every hook is optional — a Plugin only needs to set the
// fields it cares about.
type Plugin struct {
	Name string

	// TimeoutSeconds overrides the soft timeout (spec §5) applied to this
	// plugin's Commit hook. nil means defaultCommitTimeoutSeconds.
	TimeoutSeconds *int64

	Reset       func(ctx context.Context, target Target) error
	PreValidate func(ctx context.Context, txn Transaction) errs.List
	Validate    func(ctx context.Context, txn Transaction) errs.List
	Commit      func(ctx context.Context, txn Transaction) error
	CommitDone  func(ctx context.Context, txn Transaction) error
	Revert      func(ctx context.Context, txn Transaction, reason string) error

	// Auth authenticates request (an *etree.Element <rpc> for rpcsock, an
	// *http.Request for restconf), called by RunAuth before any other
	// hook runs for the request (spec §4.D auth(request) hook, §1
	// Non-goals: "authentication delegated to a pluggable authenticator
	// that returns authenticated/denied").
	Auth func(ctx context.Context, request any) (authenticated bool, err error)
}

// Registry holds plugins in registration order.
type Registry struct {
	plugins []*Plugin
}

// NewRegistry returns an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends p to the registry. Order matters: it is the forward
// dispatch order and the reverse revert order.
func (r *Registry) Register(p *Plugin) {
	r.plugins = append(r.plugins, p)
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []*Plugin {
	return r.plugins
}

// RunAuth invokes every plugin's Auth hook, in registration order,
// against request, stopping at the first denial or error. If no plugin
// registers an Auth hook, the request is treated as authenticated — no
// authenticator is wired, matching spec §1's Non-goal that authentication
// itself (as opposed to the hook that would invoke one) is out of scope.
func (r *Registry) RunAuth(ctx context.Context, request any) (bool, error) {
	for _, p := range r.plugins {
		if p.Auth == nil {
			continue
		}
		authenticated, err := p.Auth(ctx, request)
		if err != nil {
			return false, err
		}
		if !authenticated {
			return false, nil
		}
	}
	return true, nil
}

// RunReset invokes every plugin's Reset hook, in registration order,
// on the given target. The first error aborts the sequence.
func (r *Registry) RunReset(ctx context.Context, target Target) error {
	for _, p := range r.plugins {
		if p.Reset == nil {
			continue
		}
		if err := p.Reset(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

// RunPreValidate invokes every plugin's PreValidate hook in registration
// order and returns the records of the first plugin that reports an
// error; later plugins are not run (spec §4.E step 2: "any error
// terminates with outcome invalid").
func (r *Registry) RunPreValidate(ctx context.Context, txn Transaction) errs.List {
	for _, p := range r.plugins {
		if p.PreValidate == nil {
			continue
		}
		if out := p.PreValidate(ctx, txn); out.HasErrors() {
			return out
		}
	}
	return nil
}

// RunValidate invokes every plugin's Validate hook in registration
// order, stopping at the first plugin that reports errors.
func (r *Registry) RunValidate(ctx context.Context, txn Transaction) errs.List {
	for _, p := range r.plugins {
		if p.Validate == nil {
			continue
		}
		if out := p.Validate(ctx, txn); out.HasErrors() {
			return out
		}
	}
	return nil
}

// CommitOutcome is the result of running the commit phase across all
// registered plugins: either every plugin committed, or the index of
// the first plugin that failed, so the caller can revert exactly the
// plugins that already succeeded (spec §4.E step 5, §8 invariant 5).
type CommitOutcome struct {
	FailedAt int // -1 if all plugins committed successfully
	Err      error
}

// RunCommit invokes every plugin's Commit hook in registration order. It
// stops at the first failure and reports how many plugins already
// succeeded, so the caller can revert exactly those plugins in reverse
// order. Each hook runs under its own soft timeout (spec §5); a timed
// out hook is treated as a commit failure.
func (r *Registry) RunCommit(ctx context.Context, txn Transaction) CommitOutcome {
	for i, p := range r.plugins {
		if p.Commit == nil {
			continue
		}
		if err := runWithTimeout(ctx, p.TimeoutSeconds, func(ctx context.Context) error {
			return p.Commit(ctx, txn)
		}); err != nil {
			return CommitOutcome{FailedAt: i, Err: err}
		}
	}
	return CommitOutcome{FailedAt: -1}
}

// runWithTimeout bounds fn by seconds (or defaultCommitTimeoutSeconds
// when seconds is nil), returning ctx.Err() if fn doesn't return in time.
func runWithTimeout(ctx context.Context, seconds *int64, fn func(context.Context) error) error {
	limit := pointer.GetInt64(seconds)
	if seconds == nil {
		limit = pointer.GetInt64(defaultCommitTimeoutSeconds)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(limit)*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunRevert invokes Revert on every plugin with index < upTo, in
// reverse registration order — "each plugin sees resources torn down
// after its dependents" (spec §4.D), and satisfies §8 invariant 5:
// every previously-succeeded commit callback's revert is invoked
// exactly once, in reverse registration order.
func (r *Registry) RunRevert(ctx context.Context, txn Transaction, upTo int, reason string) error {
	var firstErr error
	for i := upTo - 1; i >= 0; i-- {
		p := r.plugins[i]
		if p.Revert == nil {
			continue
		}
		if err := p.Revert(ctx, txn, reason); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RunCommitDone invokes every plugin's CommitDone hook, best-effort and
// concurrently: a failure is reported to the caller for logging but
// never reverts the already-committed transaction (spec §4.E step 6).
// Each hook runs in its own goroutine (the errgroup has no concurrency
// limit), and every failure — not just the first — is collected for
// the caller to log.
func (r *Registry) RunCommitDone(ctx context.Context, txn Transaction) []error {
	var (
		g         errgroup.Group
		mu        sync.Mutex
		failures  []error
	)
	for _, p := range r.plugins {
		p := p
		if p.CommitDone == nil {
			continue
		}
		g.Go(func() error {
			if err := p.CommitDone(ctx, txn); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return failures
}
