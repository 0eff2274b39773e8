// Package txn implements the transaction engine (spec §4.E): the
// central algorithm that drives a candidate tree through
// validate/commit/revert phases against a target datastore, with the
// process-wide serialization lock and failsafe-on-fatal-revert escape
// hatch described in spec §5 and §4.E.
//
// Grounded on pkg/datastore/transaction.go's TransactionManager
// (single mutex-held transaction slot, ErrTransactionOngoing / "in-use"
// rejection), generalized from its intent-priority commit model to a
// candidate-vs-original diff model.
package txn

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sdcio/clixon-engine/internal/errs"
	"github.com/sdcio/clixon-engine/internal/plugin"
	"github.com/sdcio/clixon-engine/internal/validate"
	"github.com/sdcio/clixon-engine/internal/xmltree"
)

// Phase is one of the transaction lifecycle phases (spec §3).
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseValidate   Phase = "validate"
	PhaseCommit     Phase = "commit"
	PhaseCommitDone Phase = "commit-done"
	PhaseRevert     Phase = "revert"
	PhaseEnd        Phase = "end"
)

// Outcome is the terminal result of a commit attempt (spec §3).
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeOK      Outcome = "ok"
	OutcomeInvalid Outcome = "invalid"
	OutcomeFailed  Outcome = "failed"
)

// ErrInUse is returned when a commit is attempted while the
// process-wide transaction lock is already held (spec §5, §8 invariant 6).
var ErrInUse = errs.New(errs.TypeApplication, errs.TagInUse, "", "a commit is already in progress")

// Diff is the change set a transaction carries: the whole candidate and
// original trees, and whether they serialize identically (spec §4.E
// step 1). No per-node added/removed/changed sets are computed.
// Validate-phase callbacks see the live candidate; at the start of the
// commit phase both trees are replaced with copies, so commit-phase
// callbacks never observe or change the candidate that is installed
// into the target (§9 Open Question (a)). It is a type alias for
// plugin.Diff so *Transaction satisfies plugin.Transaction without a
// conversion step.
type Diff = plugin.Diff

// Transaction is the single in-flight commit attempt (spec §3). It
// implements plugin.Transaction so application callbacks can observe
// phase, id, and the candidate/original/diff data without
// internal/plugin depending on internal/txn.
type Transaction struct {
	id      string
	source  string
	target  string
	phase   Phase
	outcome Outcome
	diff    Diff
}

func (t *Transaction) ID() string       { return t.id }
func (t *Transaction) Phase() string    { return string(t.phase) }
func (t *Transaction) Outcome() Outcome { return t.outcome }
func (t *Transaction) Diff() Diff       { return t.diff }

// Engine drives transactions against a xmltree.Store, fanning out to a
// plugin.Registry at each phase. It is the only component that may
// mutate the `running` datastore's content (spec §3 Ownership).
type Engine struct {
	store    *xmltree.Store
	registry *plugin.Registry
	schema   *validate.Schema
	persist  Persister

	mu      sync.Mutex // the process-wide transaction lock, spec §5
	current *Transaction

	// FailsafeNeeded mirrors the on-disk marker set via e.persist when a
	// revert itself fails; kept in-memory too so InUse-style callers
	// within the same process don't need to touch disk to observe it.
	// The durable source of truth is the marker file persist.Store
	// writes (spec §4.E edge case policy: "a revert that itself fails
	// is fatal ... marks the process for failsafe recovery on next
	// start") — FailsafeNeeded alone cannot survive a restart.
	FailsafeNeeded bool
}

// Persister is the narrow persistence interface the engine needs:
// storing a committed tree for datastores that are persistent, and
// marking the process for failsafe recovery on next start when a
// revert fails. Matches internal/persist.Store's Store/MarkFailsafe
// methods.
type Persister interface {
	Store(name string, t *xmltree.Tree) error
	MarkFailsafe() error
}

// PersistentDatastores names the datastores whose successful commits are
// written to disk (spec §4.E step 6: "if the target is a persistent
// datastore"). candidate/tmp are ephemeral working copies and are never
// persisted directly.
var PersistentDatastores = map[string]bool{
	"running":  true,
	"startup":  true,
	"failsafe": true,
}

// New builds a transaction engine over store, dispatching application
// callbacks through registry and structural validation through schema.
func New(store *xmltree.Store, registry *plugin.Registry, schema *validate.Schema, persister Persister) *Engine {
	return &Engine{store: store, registry: registry, schema: schema, persist: persister}
}

// Commit drives a full transaction: source's tree is proposed as the new
// content of target, subject to pre-validate, structural validate,
// application validate, commit, and commit-done (spec §4.E). If
// candidate is non-nil it is used as the proposed tree directly instead
// of reading source from the store.
func (e *Engine) Commit(ctx context.Context, source, target string, candidate *xmltree.Tree) (Outcome, errs.List) {
	if !e.mu.TryLock() {
		return OutcomeInvalid, errs.List{ErrInUse}
	}
	defer e.mu.Unlock()

	txnID := uuid.NewString()
	t := &Transaction{id: txnID, source: source, target: target, phase: PhaseInit}
	e.current = t
	defer func() { e.current = nil }()

	log.WithFields(log.Fields{"txn": txnID, "source": source, "target": target}).Info("transaction init")

	original := e.store.Snapshot(target)
	if original == nil {
		original = xmltree.New()
	}

	cand := candidate
	if cand == nil {
		cand = e.store.Snapshot(source)
		if cand == nil {
			cand = xmltree.New()
		}
	}

	t.diff = Diff{Candidate: cand, Original: original}
	if treeEqual(cand, original) {
		t.diff.Empty = true
		t.outcome = OutcomeOK
		t.phase = PhaseEnd
		return OutcomeOK, nil
	}

	t.phase = PhaseValidate
	if out := e.registry.RunPreValidate(ctx, t); out.HasErrors() {
		t.outcome = OutcomeInvalid
		return OutcomeInvalid, out
	}

	if out := validate.Validate(cand, e.schema); out.HasErrors() {
		t.outcome = OutcomeInvalid
		return OutcomeInvalid, out
	}

	if out := e.registry.RunValidate(ctx, t); out.HasErrors() {
		t.outcome = OutcomeInvalid
		return OutcomeInvalid, out
	}

	t.phase = PhaseCommit
	t.diff = Diff{Candidate: cand.Copy(), Original: original.Copy()}
	result := e.registry.RunCommit(ctx, t)
	if result.FailedAt >= 0 {
		t.phase = PhaseRevert
		revertErr := e.registry.RunRevert(ctx, t, result.FailedAt, "abort")
		if revertErr != nil {
			e.FailsafeNeeded = true
			if e.persist != nil {
				if err := e.persist.MarkFailsafe(); err != nil {
					log.WithFields(log.Fields{"txn": txnID}).Errorf("failed to persist failsafe marker: %v", err)
				}
			}
			log.WithFields(log.Fields{"txn": txnID}).Error("revert failed; failsafe recovery required on next start")
		}
		t.outcome = OutcomeFailed
		return OutcomeFailed, errs.List{errs.New(errs.TypeApplication, errs.TagOperationFailed, "", result.Err.Error())}
	}

	e.store.Replace(target, cand)

	t.phase = PhaseCommitDone
	for _, failure := range e.registry.RunCommitDone(ctx, t) {
		log.WithFields(log.Fields{"txn": txnID}).Warnf("commit-done callback failed (best-effort): %v", failure)
	}

	if PersistentDatastores[target] && e.persist != nil {
		if err := e.persist.Store(target, cand); err != nil {
			log.WithFields(log.Fields{"txn": txnID}).Errorf("failed to persist %s: %v", target, err)
		}
	}

	t.phase = PhaseEnd
	t.outcome = OutcomeOK
	return OutcomeOK, nil
}

// ValidateOnly runs structural and application validation against cand
// without committing it anywhere (spec §4.F's startup_validate step:
// extra-xml is validated before being merged into running, but the
// merge itself runs no commit callbacks).
func (e *Engine) ValidateOnly(ctx context.Context, cand *xmltree.Tree) errs.List {
	t := &Transaction{id: uuid.NewString(), phase: PhaseValidate, diff: Diff{Candidate: cand}}
	if out := e.registry.RunPreValidate(ctx, t); out.HasErrors() {
		return out
	}
	if out := validate.Validate(cand, e.schema); out.HasErrors() {
		return out
	}
	return e.registry.RunValidate(ctx, t)
}

// MergeNoCommit merges edit into target's tree in place without running
// any plugin commit/commit-done callbacks (spec §9 Open Question (b),
// preserved verbatim: "the extra-xml file is merged into running
// without running commit callbacks ... deliberate in the source but
// means application state can diverge from running"). It is only
// reachable from the startup orchestrator's extra-xml step — never from
// the RPC dispatcher.
func (e *Engine) MergeNoCommit(target string, edit *xmltree.Tree) errs.List {
	log.WithField("target", target).Warn("merging extra-xml into running without commit callbacks (application state may diverge)")
	return e.store.Put(target, xmltree.OpMerge, edit, "startup")
}

// Schema returns the schema the engine validates against, so callers
// parsing external edit payloads (rpcsock, restconf) can derive
// xmltree.SchemaHints and annotate list/leaf-list identity before the
// edit reaches Put.
func (e *Engine) Schema() *validate.Schema { return e.schema }

// InUse reports whether a commit is currently in progress.
func (e *Engine) InUse() bool {
	locked := e.mu.TryLock()
	if locked {
		e.mu.Unlock()
	}
	return !locked
}

func treeEqual(a, b *xmltree.Tree) bool {
	ax, err1 := xmltree.SerializeXML(a)
	bx, err2 := xmltree.SerializeXML(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return ax == bx
}
