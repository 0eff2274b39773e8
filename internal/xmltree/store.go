package xmltree

import (
	"sync"

	"github.com/sdcio/clixon-engine/internal/errs"
)

// LifecycleState is one of the three states a named datastore moves
// through (spec §3).
type LifecycleState int

const (
	Absent LifecycleState = iota
	Empty
	Populated
)

// Store holds the set of named, in-memory configuration trees (spec
// §4.A). It is the tree-store collaborator the transaction engine,
// dispatcher, and startup orchestrator all operate through. Grounded on
// pkg/server's DatastoreMap (mutex-guarded name→instance map,
// add/get/delete).
type Store struct {
	mu    sync.RWMutex
	trees map[string]*Tree
}

// NewStore returns an empty registry — no datastores yet exist.
func NewStore() *Store {
	return &Store{trees: map[string]*Tree{}}
}

// Exists reports whether name has been created (it may still be empty).
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.trees[name]
	return ok
}

// State reports the lifecycle state of name.
func (s *Store) State(name string) LifecycleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[name]
	if !ok {
		return Absent
	}
	if t.IsEmpty() {
		return Empty
	}
	return Populated
}

// Create brings name into existence as an empty tree. It is a no-op if
// the datastore already exists.
func (s *Store) Create(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trees[name]; !ok {
		s.trees[name] = New()
	}
}

// Delete removes name entirely, returning it to the absent state.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trees, name)
}

// Get returns the tree fragment matching xpath within name. A missing
// datastore fails with missing-element; an xpath match miss returns an
// empty (non-error) fragment (spec §4.A).
func (s *Store) Get(name, xpath string) (*Tree, *errs.Record) {
	s.mu.RLock()
	t, ok := s.trees[name]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.TypeApplication, errs.TagMissingElement, name, "no such datastore")
	}
	return Get(t, xpath), nil
}

// Snapshot returns a deep copy of name's tree, or nil if name does not
// exist. Callers (the transaction engine) use this to capture the
// "original" tree before a commit attempt.
func (s *Store) Snapshot(name string) *Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[name]
	if !ok {
		return nil
	}
	return t.Copy()
}

// Replace atomically swaps the content of an existing datastore for a
// caller-supplied tree. Used by the transaction engine to install a
// validated candidate, and by the startup orchestrator's FAILSAFE
// restore path.
func (s *Store) Replace(name string, t *Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[name] = t
}

// Put applies an edit to name in place.
func (s *Store) Put(name string, op EditOp, edit *Tree, user string) errs.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[name]
	if !ok {
		return errs.List{errs.New(errs.TypeApplication, errs.TagMissingElement, name, "no such datastore")}
	}
	return Put(t, op, edit, user)
}

// Copy performs an atomic full-tree copy from src to dst, discarding any
// previous dst content (spec §4.A).
func (s *Store) Copy(src, dst string) *errs.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	srcTree, ok := s.trees[src]
	if !ok {
		return errs.New(errs.TypeApplication, errs.TagMissingElement, src, "no such datastore")
	}
	s.trees[dst] = srcTree.Copy()
	return nil
}
