// Package persist implements the single writer of on-disk datastore
// state (spec §4.B): one file per datastore, loaded/stored as XML,
// replaced atomically so a failed store never leaves a partially
// written file behind.
//
// Grounded on pkg/cache/local.go's datastore lifecycle calls
// (Create/Delete/Exists) and on original_source's
// lib/src/clixon_file.c atomic-rename contract: write to a temp file in
// the same directory, fsync it, then rename over the target.
package persist

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdcio/clixon-engine/internal/xmltree"
	log "github.com/sirupsen/logrus"
)

// UpgradeHook is the single opaque hook allowed for schema upgrade of
// persisted data (spec §1 Non-goals: "schema upgrade of persisted data
// beyond a single opaque hook"). It is never implemented further than
// being invoked with the raw bytes read from disk.
type UpgradeHook func([]byte) ([]byte, error)

// Store is the filesystem-backed persistence layer. Dir is the
// configured directory holding "<name>_db" files (spec §6).
type Store struct {
	Dir         string
	UpgradeHook UpgradeHook

	// Hints, if set, annotates every tree Load returns with its schema's
	// list-key/leaf-list identity (xmltree.Annotate) before handing it
	// back to the caller. A tree loaded from disk can become the
	// destination side of a later edit-config Put (e.g. "running"
	// reloaded across a restart) — without this, Put's key-matching
	// falls back to by-position matching for any list with more than
	// one entry (spec §4.A).
	Hints xmltree.SchemaHints
}

// New returns a persistence layer rooted at dir. The directory is not
// created here — the caller (cmd/backendd) is responsible for ensuring
// it exists, failing fast on a misconfigured data directory rather
// than silently creating one.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name+"_db")
}

// Exists reports whether name's file is present on disk.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Load reads name's file and parses it into a Tree. A missing file is
// reported as os.ErrNotExist so callers (the startup orchestrator) can
// distinguish "no persisted state yet" from a parse failure.
func (s *Store) Load(name string) (*xmltree.Tree, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, err
	}
	if s.UpgradeHook != nil {
		data, err = s.UpgradeHook(data)
		if err != nil {
			return nil, fmt.Errorf("upgrade hook for %s: %w", name, err)
		}
	}
	t, err := xmltree.ParseXML(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	xmltree.Annotate(t, s.Hints)
	return t, nil
}

// Store atomically writes t as name's persisted XML form: write to a
// temp file beside the target, fsync it, then rename over the target.
// A failure at any point before the rename leaves the previous file
// untouched (spec §4.B: "persistence never partially updates").
func (s *Store) Store(name string, t *xmltree.Tree) error {
	target := s.path(name)
	tmp := target + ".tmp"

	xml, err := xmltree.SerializeXML(t)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", name, err)
	}

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("open temp file for %s: %w", name, err)
	}
	if _, err := f.WriteString(xml); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync temp file for %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file for %s: %w", name, err)
	}
	log.WithField("datastore", name).Debug("persisted datastore")
	return nil
}

// Reset truncates name's on-disk tree to empty while keeping the file
// present (spec §4.B).
func (s *Store) Reset(name string) error {
	return s.Store(name, xmltree.New())
}

// failsafeMarkerName is the sentinel file recording that a revert
// itself failed and the process must boot into failsafe recovery on
// its next start (spec §4.E edge case policy: "the engine marks the
// process for failsafe recovery on next start"). An in-memory flag on
// Engine cannot survive the process exiting, so the marker has to live
// on disk next to the datastore files it protects.
const failsafeMarkerName = "failsafe_needed"

// MarkFailsafe creates the on-disk failsafe marker. Idempotent.
func (s *Store) MarkFailsafe() error {
	return os.WriteFile(s.path(failsafeMarkerName), nil, 0o640)
}

// NeedsFailsafe reports whether a prior run left the failsafe marker
// behind.
func (s *Store) NeedsFailsafe() bool {
	_, err := os.Stat(s.path(failsafeMarkerName))
	return err == nil
}

// ClearFailsafe removes the failsafe marker once failsafe recovery has
// run successfully. A missing marker is not an error.
func (s *Store) ClearFailsafe() error {
	err := os.Remove(s.path(failsafeMarkerName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CreateEmpty creates name's file with an empty tree if it does not
// already exist.
func (s *Store) CreateEmpty(name string) error {
	if s.Exists(name) {
		return nil
	}
	return s.Store(name, xmltree.New())
}
