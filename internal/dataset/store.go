// Package dataset loads the fixed reference dataset of pull-request review
// comments and code-refinement archives that submissions are graded
// against.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/bobmcallan/crab-eval/internal/common"
	"github.com/bobmcallan/crab-eval/internal/models"
)

// Store is a process-wide immutable id -> ReferenceEntry map, loaded once
// from a single JSON document. Missing ids on Lookup are not an error;
// callers log a warning and skip them.
type Store struct {
	entries map[string]models.ReferenceEntry
}

// Load reads path and builds a Store. Rows whose Metadata.ReasonForFailure
// marks them "still being processed" are dropped unless keepStillInProgress
// is set.
func Load(path string, keepStillInProgress bool) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}

	var rows []models.ReferenceEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}

	entries := make(map[string]models.ReferenceEntry, len(rows))
	for _, row := range rows {
		if !keepStillInProgress && row.Metadata.ReasonForFailure == models.StillBeingProcessedReason {
			continue
		}
		entries[row.ID] = row
	}

	return &Store{entries: entries}, nil
}

// LazyStore wraps Load behind a sync.Once keyed by nothing but the
// caller's own instance, so an App only ever pays the JSON parse cost once
// even if several components ask for the store during wiring.
type LazyStore struct {
	once    sync.Once
	store   *Store
	loadErr error
	path    string
	keepWIP bool
	logger  *common.Logger
}

// NewLazy returns a LazyStore that loads path on first Lookup/Len/All call.
func NewLazy(path string, keepStillInProgress bool, logger *common.Logger) *LazyStore {
	return &LazyStore{path: path, keepWIP: keepStillInProgress, logger: logger}
}

func (l *LazyStore) ensure() {
	l.once.Do(func() {
		l.store, l.loadErr = Load(l.path, l.keepWIP)
		if l.loadErr != nil && l.logger != nil {
			l.logger.Error().Err(l.loadErr).Str("path", l.path).Msg("failed to load reference dataset")
		}
	})
}

// Lookup returns the reference entry for id, and whether it was found.
func (l *LazyStore) Lookup(id string) (models.ReferenceEntry, bool) {
	l.ensure()
	if l.store == nil {
		return models.ReferenceEntry{}, false
	}
	e, ok := l.store.entries[id]
	return e, ok
}

// Len returns the number of loaded reference entries.
func (l *LazyStore) Len() int {
	l.ensure()
	if l.store == nil {
		return 0
	}
	return len(l.store.entries)
}

// All returns every loaded reference entry, in no particular order.
func (l *LazyStore) All() []models.ReferenceEntry {
	l.ensure()
	if l.store == nil {
		return nil
	}
	out := make([]models.ReferenceEntry, 0, len(l.store.entries))
	for _, e := range l.store.entries {
		out = append(out, e)
	}
	return out
}

// Err returns the load error, if loading has been attempted and failed.
func (l *LazyStore) Err() error {
	l.ensure()
	return l.loadErr
}
