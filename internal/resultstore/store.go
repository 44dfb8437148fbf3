// Package resultstore implements the on-disk completed/reserved result
// directory described for the evaluation server: one file per job, a
// zero-size file means "reserved, still running", a non-empty file holds
// the job's completed results as JSON.
package resultstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/crab-eval/internal/common"
	"github.com/bobmcallan/crab-eval/internal/models"
)

const filePrefix = "crabeval"

// filenamePattern matches "<prefix>_<type>_<nonce>" filenames created by
// Reserve. A non-empty file with any other name found in the results
// directory on startup is left alone and logged: skip and warn, never
// crash.
var filenamePattern = regexp.MustCompile(`^` + filePrefix + `_(comment|refinement)_[0-9a-fA-F-]+$`)

// Recovered describes one job rehydrated from a completed result file on
// startup.
type Recovered struct {
	ID      string
	Type    models.JobType
	Results json.RawMessage
}

// Store manages the results directory. mu guards the expiry-timer map;
// file creation, writes and deletions are not serialized by it.
type Store struct {
	dir    string
	ttl    time.Duration
	logger *common.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New returns a Store rooted at dir. The directory is created if missing.
func New(dir string, ttl time.Duration, logger *common.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("resultstore: create %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		ttl:    ttl,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}, nil
}

func filename(jobType models.JobType, nonce string) string {
	return fmt.Sprintf("%s_%s_%s", filePrefix, jobType, nonce)
}

// Reserve atomically creates a uniquely named empty file inside the
// results directory and returns its id (== filename) and full path.
func (s *Store) Reserve(jobType models.JobType) (id string, path string, err error) {
	nonce := uuid.NewString()
	name := filename(jobType, nonce)
	full := filepath.Join(s.dir, name)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("resultstore: reserve: %w", err)
	}
	if cerr := f.Close(); cerr != nil {
		return "", "", fmt.Errorf("resultstore: reserve: %w", cerr)
	}
	return name, full, nil
}

// Finalize overwrites the reserved file with the serialized results and
// schedules expiry one TTL period from now.
func (s *Store) Finalize(id string, results any) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("resultstore: marshal results for %s: %w", id, err)
	}

	full := filepath.Join(s.dir, id)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("resultstore: finalize %s: %w", id, err)
	}

	s.scheduleExpiry(id, s.ttl)
	return nil
}

// Remove idempotently deletes a result (or reservation) file and cancels
// any pending expiry timer.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	full := filepath.Join(s.dir, id)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("resultstore: remove %s: %w", id, err)
	}
	return nil
}

// Read returns the raw completed-results payload for id, or an error if
// it doesn't exist or is still a zero-size reservation.
func (s *Store) Read(id string) (json.RawMessage, error) {
	full := filepath.Join(s.dir, id)
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("resultstore: stat %s: %w", id, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("resultstore: %s is still reserved, not complete", id)
	}
	return os.ReadFile(full)
}

func (s *Store) scheduleExpiry(id string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	if after < 0 {
		after = 0
	}
	s.timers[id] = time.AfterFunc(after, func() {
		if err := s.Remove(id); err != nil && s.logger != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("failed to expire result file")
		}
	})
}

// Recover is called on startup. Zero-size files are deleted whatever
// their name (their owning jobs were lost to a prior crash). Non-empty
// files matching the expected filename pattern are rehydrated into
// Recovered jobs and get a fresh expiry timer computed from the file's
// modification time; non-empty files whose name does not match are left
// untouched and logged, since they may belong to another tool sharing
// the directory.
func (s *Store) Recover() ([]Recovered, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("resultstore: read dir %s: %w", s.dir, err)
	}

	var recovered []Recovered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		info, err := entry.Info()
		if err != nil {
			if s.logger != nil {
				s.logger.Warn().Err(err).Str("file", name).Msg("resultstore: could not stat entry during recovery")
			}
			continue
		}

		if info.Size() == 0 {
			full := filepath.Join(s.dir, name)
			if err := os.Remove(full); err != nil && s.logger != nil {
				s.logger.Warn().Err(err).Str("file", name).Msg("resultstore: failed to delete orphaned reservation")
			}
			continue
		}

		if !filenamePattern.MatchString(name) {
			if s.logger != nil {
				s.logger.Warn().Str("file", name).Msg("resultstore: skipping file with unrecognized name during recovery")
			}
			continue
		}

		jobType, ok := parseType(name)
		if !ok {
			if s.logger != nil {
				s.logger.Warn().Str("file", name).Msg("resultstore: skipping file with unrecognized type during recovery")
			}
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			if s.logger != nil {
				s.logger.Warn().Err(err).Str("file", name).Msg("resultstore: failed to read completed file during recovery")
			}
			continue
		}

		expiry := info.ModTime().Add(s.ttl)
		remaining := time.Until(expiry)
		if remaining <= 0 {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil && s.logger != nil {
				s.logger.Warn().Err(err).Str("file", name).Msg("resultstore: failed to delete past-due result during recovery")
			}
			continue
		}
		s.scheduleExpiry(name, remaining)

		recovered = append(recovered, Recovered{ID: name, Type: jobType, Results: json.RawMessage(data)})
	}

	return recovered, nil
}

// Stats reports how many files are reservations (zero-size) vs completed
// results, as returned by StoreStats.
type Stats struct {
	Reserved  int
	Completed int
}

func (s *Store) StoreStats() (Stats, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() == 0 {
			stats.Reserved++
		} else {
			stats.Completed++
		}
	}
	return stats, nil
}

func parseType(name string) (models.JobType, bool) {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 {
		return "", false
	}
	switch models.JobType(parts[1]) {
	case models.JobTypeComment:
		return models.JobTypeComment, true
	case models.JobTypeRefinement:
		return models.JobTypeRefinement, true
	default:
		return "", false
	}
}

// Close cancels every pending expiry timer, used for clean shutdown per
// the concurrency model's "TTL timers must be cancellable" requirement.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
