// Package queuemanager implements the bounded worker pool and FIFO
// waiting list described for the evaluation server: component F.
package queuemanager

import (
	"fmt"
	"sync"

	"github.com/bobmcallan/crab-eval/internal/common"
	"github.com/bobmcallan/crab-eval/internal/evaljob"
)

// Manager runs jobs on a fixed-size worker pool, FIFO. It intentionally
// does not use a buffered channel of fixed capacity for the waiting list
// because getPosition must do a cheap scan of whatever is currently
// waiting; a slice guarded by a mutex satisfies that directly.
type Manager struct {
	logger *common.Logger
	sem    chan struct{}

	mu        sync.Mutex
	waitQueue []string
	jobsByID  map[string]*evaljob.Job

	wg sync.WaitGroup
}

// New returns a Manager bounded to maxWorkers concurrent jobs.
func New(maxWorkers int, logger *common.Logger) *Manager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Manager{
		logger:   logger,
		sem:      make(chan struct{}, maxWorkers),
		jobsByID: make(map[string]*evaljob.Job),
	}
}

// Submit transitions job to Waiting, appends it to the FIFO wait queue,
// and launches a goroutine that will block on the worker semaphore, then
// run job.Task() inside a crash boundary. finalize is the result store's
// Finalize, threaded through so evaljob never needs to import resultstore.
func (m *Manager) Submit(job *evaljob.Job, payload any, finalize func(id string, results any) error) {
	job.MarkWaiting()

	m.mu.Lock()
	m.waitQueue = append(m.waitQueue, job.ID)
	m.jobsByID[job.ID] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(job, payload, finalize)
}

func (m *Manager) run(job *evaljob.Job, payload any, finalize func(id string, results any) error) {
	defer m.wg.Done()

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	m.mu.Lock()
	m.removeFromWaitQueueLocked(job.ID)
	m.mu.Unlock()

	job.MarkProcessing()

	m.runTaskWithCrashBoundary(job, payload, finalize)
}

// runTaskWithCrashBoundary invokes job.Task() and converts any panic into
// a job.NotifyFailed call instead of letting the job sit in Processing
// forever with no worker left to finish it.
func (m *Manager) runTaskWithCrashBoundary(job *evaljob.Job, payload any, finalize func(id string, results any) error) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("worker panic: %v", rec)
			if m.logger != nil {
				m.logger.Error().Str("job_id", job.ID).Str("panic", err.Error()).Msg("evaluator task panicked")
			}
			job.NotifyFailed(err, finalize, m.logError)
		}
	}()

	task := job.Task()
	task(payload,
		func(percent int) { job.NotifyPercentage(percent) },
		func(results any) { job.NotifyComplete(results, finalize, m.logError) },
	)
}

func (m *Manager) logError(err error) {
	if m.logger != nil {
		m.logger.Warn().Err(err).Msg("failed to finalize job result")
	}
}

// removeFromWaitQueueLocked is best-effort: a missing id is ignored.
func (m *Manager) removeFromWaitQueueLocked(id string) {
	for i, v := range m.waitQueue {
		if v == id {
			m.waitQueue = append(m.waitQueue[:i], m.waitQueue[i+1:]...)
			return
		}
	}
}

// GetPosition returns the 1-based index of jobID in the wait queue, or 0
// if it is not currently waiting (including: unknown, processing, or
// complete).
func (m *Manager) GetPosition(jobID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.waitQueue {
		if v == jobID {
			return i + 1
		}
	}
	return 0
}

// Wait blocks until every submitted job has finished running (success,
// failure, or panic). Used by tests and graceful shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}
