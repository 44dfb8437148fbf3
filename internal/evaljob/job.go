// Package evaljob implements the evaluation Job lifecycle: a submission's
// state, its set of live observers, and the registry that keeps session
// and job identity in sync.
package evaljob

import (
	"encoding/json"
	"sync"

	"github.com/bobmcallan/crab-eval/internal/models"
)

// Task is the evaluator function bound to a Job at creation time. It
// receives the raw submission payload and the two progress callbacks the
// queue manager wires up when the job starts running.
type Task func(payload any, percentCB func(int), completeCB func(any))

// Job is one submission's state, observer set, percent, and results.
// Field access is guarded by mu; callers must use the exported methods
// rather than touching fields directly from outside the package.
type Job struct {
	ID         string
	Type       models.JobType
	ResultPath string
	task       Task

	mu        sync.Mutex
	status    models.JobStatus
	percent   int
	results   any
	err       error
	observers map[Observer]struct{}
}

// New constructs a Job in status Created. id must already have been
// assigned by the result store's Reserve call so that recovery can
// rebind by filename.
func New(id string, jobType models.JobType, resultPath string, task Task) *Job {
	return &Job{
		ID:         id,
		Type:       jobType,
		ResultPath: resultPath,
		task:       task,
		status:     models.JobStatusCreated,
		percent:    -1,
		observers:  make(map[Observer]struct{}),
	}
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Percent returns the last reported percentage, or -1 if none yet.
func (j *Job) Percent() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.percent
}

// Results returns the completed results payload and whether the job is
// complete.
func (j *Job) Results() (any, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.results, j.status == models.JobStatusComplete
}

// Err returns the failure error, if the job ended in JobStatusFailed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Task returns the bound evaluator function.
func (j *Job) Task() Task {
	return j.task
}

// MarkWaiting transitions Created -> Waiting.
func (j *Job) MarkWaiting() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = models.JobStatusWaiting
}

// MarkProcessing transitions Waiting -> Processing and fans out
// started-processing to every observer.
func (j *Job) MarkProcessing() {
	j.mu.Lock()
	j.status = models.JobStatusProcessing
	obs := j.snapshotObservers()
	j.mu.Unlock()

	for o := range obs {
		o.UpdateStarted()
	}
}

// snapshotObservers must be called with mu held; returns a copy so fan-out
// can happen after the lock is released.
func (j *Job) snapshotObservers() map[Observer]struct{} {
	out := make(map[Observer]struct{}, len(j.observers))
	for o := range j.observers {
		out[o] = struct{}{}
	}
	return out
}

// NotifyPercentage stores percent and fans out UpdatePercentage to every
// observer. percent must be non-decreasing within one evaluation run;
// callers (the evaluators) are responsible for that invariant.
func (j *Job) NotifyPercentage(percent int) {
	j.mu.Lock()
	j.percent = percent
	obs := j.snapshotObservers()
	j.mu.Unlock()

	for o := range obs {
		o.UpdatePercentage(percent)
	}
}

// NotifyComplete transitions the job to Complete, fans out UpdateComplete,
// drains the observer set, and finalizes the result in the given store.
// store.Finalize is injected as a closure so this package does not need to
// import resultstore directly.
func (j *Job) NotifyComplete(results any, finalize func(id string, results any) error, logf func(error)) {
	j.mu.Lock()
	j.status = models.JobStatusComplete
	j.results = results
	obs := j.snapshotObservers()
	j.observers = make(map[Observer]struct{})
	j.mu.Unlock()

	payload := map[string]any{"type": string(j.Type), "results": results}
	for o := range obs {
		o.UpdateComplete(payload)
	}

	if err := finalize(j.ID, results); err != nil && logf != nil {
		logf(err)
	}
}

// NotifyFailed transitions the job to the terminal Failed status; a worker
// crash must not leave the job stuck in Processing forever. Observers
// receive a complete-shaped event carrying an error field instead of
// results, and the reserved file is finalized with an error payload so it
// is never left orphaned.
func (j *Job) NotifyFailed(cause error, finalize func(id string, results any) error, logf func(error)) {
	j.mu.Lock()
	j.status = models.JobStatusFailed
	j.err = cause
	obs := j.snapshotObservers()
	j.observers = make(map[Observer]struct{})
	j.mu.Unlock()

	payload := map[string]any{"type": string(j.Type), "error": cause.Error()}
	for o := range obs {
		o.UpdateComplete(payload)
	}

	if err := finalize(j.ID, map[string]any{"error": cause.Error()}); err != nil && logf != nil {
		logf(err)
	}
}

// addObserver is called only by Registry, which owns the bidirectional
// invariant between Job.observers and its own maps.
func (j *Job) addObserver(o Observer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.observers[o] = struct{}{}
}

// removeObserver is called only by Registry.
func (j *Job) removeObserver(o Observer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.observers, o)
}

// ObserverCount reports the live observer count, used by tests asserting
// drain-on-completion.
func (j *Job) ObserverCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.observers)
}

// MarshalResultsForRecovery wraps a raw recovered JSON payload so a
// rehydrated Job's Results() returns something JSON-marshalable
// identically to a freshly completed one.
func MarshalResultsForRecovery(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]string{"error": "failed to parse recovered results"}
	}
	return v
}

// Recovered builds a Job already in status Complete, used when rehydrating
// from the result store at startup.
func Recovered(id string, jobType models.JobType, results any) *Job {
	return &Job{
		ID:        id,
		Type:      jobType,
		status:    models.JobStatusComplete,
		percent:   100,
		results:   results,
		observers: make(map[Observer]struct{}),
	}
}
