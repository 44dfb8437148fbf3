package evaljob

import (
	"errors"
	"sync"
)

// ErrAlreadyListening is returned by Attach when the session already has
// a live Observer on the same Job.
var ErrAlreadyListening = errors.New("session already listening on this job")

// Registry is process-wide state tying together sessionId -> Observer and
// Observer -> Job, protected by a single coarse lock. It is an explicit
// component, not module-level globals: construct one with NewRegistry and
// share it by reference.
type Registry struct {
	mu        sync.Mutex
	bySession map[string]Observer
	jobOfObs  map[Observer]*Job
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		bySession: make(map[string]Observer),
		jobOfObs:  make(map[Observer]*Job),
	}
}

// Attach binds a fresh Observer for sessionID to job. If the session
// already has an Observer on a different job, it is migrated: unregistered
// from the old job, and changingSubject is invoked so the transport can
// push a "changing-subject" event before the new Observer takes over. If
// the session already has an Observer on the *same* job, Attach returns
// ErrAlreadyListening and makes no changes.
func (r *Registry) Attach(sessionID string, job *Job, makeObserver func() Observer, changingSubject func()) (Observer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevObs, ok := r.bySession[sessionID]; ok {
		prevJob := r.jobOfObs[prevObs]
		if prevJob == job {
			return nil, ErrAlreadyListening
		}
		if prevJob != nil {
			prevJob.removeObserver(prevObs)
		}
		delete(r.jobOfObs, prevObs)
		delete(r.bySession, sessionID)
		if changingSubject != nil {
			changingSubject()
		}
	}

	obs := makeObserver()
	r.bySession[sessionID] = obs
	r.jobOfObs[obs] = job
	job.addObserver(obs)
	return obs, nil
}

// Detach removes an Observer from both registry relations and from its
// Job's observer set. Used on unsubscription, session disconnect, and by
// SocketObserver's single-shot completion callback.
func (r *Registry) Detach(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(obs)
}

func (r *Registry) detachLocked(obs Observer) {
	job, ok := r.jobOfObs[obs]
	if !ok {
		return
	}
	job.removeObserver(obs)
	delete(r.jobOfObs, obs)
	if r.bySession[obs.SessionID()] == obs {
		delete(r.bySession, obs.SessionID())
	}
}

// DetachSession removes whatever Observer is bound to sessionID, if any.
// Used on client disconnect.
func (r *Registry) DetachSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obs, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	r.detachLocked(obs)
}

// JobFor returns the Job currently bound to an Observer, if any.
func (r *Registry) JobFor(obs Observer) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobOfObs[obs]
	return j, ok
}

// ObserverFor returns the Observer currently bound to a session, if any.
func (r *Registry) ObserverFor(sessionID string) (Observer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.bySession[sessionID]
	return o, ok
}
