package evaljob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/crab-eval/internal/models"
)

type recordingSink struct {
	events []string
}

func (s *recordingSink) Push(sessionID, event string, payload any) {
	s.events = append(s.events, event)
}

func newTestJob(id string) *Job {
	return New(id, models.JobTypeComment, id, func(payload any, percentCB func(int), completeCB func(any)) {})
}

func TestAttachThenAlreadyListeningRejected(t *testing.T) {
	r := NewRegistry()
	job := newTestJob("job-1")
	sink := &recordingSink{}

	obs, err := r.Attach("sess-1", job, func() Observer {
		return NewSocketObserver("sess-1", sink, func(o *SocketObserver) { r.Detach(o) })
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, 1, job.ObserverCount())

	_, err = r.Attach("sess-1", job, func() Observer {
		t.Fatal("makeObserver should not be called when already listening")
		return nil
	}, nil)
	assert.ErrorIs(t, err, ErrAlreadyListening)
}

func TestAttachMigratesAcrossJobsAndPushesChangingSubject(t *testing.T) {
	r := NewRegistry()
	jobA := newTestJob("job-a")
	jobB := newTestJob("job-b")
	sink := &recordingSink{}

	_, err := r.Attach("sess-1", jobA, func() Observer {
		return NewSocketObserver("sess-1", sink, nil)
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, jobA.ObserverCount())

	changingSubjectCalled := false
	_, err = r.Attach("sess-1", jobB, func() Observer {
		return NewSocketObserver("sess-1", sink, nil)
	}, func() { changingSubjectCalled = true })
	require.NoError(t, err)

	assert.True(t, changingSubjectCalled)
	assert.Equal(t, 0, jobA.ObserverCount())
	assert.Equal(t, 1, jobB.ObserverCount())
}

func TestDetachSessionRemovesBothRelations(t *testing.T) {
	r := NewRegistry()
	job := newTestJob("job-1")
	sink := &recordingSink{}

	obs, err := r.Attach("sess-1", job, func() Observer {
		return NewSocketObserver("sess-1", sink, nil)
	}, nil)
	require.NoError(t, err)

	r.DetachSession("sess-1")

	assert.Equal(t, 0, job.ObserverCount())
	_, ok := r.JobFor(obs)
	assert.False(t, ok)
	_, ok = r.ObserverFor("sess-1")
	assert.False(t, ok)
}

func TestNotifyCompleteDrainsObserversAndInvokesSinkSingleShot(t *testing.T) {
	r := NewRegistry()
	job := newTestJob("job-1")
	sink := &recordingSink{}

	_, err := r.Attach("sess-1", job, func() Observer {
		return NewSocketObserver("sess-1", sink, func(o *SocketObserver) { r.Detach(o) })
	}, nil)
	require.NoError(t, err)

	finalized := false
	job.NotifyComplete(map[string]int{"ok": 1}, func(id string, results any) error {
		finalized = true
		return nil
	}, nil)

	assert.True(t, finalized)
	assert.Equal(t, 0, job.ObserverCount())
	assert.Contains(t, sink.events, "complete")
	assert.Equal(t, models.JobStatusComplete, job.Status())
}

func TestNotifyFailedTransitionsToTerminalFailedStatus(t *testing.T) {
	job := newTestJob("job-1")
	sink := &recordingSink{}
	r := NewRegistry()
	_, err := r.Attach("sess-1", job, func() Observer {
		return NewSocketObserver("sess-1", sink, nil)
	}, nil)
	require.NoError(t, err)

	var finalizedResults any
	job.NotifyFailed(assert.AnError, func(id string, results any) error {
		finalizedResults = results
		return nil
	}, nil)

	assert.Equal(t, models.JobStatusFailed, job.Status())
	assert.Error(t, job.Err())
	assert.Equal(t, 0, job.ObserverCount())
	assert.NotNil(t, finalizedResults)
	assert.Contains(t, sink.events, "complete")
}

func TestMarkProcessingFiresStartedProcessing(t *testing.T) {
	job := newTestJob("job-1")
	sink := &recordingSink{}
	r := NewRegistry()
	_, err := r.Attach("sess-1", job, func() Observer {
		return NewSocketObserver("sess-1", sink, nil)
	}, nil)
	require.NoError(t, err)

	job.MarkWaiting()
	job.MarkProcessing()

	assert.Equal(t, models.JobStatusProcessing, job.Status())
	assert.Contains(t, sink.events, "started-processing")
}

func TestPercentNonDecreasingFanOut(t *testing.T) {
	job := newTestJob("job-1")
	var seen []int
	sink := &sinkFunc{fn: func(sessionID, event string, payload any) {
		if event == "progress" {
			seen = append(seen, payload.(map[string]any)["percent"].(int))
		}
	}}
	r := NewRegistry()
	_, err := r.Attach("sess-1", job, func() Observer {
		return NewSocketObserver("sess-1", sink, nil)
	}, nil)
	require.NoError(t, err)

	for _, p := range []int{0, 25, 50, 100} {
		job.NotifyPercentage(p)
	}

	assert.Equal(t, []int{0, 25, 50, 100}, seen)
	assert.Equal(t, 100, job.Percent())
}

type sinkFunc struct {
	fn func(sessionID, event string, payload any)
}

func (s *sinkFunc) Push(sessionID, event string, payload any) { s.fn(sessionID, event, payload) }
