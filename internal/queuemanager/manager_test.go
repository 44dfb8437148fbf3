package queuemanager

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/crab-eval/internal/evaljob"
	"github.com/bobmcallan/crab-eval/internal/models"
)

func blockingTask(release <-chan struct{}) evaljob.Task {
	return func(payload any, percentCB func(int), completeCB func(any)) {
		<-release
		completeCB(map[string]int{"done": 1})
	}
}

func newJob(id string, task evaljob.Task) *evaljob.Job {
	return evaljob.New(id, models.JobTypeComment, id, task)
}

func noopFinalize(id string, results any) error { return nil }

func TestMaxWorkersConcurrencyAndWaitingPositions(t *testing.T) {
	release := make(chan struct{})
	m := New(2, nil)

	j1 := newJob("j1", blockingTask(release))
	j2 := newJob("j2", blockingTask(release))
	j3 := newJob("j3", blockingTask(release))

	m.Submit(j1, nil, noopFinalize)
	m.Submit(j2, nil, noopFinalize)
	m.Submit(j3, nil, noopFinalize)

	require.Eventually(t, func() bool {
		return j1.Status() == models.JobStatusProcessing && j2.Status() == models.JobStatusProcessing
	}, time.Second, time.Millisecond)

	assert.Equal(t, models.JobStatusWaiting, j3.Status())
	assert.Equal(t, 1, m.GetPosition(j3.ID))
	assert.Equal(t, 0, m.GetPosition(j1.ID))
	assert.Equal(t, 0, m.GetPosition(j2.ID))

	close(release)
	m.Wait()

	assert.Equal(t, models.JobStatusComplete, j1.Status())
	assert.Equal(t, models.JobStatusComplete, j2.Status())
	assert.Equal(t, models.JobStatusComplete, j3.Status())
}

func TestGetPositionOnUnknownIDIsZero(t *testing.T) {
	m := New(1, nil)
	assert.Equal(t, 0, m.GetPosition("nope"))
}

func TestFIFOOrderingOfWaitQueue(t *testing.T) {
	release := make(chan struct{})
	m := New(1, nil)

	first := newJob("first", blockingTask(release))
	m.Submit(first, nil, noopFinalize)

	require.Eventually(t, func() bool {
		return first.Status() == models.JobStatusProcessing
	}, time.Second, time.Millisecond)

	second := newJob("second", blockingTask(release))
	third := newJob("third", blockingTask(release))
	m.Submit(second, nil, noopFinalize)
	m.Submit(third, nil, noopFinalize)

	assert.Equal(t, 1, m.GetPosition(second.ID))
	assert.Equal(t, 2, m.GetPosition(third.ID))

	close(release)
	m.Wait()
}

func TestWorkerPanicTransitionsJobToFailedNotStuckProcessing(t *testing.T) {
	m := New(1, nil)
	panicking := newJob("panic", func(payload any, percentCB func(int), completeCB func(any)) {
		panic("boom")
	})

	var once sync.Once
	done := make(chan struct{})
	finalize := func(id string, results any) error {
		once.Do(func() { close(done) })
		return nil
	}

	m.Submit(panicking, nil, finalize)
	m.Wait()
	<-done

	assert.Equal(t, models.JobStatusFailed, panicking.Status())
	assert.Error(t, panicking.Err())
}
