package soundcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerFiresInDeadlineOrder(t *testing.T) {
	s := newCompletionScheduler()
	s.schedule(1, 1, testBase.Add(3*time.Second))
	s.schedule(2, 1, testBase.Add(1*time.Second))
	s.schedule(3, 1, testBase.Add(2*time.Second))
	require.Equal(t, 3, s.pending())

	fired := s.due(testBase.Add(2 * time.Second))
	require.Len(t, fired, 2)
	assert.Equal(t, 2, fired[0].channelID)
	assert.Equal(t, 3, fired[1].channelID)
	assert.Equal(t, 1, s.pending())

	assert.Empty(t, s.due(testBase.Add(2*time.Second)))

	fired = s.due(testBase.Add(3 * time.Second))
	require.Len(t, fired, 1)
	assert.Equal(t, 1, fired[0].channelID)
	assert.Zero(t, s.pending())
}

func TestSchedulerEqualDeadlinesFireInScheduleOrder(t *testing.T) {
	s := newCompletionScheduler()
	deadline := testBase.Add(time.Second)
	for id := 5; id >= 1; id-- {
		s.schedule(id, 1, deadline)
	}

	fired := s.due(deadline)
	require.Len(t, fired, 5)
	for i, pc := range fired {
		assert.Equal(t, 5-i, pc.channelID)
	}
}

func TestSchedulerReplacesPerChannel(t *testing.T) {
	s := newCompletionScheduler()
	s.schedule(7, 1, testBase.Add(time.Second))
	s.schedule(7, 2, testBase.Add(5*time.Second))
	require.Equal(t, 1, s.pending(), "at most one pending completion per channel")

	assert.Empty(t, s.due(testBase.Add(2*time.Second)))

	fired := s.due(testBase.Add(5 * time.Second))
	require.Len(t, fired, 1)
	assert.Equal(t, uint64(2), fired[0].generation)
}

func TestSchedulerReplaceCanMoveDeadlineEarlier(t *testing.T) {
	s := newCompletionScheduler()
	s.schedule(1, 1, testBase.Add(10*time.Second))
	s.schedule(2, 1, testBase.Add(2*time.Second))
	s.schedule(1, 2, testBase.Add(1*time.Second))

	fired := s.due(testBase.Add(1 * time.Second))
	require.Len(t, fired, 1)
	assert.Equal(t, 1, fired[0].channelID)
	assert.Equal(t, uint64(2), fired[0].generation)
	assert.Equal(t, 1, s.pending())
}

func TestSchedulerCancel(t *testing.T) {
	s := newCompletionScheduler()
	s.schedule(1, 1, testBase.Add(time.Second))
	s.schedule(2, 1, testBase.Add(time.Second))

	assert.True(t, s.cancel(1))
	assert.False(t, s.cancel(1), "second cancel finds nothing")
	assert.False(t, s.cancel(99))

	fired := s.due(testBase.Add(time.Second))
	require.Len(t, fired, 1)
	assert.Equal(t, 2, fired[0].channelID)
}
