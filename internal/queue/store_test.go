package queue

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CardScan/internal/models"
)

func inputs(n int) []models.JobInput {
	out := make([]models.JobInput, n)
	for i := range out {
		out[i] = models.JobInput{
			ToEmail: fmt.Sprintf("user%d@example.com", i),
			ToName:  fmt.Sprintf("User %d", i),
			Subject: "Hi",
			Body:    "Hello [Recipient Name]",
		}
	}
	return out
}

func TestStore_EnqueueCreatesOneJobPerInput(t *testing.T) {
	s := NewStore()

	batchID, count := s.Enqueue(inputs(5))
	require.Equal(t, 5, count)

	jobs := s.Jobs()
	require.Len(t, jobs, 5)

	seen := make(map[string]bool)
	for i, j := range jobs {
		assert.Equal(t, batchID, j.BatchID)
		assert.Equal(t, models.StatusQueued, j.Status)
		assert.Zero(t, j.Attempts)
		assert.Equal(t, fmt.Sprintf("user%d@example.com", i), j.ToEmail, "input order preserved")
		assert.False(t, seen[j.ID], "duplicate id %s", j.ID)
		seen[j.ID] = true
	}
}

func TestStore_BatchIDsDifferPerCall(t *testing.T) {
	s := NewStore()

	b1, _ := s.Enqueue(inputs(2))
	b2, _ := s.Enqueue(inputs(2))

	assert.NotEqual(t, b1, b2)
	assert.Regexp(t, regexp.MustCompile(`^batch_\d{8}_\d{6}_[0-9a-f]{8}$`), b1)
	assert.Len(t, s.Batch(b1), 2)
	assert.Len(t, s.Batch(b2), 2)
	assert.Empty(t, s.Batch("batch_unknown"))
}

func TestStore_JobIDsUniqueAcrossBatches(t *testing.T) {
	s := NewStore()
	for range 20 {
		s.Enqueue(inputs(50))
	}

	seen := make(map[string]struct{})
	for _, j := range s.Jobs() {
		_, dup := seen[j.ID]
		require.False(t, dup, "duplicate id %s", j.ID)
		seen[j.ID] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}

func TestStore_NextQueuedReturnsEarliestQueued(t *testing.T) {
	s := NewStore()

	_, ok := s.NextQueued()
	assert.False(t, ok, "empty store has nothing queued")

	s.Enqueue(inputs(3))
	jobs := s.Jobs()

	next, ok := s.NextQueued()
	require.True(t, ok)
	assert.Equal(t, jobs[0].ID, next.ID)

	// Calling again without settling returns the same job.
	again, ok := s.NextQueued()
	require.True(t, ok)
	assert.Equal(t, jobs[0].ID, again.ID)

	require.NoError(t, s.MarkSent(jobs[0].ID))
	next, ok = s.NextQueued()
	require.True(t, ok)
	assert.Equal(t, jobs[1].ID, next.ID)

	require.NoError(t, s.MarkFailed(jobs[1].ID, "boom"))
	require.NoError(t, s.MarkSent(jobs[2].ID))

	_, ok = s.NextQueued()
	assert.False(t, ok)

	// New work after a full drain is still found.
	s.Enqueue(inputs(1))
	next, ok = s.NextQueued()
	require.True(t, ok)
	assert.Equal(t, s.Jobs()[3].ID, next.ID)
}

func TestStore_NextQueuedSkipsSettledMiddleJob(t *testing.T) {
	s := NewStore()
	s.Enqueue(inputs(3))
	jobs := s.Jobs()

	// Settle out of order; head must not skip job 0.
	require.NoError(t, s.MarkSent(jobs[1].ID))

	next, ok := s.NextQueued()
	require.True(t, ok)
	assert.Equal(t, jobs[0].ID, next.ID)

	require.NoError(t, s.MarkSent(jobs[0].ID))
	next, ok = s.NextQueued()
	require.True(t, ok)
	assert.Equal(t, jobs[2].ID, next.ID)
}

func TestStore_MarkSentAndFailed(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 10, 11, 12, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return fixed }))
	s.Enqueue(inputs(2))
	jobs := s.Jobs()

	require.NoError(t, s.MarkSent(jobs[0].ID))
	require.NoError(t, s.MarkFailed(jobs[1].ID, "550 mailbox unavailable"))

	sent, err := s.Get(jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.Equal(t, fixed, *sent.SentAt)
	assert.Zero(t, sent.Attempts)

	failed, err := s.Get(jobs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, "550 mailbox unavailable", failed.ErrorMsg)
	assert.Equal(t, 1, failed.Attempts)
	assert.Nil(t, failed.SentAt)
}

func TestStore_UnknownAndSettledJobs(t *testing.T) {
	s := NewStore()
	s.Enqueue(inputs(1))
	id := s.Jobs()[0].ID

	assert.ErrorIs(t, s.MarkSent("email_missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.MarkFailed("email_missing", "x"), ErrJobNotFound)
	_, err := s.Get("email_missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	require.NoError(t, s.MarkSent(id))
	assert.ErrorIs(t, s.MarkFailed(id, "late"), ErrInvalidTransition)

	job, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, job.Status, "settled job is untouched")
}

func TestStore_Status(t *testing.T) {
	s := NewStore()
	s.Enqueue(inputs(4))
	jobs := s.Jobs()

	require.NoError(t, s.MarkSent(jobs[0].ID))
	require.NoError(t, s.MarkFailed(jobs[1].ID, "nope"))

	assert.Equal(t, models.QueueStatus{Total: 4, Queued: 2, Sent: 1, Failed: 1, Processing: true}, s.Status(true))
	assert.Equal(t, models.QueueStatus{Total: 2, Queued: 0, Sent: 1, Failed: 1}, BatchStatus(s.Jobs()[:2], false))
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	s := NewStore()
	s.Enqueue(inputs(1))

	jobs := s.Jobs()
	jobs[0].Status = models.StatusSent

	assert.Equal(t, models.StatusQueued, s.Jobs()[0].Status)
}

func TestStore_ConcurrentEnqueue(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Enqueue(inputs(10))
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, s.Status(false).Total)
}
