package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"CardScan/internal/email"
	"CardScan/internal/models"
	"CardScan/internal/queue"
)

// stubTransport decides each send's outcome from the call index.
type stubTransport struct {
	mu      sync.Mutex
	calls   []string
	outcome func(i int, job models.EmailJob) error

	started chan struct{}
	release chan struct{}
}

func (s *stubTransport) Send(_ context.Context, job models.EmailJob) error {
	s.mu.Lock()
	i := len(s.calls)
	s.calls = append(s.calls, job.ID)
	s.mu.Unlock()

	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.release != nil {
		<-s.release
	}
	if s.outcome == nil {
		return nil
	}
	return s.outcome(i, job)
}

func (s *stubTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type memJournal struct {
	mu   sync.Mutex
	jobs []models.EmailJob
}

func (j *memJournal) RecordDelivery(_ context.Context, job models.EmailJob) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs = append(j.jobs, job)
	return nil
}

func seed(store *queue.Store, n int) string {
	in := make([]models.JobInput, n)
	for i := range in {
		in[i] = models.JobInput{
			ToEmail: fmt.Sprintf("user%d@example.com", i),
			ToName:  fmt.Sprintf("User %d", i),
			Subject: "Hello",
			Body:    "Hello [Recipient Name]",
		}
	}
	batchID, _ := store.Enqueue(in)
	return batchID
}

func newDispatcher(t *testing.T, store *queue.Store, tr email.Transport, opts Options) *Dispatcher {
	return NewDispatcher(store, tr, zaptest.NewLogger(t), opts)
}

func TestDispatcher_DrainAllSucceed(t *testing.T) {
	store := queue.NewStore()
	seed(store, 4)
	tr := &stubTransport{}
	d := newDispatcher(t, store, tr, Options{})

	res, err := d.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, "Queue processing completed. 4 emails sent.", res.Message)
	assert.Equal(t, models.QueueStatus{Total: 4, Sent: 4}, res.Status)
	for _, j := range store.Jobs() {
		assert.Equal(t, models.StatusSent, j.Status)
		assert.NotNil(t, j.SentAt)
	}
}

func TestDispatcher_DrainAllFail(t *testing.T) {
	store := queue.NewStore()
	seed(store, 3)
	tr := &stubTransport{outcome: func(int, models.EmailJob) error {
		return errors.New("relay said no")
	}}
	d := newDispatcher(t, store, tr, Options{})

	res, err := d.Drain(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Processed)
	assert.Equal(t, models.QueueStatus{Total: 3, Failed: 3}, res.Status)
	for _, j := range store.Jobs() {
		assert.Equal(t, models.StatusFailed, j.Status)
		assert.Equal(t, 1, j.Attempts)
		assert.Equal(t, "relay said no", j.ErrorMsg)
	}

	// Failed jobs are not retried by a later drain.
	res, err = d.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Equal(t, 3, tr.count())
}

func TestDispatcher_DrainMixedKeepsOrder(t *testing.T) {
	store := queue.NewStore()
	seed(store, 5)
	before := store.Jobs()

	tr := &stubTransport{outcome: func(i int, _ models.EmailJob) error {
		if i%2 == 1 {
			return errors.New("temporary failure")
		}
		return nil
	}}
	d := newDispatcher(t, store, tr, Options{})

	res, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 3, res.Status.Sent)
	assert.Equal(t, 2, res.Status.Failed)

	after := store.Jobs()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID, "store order unchanged")
		assert.Equal(t, before[i].ID, tr.calls[i], "sent in insertion order")
	}
	assert.Equal(t, models.StatusSent, after[0].Status)
	assert.Equal(t, models.StatusFailed, after[1].Status)
}

func TestDispatcher_ConcurrentDrainIsRejected(t *testing.T) {
	store := queue.NewStore()
	seed(store, 2)

	tr := &stubTransport{started: make(chan struct{}, 1), release: make(chan struct{})}
	d := newDispatcher(t, store, tr, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Drain(context.Background())
	}()

	<-tr.started
	snapshot := store.Jobs()

	res, err := d.Drain(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
	assert.Equal(t, "Queue is already being processed", res.Message)
	assert.True(t, res.Status.Processing)
	assert.Equal(t, snapshot, store.Jobs(), "rejected drain mutates nothing")
	assert.Equal(t, 1, tr.count())

	close(tr.release)
	<-done

	assert.False(t, d.Processing())
	assert.Equal(t, 2, store.Status(false).Sent)
}

func TestDispatcher_PanicInTransportIsRecordedAndLoopContinues(t *testing.T) {
	store := queue.NewStore()
	seed(store, 3)
	tr := &stubTransport{outcome: func(i int, _ models.EmailJob) error {
		if i == 0 {
			panic("nil dialer")
		}
		return nil
	}}
	d := newDispatcher(t, store, tr, Options{})

	res, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	first := store.Jobs()[0]
	assert.Equal(t, models.StatusFailed, first.Status)
	assert.Contains(t, first.ErrorMsg, "transport panic")
	assert.False(t, d.Processing())
}

// panicStore blows up on the second NextQueued call, outside any send.
type panicStore struct {
	*queue.Store
	calls int
}

func (p *panicStore) NextQueued() (models.EmailJob, bool) {
	p.calls++
	if p.calls == 2 {
		panic("corrupted queue")
	}
	return p.Store.NextQueued()
}

func TestDispatcher_UnexpectedPanicClearsProcessingFlag(t *testing.T) {
	store := &panicStore{Store: queue.NewStore()}
	seed(store.Store, 2)
	d := NewDispatcher(store, &stubTransport{}, zaptest.NewLogger(t), Options{})

	res, err := d.Drain(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted queue")
	assert.Equal(t, 1, res.Processed)
	assert.False(t, d.Processing(), "queue must stay drainable")

	res, err = d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func TestDispatcher_PacesBetweenSends(t *testing.T) {
	store := queue.NewStore()
	seed(store, 3)
	d := newDispatcher(t, store, &stubTransport{}, Options{Delay: 30 * time.Millisecond})

	start := time.Now()
	_, err := d.Drain(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestDispatcher_CancelDuringPauseLeavesRestQueued(t *testing.T) {
	store := queue.NewStore()
	seed(store, 3)
	d := newDispatcher(t, store, &stubTransport{}, Options{Delay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := d.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 2, res.Status.Queued)
	assert.False(t, d.Processing())
}

func TestDispatcher_SendTimeoutFailsJob(t *testing.T) {
	store := queue.NewStore()
	seed(store, 1)

	tr := transportFunc(func(ctx context.Context, _ models.EmailJob) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := newDispatcher(t, store, tr, Options{SendTimeout: 20 * time.Millisecond})

	_, err := d.Drain(context.Background())
	require.NoError(t, err)

	job := store.Jobs()[0]
	assert.Equal(t, models.StatusFailed, job.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), job.ErrorMsg)
}

func TestDispatcher_RecordsToJournal(t *testing.T) {
	store := queue.NewStore()
	seed(store, 2)
	journal := &memJournal{}
	tr := &stubTransport{outcome: func(i int, _ models.EmailJob) error {
		if i == 1 {
			return email.ErrNotConfigured
		}
		return nil
	}}
	d := newDispatcher(t, store, tr, Options{Journal: journal})

	_, err := d.Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, journal.jobs, 2)
	assert.Equal(t, models.StatusSent, journal.jobs[0].Status)
	assert.Equal(t, models.StatusFailed, journal.jobs[1].Status)
	assert.Equal(t, "SMTP credentials not configured", journal.jobs[1].ErrorMsg)
}

func TestDispatcher_BackgroundWorkerDrainsOnTrigger(t *testing.T) {
	store := queue.NewStore()
	d := newDispatcher(t, store, &stubTransport{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	d.Start(ctx, &wg)
	defer func() {
		cancel()
		wg.Wait()
	}()

	sub := &Submitter{Store: store, Trigger: d, Log: zaptest.NewLogger(t)}
	receipt := sub.Submit(models.BatchRequest{
		Recipients: []models.Recipient{{Email: "a@example.com", Name: "A"}, {Email: "b@example.com", Name: "B"}},
		Subject:    "Hi",
		Body:       "Hello [Recipient Name]",
	})
	assert.Equal(t, 2, receipt.Count)

	require.Eventually(t, func() bool {
		return store.Status(false).Sent == 2
	}, 2*time.Second, 10*time.Millisecond)

	for _, j := range store.Batch(receipt.BatchID) {
		assert.Equal(t, models.StatusSent, j.Status)
	}
}

func TestDispatcher_TriggerNeverBlocks(t *testing.T) {
	d := newDispatcher(t, queue.NewStore(), &stubTransport{}, Options{})

	done := make(chan struct{})
	go func() {
		for range 10 {
			d.Trigger()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked without a running worker")
	}
}

type transportFunc func(ctx context.Context, job models.EmailJob) error

func (f transportFunc) Send(ctx context.Context, job models.EmailJob) error { return f(ctx, job) }

// lateStore enqueues one more job the first time it reports the queue empty,
// the way a submission landing at the tail of a drain would.
type lateStore struct {
	*queue.Store
	arrived bool
}

func (l *lateStore) NextQueued() (models.EmailJob, bool) {
	job, ok := l.Store.NextQueued()
	if !ok && !l.arrived {
		l.arrived = true
		seed(l.Store, 1)
	}
	return job, ok
}

func TestDispatcher_DrainRetriggersForLateArrivals(t *testing.T) {
	store := &lateStore{Store: queue.NewStore()}
	seed(store.Store, 2)
	d := NewDispatcher(store, &stubTransport{}, zaptest.NewLogger(t), Options{})

	res, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Status.Queued)
	assert.Len(t, d.trigger, 1, "late job must wake the worker")

	<-d.trigger
	res, err = d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Len(t, d.trigger, 0)
}

func TestDispatcher_DrainDoesNotRetriggerWhenEmpty(t *testing.T) {
	store := queue.NewStore()
	seed(store, 2)
	d := newDispatcher(t, store, &stubTransport{}, Options{})

	_, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, d.trigger, 0)
}
