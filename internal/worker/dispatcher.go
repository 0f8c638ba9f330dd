package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"CardScan/internal/email"
	"CardScan/internal/metrics"
	"CardScan/internal/models"
)

var ErrAlreadyProcessing = errors.New("queue is already being processed")

// JobStore is the part of queue.Store the dispatcher drives.
type JobStore interface {
	NextQueued() (models.EmailJob, bool)
	MarkSent(id string) error
	MarkFailed(id, errMsg string) error
	Get(id string) (models.EmailJob, error)
	Status(processing bool) models.QueueStatus
}

// Journal receives every settled job. Optional.
type Journal interface {
	RecordDelivery(ctx context.Context, job models.EmailJob) error
}

type Options struct {
	// Delay is the pause after every send. The downstream relay flags bulk
	// senders that do not leave gaps between messages.
	Delay       time.Duration
	SendTimeout time.Duration
	Limiter     *rate.Limiter
	Journal     Journal
}

// Dispatcher drains the job store one job at a time. Only one drain runs at
// any moment.
type Dispatcher struct {
	store     JobStore
	transport email.Transport
	log       *zap.Logger
	opts      Options

	processing atomic.Bool
	trigger    chan struct{}
}

func NewDispatcher(store JobStore, transport email.Transport, log *zap.Logger, opts Options) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 60 * time.Second
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return &Dispatcher{
		store:     store,
		transport: transport,
		log:       log,
		opts:      opts,
		trigger:   make(chan struct{}, 1),
	}
}

func (d *Dispatcher) Processing() bool {
	return d.processing.Load()
}

func (d *Dispatcher) Status() models.QueueStatus {
	return d.store.Status(d.processing.Load())
}

// Trigger asks the background worker for a drain and returns at once.
// Triggers arriving while one is pending collapse into it.
func (d *Dispatcher) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Start runs the background worker until ctx is done.
func (d *Dispatcher) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)

	go func() {
		defer wg.Done()

		d.log.Info("dispatcher started")

		for {
			select {

			case <-ctx.Done():
				d.log.Info("dispatcher shutting down")
				return

			case <-d.trigger:
				res, err := d.Drain(ctx)
				switch {
				case errors.Is(err, ErrAlreadyProcessing):
					d.log.Debug("drain skipped, another drain is running")
				case err != nil:
					d.log.Warn("drain stopped early",
						zap.Int("processed", res.Processed),
						zap.Error(err),
					)
				}
			}
		}
	}()
}

// Drain sends every queued job and returns once none is left. A second call
// while a drain is running returns ErrAlreadyProcessing without touching
// any job.
func (d *Dispatcher) Drain(ctx context.Context) (models.DrainResult, error) {
	if !d.processing.CompareAndSwap(false, true) {
		metrics.Drains.WithLabelValues("skipped").Inc()
		return models.DrainResult{
			Message: "Queue is already being processed",
			Status:  d.Status(),
		}, ErrAlreadyProcessing
	}

	processed, err := func() (int, error) {
		defer d.processing.Store(false)
		return d.drain(ctx)
	}()

	outcome := "completed"
	if err != nil {
		outcome = "aborted"
	}
	metrics.Drains.WithLabelValues(outcome).Inc()

	// A job enqueued after the last NextQueued may have had its trigger
	// consumed by a drain attempt that lost the race against this one.
	if err == nil {
		if _, ok := d.store.NextQueued(); ok {
			d.Trigger()
		}
	}

	d.log.Info("email queue processing completed",
		zap.Int("sent", processed),
		zap.String("outcome", outcome),
	)

	return models.DrainResult{
		Message:   fmt.Sprintf("Queue processing completed. %d emails sent.", processed),
		Processed: processed,
		Status:    d.Status(),
	}, err
}

func (d *Dispatcher) drain(ctx context.Context) (processed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic while processing queue", zap.Any("panic", r))
			err = fmt.Errorf("drain panicked: %v", r)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		job, ok := d.store.NextQueued()
		if !ok {
			return processed, nil
		}

		// ----------------------------
		// Rate Limit
		// ----------------------------
		if d.opts.Limiter != nil {
			if err := d.opts.Limiter.Wait(ctx); err != nil {
				return processed, err
			}
		}

		if d.deliver(ctx, job) {
			processed++
		}
		metrics.ObserveQueue(d.store.Status(true))

		// ----------------------------
		// Pace
		// ----------------------------
		if err := pause(ctx, d.opts.Delay); err != nil {
			return processed, err
		}
	}
}

// deliver sends one job and settles it. Cancelling ctx does not cut an
// in-flight send short; the per-send timeout does.
func (d *Dispatcher) deliver(ctx context.Context, job models.EmailJob) bool {
	d.log.Info("processing email",
		zap.String("job_id", job.ID),
		zap.String("batch_id", job.BatchID),
		zap.String("to", job.ToEmail),
	)

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.SendTimeout)
	defer cancel()

	start := time.Now()
	err := d.send(sendCtx, job)
	metrics.SendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		d.log.Error("email send failed",
			zap.String("job_id", job.ID),
			zap.String("to", job.ToEmail),
			zap.Error(err),
		)
		if markErr := d.store.MarkFailed(job.ID, err.Error()); markErr != nil {
			d.log.Error("failed to update failure status",
				zap.String("job_id", job.ID),
				zap.Error(markErr),
			)
		}
		metrics.EmailFailures.WithLabelValues(failureReason(err)).Inc()
	} else {
		if markErr := d.store.MarkSent(job.ID); markErr != nil {
			d.log.Error("failed to update sent status",
				zap.String("job_id", job.ID),
				zap.Error(markErr),
			)
		}
		d.log.Info("email sent successfully",
			zap.String("job_id", job.ID),
			zap.String("to", job.ToEmail),
		)
		metrics.EmailsSent.Inc()
	}

	d.record(ctx, job.ID)
	return err == nil
}

func (d *Dispatcher) send(ctx context.Context, job models.EmailJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return d.transport.Send(ctx, job)
}

func (d *Dispatcher) record(ctx context.Context, id string) {
	if d.opts.Journal == nil {
		return
	}
	job, err := d.store.Get(id)
	if err != nil {
		return
	}

	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := d.opts.Journal.RecordDelivery(jctx, job); err != nil {
		d.log.Warn("failed to record delivery",
			zap.String("job_id", id),
			zap.Error(err),
		)
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, email.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
