package worker

import (
	"go.uber.org/zap"

	"CardScan/internal/metrics"
	"CardScan/internal/models"
)

type Enqueuer interface {
	Enqueue(inputs []models.JobInput) (string, int)
	Status(processing bool) models.QueueStatus
}

type Triggerer interface {
	Trigger()
}

// Submitter turns a batch request into queued jobs and wakes the dispatcher.
// It never waits for delivery.
type Submitter struct {
	Store   Enqueuer
	Trigger Triggerer
	Log     *zap.Logger
}

func (s *Submitter) Submit(req models.BatchRequest) models.BatchReceipt {
	inputs := make([]models.JobInput, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		inputs = append(inputs, models.JobInput{
			ToEmail:        r.Email,
			ToName:         r.Name,
			Subject:        req.Subject,
			Body:           req.Body,
			AttachmentPath: req.AttachmentPath,
			SignaturePath:  req.SignaturePath,
		})
	}

	batchID, count := s.Store.Enqueue(inputs)
	metrics.EmailsEnqueued.Add(float64(count))
	metrics.ObserveQueue(s.Store.Status(false))

	s.Log.Info("batch queued",
		zap.String("batch_id", batchID),
		zap.Int("count", count),
	)

	if count > 0 {
		s.Trigger.Trigger()
	}

	return models.BatchReceipt{BatchID: batchID, Count: count}
}
