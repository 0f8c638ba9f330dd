package db

import (
	"context"

	"CardScan/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, conn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// EnsureSchema creates the delivery journal table. The business card tables
// belong to the OCR pipeline and are only read here.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS email_deliveries (
		   job_id      TEXT PRIMARY KEY,
		   batch_id    TEXT NOT NULL,
		   to_email    TEXT NOT NULL,
		   to_name     TEXT NOT NULL DEFAULT '',
		   subject     TEXT NOT NULL DEFAULT '',
		   status      TEXT NOT NULL,
		   attempts    INT  NOT NULL DEFAULT 0,
		   error_msg   TEXT,
		   created_at  TIMESTAMPTZ NOT NULL,
		   sent_at     TIMESTAMPTZ,
		   recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		 );
		 CREATE INDEX IF NOT EXISTS email_deliveries_batch_idx ON email_deliveries (batch_id);`,
	)
	return err
}

// RecordDelivery upserts the settled state of one job.
func (s *Store) RecordDelivery(ctx context.Context, job models.EmailJob) error {
	var errMsg *string
	if job.ErrorMsg != "" {
		errMsg = &job.ErrorMsg
	}

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO email_deliveries
		 (job_id, batch_id, to_email, to_name, subject, status, attempts, error_msg, created_at, sent_at, recorded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
		 ON CONFLICT (job_id) DO UPDATE
		 SET status=EXCLUDED.status,
		     attempts=EXCLUDED.attempts,
		     error_msg=EXCLUDED.error_msg,
		     sent_at=EXCLUDED.sent_at,
		     recorded_at=NOW()`,
		job.ID,
		job.BatchID,
		job.ToEmail,
		job.ToName,
		job.Subject,
		string(job.Status),
		job.Attempts,
		errMsg,
		job.CreatedAt,
		job.SentAt,
	)

	return err
}

// Deliveries returns the journal rows of one batch, oldest first.
func (s *Store) Deliveries(ctx context.Context, batchID string) ([]models.EmailJob, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT job_id, batch_id, to_email, to_name, subject, status, attempts,
		        COALESCE(error_msg, ''), created_at, sent_at
		 FROM email_deliveries
		 WHERE batch_id=$1
		 ORDER BY created_at, job_id`,
		batchID,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.EmailJob, error) {
		var j models.EmailJob
		var status string
		err := row.Scan(&j.ID, &j.BatchID, &j.ToEmail, &j.ToName, &j.Subject,
			&status, &j.Attempts, &j.ErrorMsg, &j.CreatedAt, &j.SentAt)
		j.Status = models.EmailStatus(status)
		return j, err
	})
}

const contactColumns = `COALESCE(NULLIF(name, ''), 'No Name'),
        email,
        COALESCE(NULLIF(company, ''), 'No Company'),
        COALESCE(NULLIF(designation, ''), 'No Designation'),
        COALESCE(NULLIF(phone, ''), 'No Phone'),
        COALESCE(NULLIF(address, ''), 'No Address')`

// Contacts lists every scanned card with an email address, by name.
func (s *Store) Contacts(ctx context.Context) ([]models.Contact, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+contactColumns+`
		 FROM business_cards
		 WHERE email IS NOT NULL AND email <> ''
		 ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

// ContactsByBatch lists the contacts scanned in one OCR upload batch,
// newest first.
func (s *Store) ContactsByBatch(ctx context.Context, batchID string) ([]models.Contact, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+contactColumns+`
		 FROM business_cards
		 WHERE batch_id=$1 AND email IS NOT NULL AND email <> ''
		 ORDER BY id DESC`,
		batchID,
	)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

// Names lists the distinct people who have created scanning events.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT DISTINCT name
		 FROM events
		 WHERE name IS NOT NULL AND name <> ''
		 ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// EventsByName lists the events one person created, newest first.
func (s *Store) EventsByName(ctx context.Context, name string) ([]models.Event, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, COALESCE(event, ''), COALESCE(batch_id, ''), COALESCE(team, '')
		 FROM events
		 WHERE name=$1
		 ORDER BY id DESC`,
		name,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Event, error) {
		var e models.Event
		err := row.Scan(&e.EventID, &e.EventName, &e.BatchID, &e.Team)
		return e, err
	})
}

func collectContacts(rows pgx.Rows) ([]models.Contact, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Contact, error) {
		var c models.Contact
		err := row.Scan(&c.Name, &c.Email, &c.Company, &c.Designation, &c.Phone, &c.Address)
		return c, err
	})
}
