package models

import "time"

type EmailStatus string

const (
	StatusQueued EmailStatus = "queued"
	StatusSent   EmailStatus = "sent"
	StatusFailed EmailStatus = "failed"
)

// JobInput is the per-recipient content handed to the job store.
type JobInput struct {
	ToEmail        string `json:"to_email"`
	ToName         string `json:"to_name"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentPath string `json:"attachment_path,omitempty"`
	SignaturePath  string `json:"signature_path,omitempty"`
}

type EmailJob struct {
	ID      string `json:"id"`
	BatchID string `json:"batch_id"`

	ToEmail        string `json:"to_email"`
	ToName         string `json:"to_name"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentPath string `json:"attachment_path,omitempty"`
	SignaturePath  string `json:"signature_path,omitempty"`

	Status   EmailStatus `json:"status"`
	Attempts int         `json:"attempts"`
	ErrorMsg string      `json:"error,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// QueueStatus is the aggregate view of the job store plus the dispatcher's busy flag.
type QueueStatus struct {
	Total      int  `json:"total"`
	Queued     int  `json:"queued"`
	Sent       int  `json:"sent"`
	Failed     int  `json:"failed"`
	Processing bool `json:"processing"`
}

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// BatchRequest is one submission: many recipients sharing the same content.
type BatchRequest struct {
	Recipients     []Recipient `json:"recipients"`
	Subject        string      `json:"subject"`
	Body           string      `json:"body"`
	AttachmentPath string      `json:"attachment_path,omitempty"`
	SignaturePath  string      `json:"signature_path,omitempty"`
}

type BatchReceipt struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

type DrainResult struct {
	Message   string      `json:"message"`
	Processed int         `json:"processed"`
	Status    QueueStatus `json:"status"`
}
