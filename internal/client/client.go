// Package client talks to the mailer's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"CardScan/internal/attachments"
	"CardScan/internal/models"
)

// ErrBusy is returned by ProcessQueue when a drain is already running.
var ErrBusy = errors.New("queue is already being processed")

// APIError is a non-2xx response carrying the server's {error, message} body.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Minute},
	}
}

type QueueDetails struct {
	Queue  []models.EmailJob  `json:"queue"`
	Status models.QueueStatus `json:"status"`
}

type BatchDetails struct {
	BatchID string             `json:"batch_id"`
	Jobs    []models.EmailJob  `json:"jobs"`
	Status  models.QueueStatus `json:"status"`
}

func (c *Client) SendEmails(ctx context.Context, req models.BatchRequest) (models.BatchReceipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.BatchReceipt{}, err
	}

	var out models.BatchReceipt
	err = c.do(ctx, http.MethodPost, "/api/v1/send-emails", "application/json", bytes.NewReader(body), &out)
	return out, err
}

func (c *Client) QueueStatus(ctx context.Context) (models.QueueStatus, error) {
	var out models.QueueStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/queue-status", "", nil, &out)
	return out, err
}

func (c *Client) QueueDetails(ctx context.Context) (QueueDetails, error) {
	var out QueueDetails
	err := c.do(ctx, http.MethodGet, "/api/v1/queue-details", "", nil, &out)
	return out, err
}

func (c *Client) Batch(ctx context.Context, batchID string) (BatchDetails, error) {
	var out BatchDetails
	err := c.do(ctx, http.MethodGet, "/api/v1/batches/"+url.PathEscape(batchID), "", nil, &out)
	return out, err
}

// ProcessQueue blocks until the server finishes the drain.
func (c *Client) ProcessQueue(ctx context.Context) (models.DrainResult, error) {
	var out models.DrainResult
	err := c.do(ctx, http.MethodPost, "/api/v1/process-queue", "", nil, &out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return out, ErrBusy
	}
	return out, err
}

// UploadAttachment sends a local file and returns where the server stored it.
func (c *Client) UploadAttachment(ctx context.Context, path string) (attachments.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return attachments.Attachment{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return attachments.Attachment{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return attachments.Attachment{}, err
	}
	if err := mw.Close(); err != nil {
		return attachments.Attachment{}, err
	}

	var out attachments.Attachment
	err = c.do(ctx, http.MethodPost, "/api/v1/upload-attachment", mw.FormDataContentType(), &buf, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if resp.StatusCode == http.StatusConflict && out != nil {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
