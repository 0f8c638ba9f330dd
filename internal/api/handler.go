package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"CardScan/internal/attachments"
	"CardScan/internal/models"
	"CardScan/internal/queue"
	"CardScan/internal/worker"
)

type Submitter interface {
	Submit(req models.BatchRequest) models.BatchReceipt
}

type Dispatcher interface {
	Drain(ctx context.Context) (models.DrainResult, error)
	Status() models.QueueStatus
	Processing() bool
}

type JobLister interface {
	Jobs() []models.EmailJob
	Batch(batchID string) []models.EmailJob
}

type AttachmentStore interface {
	Save(name string, r io.Reader) (attachments.Attachment, error)
	List() ([]attachments.Attachment, error)
}

// DeliveryJournal is the persisted record of settled jobs. nil when no
// database is configured.
type DeliveryJournal interface {
	Deliveries(ctx context.Context, batchID string) ([]models.EmailJob, error)
}

// ContactDirectory is backed by the card database. nil when none is configured.
type ContactDirectory interface {
	Contacts(ctx context.Context) ([]models.Contact, error)
	ContactsByBatch(ctx context.Context, batchID string) ([]models.Contact, error)
	Names(ctx context.Context) ([]string, error)
	EventsByName(ctx context.Context, name string) ([]models.Event, error)
}

type Handler struct {
	Submitter   Submitter
	Dispatcher  Dispatcher
	Jobs        JobLister
	Attachments AttachmentStore
	Contacts    ContactDirectory
	Journal     DeliveryJournal
	Log         *zap.Logger
}

func writeError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func (h *Handler) SendEmails(c *gin.Context) {
	var req models.BatchRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}

	receipt := h.Submitter.Submit(req)

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "Added " + strconv.Itoa(receipt.Count) + " emails to queue",
		"batch_id": receipt.BatchID,
		"count":    receipt.Count,
		"status":   "processing_started",
	})
}

func (h *Handler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Dispatcher.Status())
}

func (h *Handler) QueueDetails(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queue":  h.Jobs.Jobs(),
		"status": h.Dispatcher.Status(),
	})
}

func (h *Handler) BatchDetails(c *gin.Context) {
	batchID := c.Param("batch_id")

	jobs := h.Jobs.Batch(batchID)
	if len(jobs) == 0 {
		writeError(c, http.StatusNotFound, "not_found", errors.New("batch not found: "+batchID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batch_id": batchID,
		"jobs":     jobs,
		"status":   queue.BatchStatus(jobs, h.Dispatcher.Processing()),
	})
}

// BatchDeliveries reads the journal, which outlives process restarts.
func (h *Handler) BatchDeliveries(c *gin.Context) {
	if h.Journal == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", errNoDatabase)
		return
	}

	batchID := c.Param("batch_id")
	jobs, err := h.Journal.Deliveries(c.Request.Context(), batchID)
	if err != nil {
		h.Log.Error("failed to fetch deliveries", zap.String("batch_id", batchID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batchID, "deliveries": jobs})
}

// ProcessQueue runs a drain on the request goroutine. A client disconnect
// does not abort it.
func (h *Handler) ProcessQueue(c *gin.Context) {
	res, err := h.Dispatcher.Drain(context.WithoutCancel(c.Request.Context()))

	switch {
	case errors.Is(err, worker.ErrAlreadyProcessing):
		c.JSON(http.StatusConflict, gin.H{"message": res.Message, "status": res.Status})
	case err != nil:
		h.Log.Error("manual drain failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", err)
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (h *Handler) UploadAttachment(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	defer f.Close()

	a, err := h.Attachments.Save(fh.Filename, f)
	switch {
	case errors.Is(err, attachments.ErrUnsupportedType):
		writeError(c, http.StatusBadRequest, "unsupported_type", err)
		return
	case errors.Is(err, attachments.ErrTooLarge):
		writeError(c, http.StatusRequestEntityTooLarge, "too_large", err)
		return
	case err != nil:
		h.Log.Error("attachment upload failed", zap.String("filename", fh.Filename), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	h.Log.Info("attachment uploaded", zap.String("filename", a.Filename), zap.Int64("size", a.Size))

	c.JSON(http.StatusOK, gin.H{
		"message":   "File uploaded successfully",
		"filename":  a.Filename,
		"file_path": a.FilePath,
		"size":      a.Size,
	})
}

func (h *Handler) ListAttachments(c *gin.Context) {
	list, err := h.Attachments.List()
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": list})
}

var errNoDatabase = errors.New("database not configured")

func (h *Handler) ListContacts(c *gin.Context) {
	if h.Contacts == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", errNoDatabase)
		return
	}

	contacts, err := h.Contacts.Contacts(c.Request.Context())
	if err != nil {
		h.Log.Error("failed to fetch contacts", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (h *Handler) ListContactsByBatch(c *gin.Context) {
	if h.Contacts == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", errNoDatabase)
		return
	}

	batchID := c.Param("batch_id")
	contacts, err := h.Contacts.ContactsByBatch(c.Request.Context(), batchID)
	if err != nil {
		h.Log.Error("failed to fetch contacts by batch", zap.String("batch_id", batchID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (h *Handler) ListNames(c *gin.Context) {
	if h.Contacts == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", errNoDatabase)
		return
	}

	names, err := h.Contacts.Names(c.Request.Context())
	if err != nil {
		h.Log.Error("failed to fetch names", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": names})
}

func (h *Handler) ListEventsByName(c *gin.Context) {
	if h.Contacts == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", errNoDatabase)
		return
	}

	name := c.Param("name")
	events, err := h.Contacts.EventsByName(c.Request.Context(), name)
	if err != nil {
		h.Log.Error("failed to fetch events", zap.String("name", name), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
