package email

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"CardScan/internal/config"
	"CardScan/internal/models"
)

var (
	ErrNotConfigured = errors.New("SMTP credentials not configured")

	// ErrOutcomeUnknown marks a send abandoned on timeout while the relay
	// conversation was still open. The message may have been delivered.
	ErrOutcomeUnknown = errors.New("smtp send timed out, delivery outcome unknown")
)

// Transport delivers one job. Every failure comes back as an error; the
// caller records its text on the job.
type Transport interface {
	Send(ctx context.Context, job models.EmailJob) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender delivers over an SMTP relay, one connection per message.
// gomail upgrades to STARTTLS whenever the relay advertises it.
type Sender struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromEmail   string
	FromName    string
	DialRetries int

	Log *zap.Logger

	once   sync.Once
	dialer dialer
}

func NewSender(cfg *config.Config, log *zap.Logger) *Sender {
	return &Sender{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		FromEmail:   cfg.FromEmail,
		FromName:    cfg.FromName,
		DialRetries: cfg.SMTPDialRetries,
		Log:         log,
		dialer:      gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
	}
}

// smtpDialer builds the dialer from the exported fields on first use, so a
// Sender literal works as well as one from NewSender.
func (s *Sender) smtpDialer() dialer {
	s.once.Do(func() {
		if s.dialer == nil {
			s.dialer = gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
		}
	})
	return s.dialer
}

func (s *Sender) configured() bool {
	c := config.Config{SMTPUser: s.Username, SMTPPassword: s.Password}
	return c.SMTPConfigured()
}

// Compose renders the job into a message. Attachment and signature files
// that do not exist are left out.
func (s *Sender) Compose(job models.EmailJob) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.FromEmail, s.FromName)
	m.SetHeader("To", job.ToEmail)
	m.SetHeader("Subject", job.Subject)

	html := ToHTML(Personalize(job.Body, job.ToName))

	if fileExists(job.SignaturePath) {
		name := signatureName(job.SignaturePath)
		html += signatureTag(name)
		m.Embed(job.SignaturePath, gomail.Rename(name))
	}
	m.SetBody("text/html", html)

	if fileExists(job.AttachmentPath) {
		base := filepath.Base(job.AttachmentPath)
		m.Attach(job.AttachmentPath,
			gomail.Rename(base),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {`application/octet-stream; name="` + base + `"`},
			}),
		)
	}

	return m
}

// Send composes and delivers the job, retrying the dial with exponential
// backoff up to DialRetries extra times. ctx bounds the whole attempt.
func (s *Sender) Send(ctx context.Context, job models.EmailJob) error {
	if !s.configured() {
		return ErrNotConfigured
	}

	m := s.Compose(job)

	if s.Log != nil {
		s.Log.Debug("connecting to smtp relay",
			zap.String("host", s.Host),
			zap.Int("port", s.Port),
			zap.String("job_id", job.ID),
		)
	}

	d := s.smtpDialer()
	operation := func() error {
		return d.DialAndSend(m)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(s.DialRetries, 0))), ctx)

	// gomail has no context support; a hung relay keeps this goroutine
	// until its own I/O returns, and it may still deliver the message. The
	// caller is released on ctx with ErrOutcomeUnknown.
	done := make(chan error, 1)
	go func() {
		done <- backoff.Retry(operation, policy)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, ctx.Err())
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
