package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Placeholder credentials shipped in the sample .env. A sender still carrying
// them refuses to dial.
const (
	PlaceholderSMTPUser     = "your_email@gmail.com"
	PlaceholderSMTPPassword = "your_app_password"
)

type Config struct {
	// ----------------------------
	// SMTP
	// ----------------------------
	SMTPHost        string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort        int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser        string `envconfig:"SMTP_USERNAME" default:"your_email@gmail.com"`
	SMTPPassword    string `envconfig:"SMTP_PASSWORD" default:"your_app_password"`
	FromEmail       string `envconfig:"FROM_EMAIL" default:"your_email@gmail.com"`
	FromName        string `envconfig:"FROM_NAME" default:"ReCircle Team"`
	SMTPDialRetries int    `envconfig:"SMTP_DIAL_RETRIES" default:"0"`

	// ----------------------------
	// Dispatcher
	// ----------------------------
	SendDelay         time.Duration `envconfig:"SEND_DELAY" default:"2s"`
	SendTimeout       time.Duration `envconfig:"SEND_TIMEOUT" default:"60s"`
	SendRatePerMinute int           `envconfig:"SEND_RATE_PER_MINUTE" default:"30"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort     string   `envconfig:"API_PORT" default:"8000"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	Debug       bool     `envconfig:"DEBUG" default:"false"`

	// ----------------------------
	// Attachments
	// ----------------------------
	AttachmentDir  string `envconfig:"ATTACHMENT_DIR" default:"./attachments"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database (optional)
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}

// SMTPConfigured reports whether real relay credentials were supplied.
func (c *Config) SMTPConfigured() bool {
	if c.SMTPUser == "" || c.SMTPPassword == "" {
		return false
	}
	return c.SMTPUser != PlaceholderSMTPUser && c.SMTPPassword != PlaceholderSMTPPassword
}
