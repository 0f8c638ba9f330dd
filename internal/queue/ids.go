package queue

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator hands out job and batch identifiers.
type IDGenerator interface {
	JobID() string
	BatchID(now time.Time) string
}

// ulidGenerator produces "email_<ULID>" job ids from a monotonic entropy
// source, so ids minted within the same millisecond still sort and never repeat.
type ulidGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIDGenerator() IDGenerator {
	return &ulidGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ulidGenerator) JobID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return "email_" + ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// BatchID is batch_<YYYYMMDD_HHMMSS>_<8 hex>.
func (g *ulidGenerator) BatchID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "batch_" + now.Format("20060102_150405") + "_" + suffix
}
