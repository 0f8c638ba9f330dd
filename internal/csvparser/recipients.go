package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"CardScan/internal/models"
)

var (
	ErrNoEmailColumn = errors.New("csv must contain an Email column")
	ErrNoRows        = errors.New("csv must contain at least one data row")
)

// DefaultMaxRows caps a single upload.
const DefaultMaxRows = 1000

var nameHeaders = []string{"name", "full name", "full_name", "recipient name", "contact name"}

// ParseRecipients reads a header row with an "Email" column (case-insensitive)
// and an optional name column. Rows with a blank email or the wrong number of
// fields are skipped. Repeated addresses keep their first occurrence.
//
// maxRows limits how many recipients are returned; <= 0 means DefaultMaxRows.
func ParseRecipients(r io.Reader, maxRows int) ([]models.Recipient, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrNoEmailColumn
		}
		return nil, err
	}

	emailIdx, nameIdx := -1, -1
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, "email"), strings.EqualFold(h, "email address"):
			if emailIdx == -1 {
				emailIdx = i
			}
		case nameIdx == -1 && isNameHeader(h):
			nameIdx = i
		}
	}
	if emailIdx == -1 {
		return nil, ErrNoEmailColumn
	}

	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	seen := make(map[string]struct{})
	out := make([]models.Recipient, 0)

	for len(out) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(headers) {
			// malformed
			continue
		}

		addr := strings.TrimSpace(record[emailIdx])
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		rcpt := models.Recipient{Email: addr}
		if nameIdx >= 0 {
			rcpt.Name = strings.TrimSpace(record[nameIdx])
		}
		out = append(out, rcpt)
	}

	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

func isNameHeader(h string) bool {
	for _, n := range nameHeaders {
		if strings.EqualFold(h, n) {
			return true
		}
	}
	return false
}
