// Package csvparser reads recipient lists exported from the card scanner.
package csvparser

import (
	"fmt"
	"os"

	"CardScan/internal/models"
)

// ParseFile is ParseRecipients over the file at path.
func ParseFile(path string, maxRows int) ([]models.Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recipients, err := ParseRecipients(f, maxRows)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return recipients, nil
}
