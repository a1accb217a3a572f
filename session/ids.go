// ABOUTME: Identifier helpers: UUID run IDs and ULID ingestion-log entry IDs.
// ABOUTME: Centralizes ID creation so all code uses the same entropy source.
package session

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// newEntryID returns a time-ordered ID for a log entry.
func newEntryID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
