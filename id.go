package cairn

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Used to correlate log lines and audit metadata within one request.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowStamp returns the current UTC time formatted for the TEXT timestamp
// columns in the session store.
func NowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
