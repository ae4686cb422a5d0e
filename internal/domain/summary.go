package domain

import (
	"time"

	"github.com/google/uuid"
)

// InitialSummaryText seeds every session's summary before the first answer.
const InitialSummaryText = "Session started. No responses yet."

// SessionSummary is the running interview summary, one per session, updated
// after each finished baseline question. MessageCount records how many
// transcript messages the summary reflects.
type SessionSummary struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	Text         string
	Themes       []string
	MessageCount int
	UpdatedAt    time.Time
	CreatedAt    time.Time
}
