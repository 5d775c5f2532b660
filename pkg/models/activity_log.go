package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
)

type ActivityResults struct {
	Source    string         `json:"source"`
	Action    string         `json:"action"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// ActivityLog is an append-only audit row.
type ActivityLog struct {
	ID           string                          `json:"id" db:"id"`
	FunctionName string                          `json:"function_name" db:"function_name"`
	Results      database.JSONB[ActivityResults] `json:"results" db:"results"`
	CreatedAt    time.Time                       `json:"created_at" db:"created_at"`
}
