package models

import "time"

// EntryKind tells which collection endpoint an entry arrived on.
type EntryKind string

const (
	KindLog       EntryKind = "log"
	KindException EntryKind = "exception"
)

// LogEntry represents a received frontend entry stored temporarily in SQLite
// and then transferred to Oracle tbl_frontend_log
type LogEntry struct {
	ID         int64     `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Kind       EntryKind `json:"kind"`
	ClientID   string    `json:"client_id"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	TraceID    string    `json:"trace_id"`
	Payload    string    `json:"payload"` // Full entry JSON as received (snake_case)
}
