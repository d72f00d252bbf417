package models

import "time"

// Level is the severity of a reported entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// DefaultSource is stamped on entries when no source is configured.
const DefaultSource = "frontend"

// ParseLevel maps common spellings onto a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG", "trace", "TRACE":
		return LevelDebug
	case "info", "INFO", "log", "LOG":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR", "err":
		return LevelError
	case "fatal", "FATAL", "critical", "CRITICAL", "panic", "dpanic":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// IsException reports whether entries at this level belong on the exceptions channel.
func (l Level) IsException() bool {
	return l == LevelError || l == LevelFatal
}

// Entry is a single log or exception record as it travels on the wire.
// Entries are never mutated after construction; retry bookkeeping lives in the queue.
type Entry struct {
	Source        string                 `json:"source"`
	Level         Level                  `json:"level"`
	Message       string                 `json:"message"`
	Module        string                 `json:"module,omitempty"`
	Function      string                 `json:"function,omitempty"`
	RequestPath   string                 `json:"request_path,omitempty"`
	StatusCode    int                    `json:"status_code,omitempty"`
	DurationMs    int64                  `json:"duration_ms,omitempty"`
	ExceptionType string                 `json:"exception_type,omitempty"`
	Stack         string                 `json:"stack,omitempty"`
	TraceID       string                 `json:"trace_id"`
	UserID        string                 `json:"user_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// EntryContext carries the optional structured fields a call site can attach.
type EntryContext struct {
	Module      string
	Function    string
	RequestPath string
	StatusCode  int
	Duration    time.Duration
	Extra       map[string]interface{}
}

// StoredEntry is the persisted form of a queued entry, retry counter included.
type StoredEntry struct {
	Entry   Entry `json:"entry"`
	Retries int   `json:"retries"`
}
