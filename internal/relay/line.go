package relay

import (
	"encoding/json"
	"strings"
	"time"

	"go-logrelay/internal/models"
	"go-logrelay/internal/reporter"
	"go-logrelay/internal/utils"
)

// lineRecord is a structured log line after its keys were normalized to snake_case.
type lineRecord struct {
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	Msg           string                 `json:"msg"`
	Module        string                 `json:"module"`
	Function      string                 `json:"function"`
	RequestPath   string                 `json:"request_path"`
	StatusCode    int                    `json:"status_code"`
	DurationMs    int64                  `json:"duration_ms"`
	ExceptionType string                 `json:"exception_type"`
	Stack         string                 `json:"stack"`
	Extra         map[string]interface{} `json:"extra"`
}

// ParseLine turns one input line into an entry. JSON objects in either key casing are decoded;
// anything else becomes an info entry carrying the raw line. Blank lines are skipped.
func ParseLine(b *reporter.Builder, line string) (models.Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.Entry{}, false
	}
	if !strings.HasPrefix(line, "{") {
		return b.Log(models.LevelInfo, line, models.EntryContext{}), true
	}

	normalized, err := utils.ToSnakeKeys([]byte(line))
	if err != nil {
		return b.Log(models.LevelInfo, line, models.EntryContext{}), true
	}
	var rec lineRecord
	if err := json.Unmarshal(normalized, &rec); err != nil {
		return b.Log(models.LevelInfo, line, models.EntryContext{}), true
	}

	message := rec.Message
	if message == "" {
		message = rec.Msg
	}
	if message == "" {
		message = line
	}
	ec := models.EntryContext{
		Module:      rec.Module,
		Function:    rec.Function,
		RequestPath: rec.RequestPath,
		StatusCode:  rec.StatusCode,
		Duration:    time.Duration(rec.DurationMs) * time.Millisecond,
		Extra:       rec.Extra,
	}
	level := models.ParseLevel(rec.Level)
	if level.IsException() || rec.ExceptionType != "" || rec.Stack != "" {
		return b.ExceptionText(level, rec.ExceptionType, message, rec.Stack, ec), true
	}
	return b.Log(level, message, ec), true
}
