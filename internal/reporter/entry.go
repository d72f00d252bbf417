package reporter

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"unicode/utf8"

	"go-logrelay/internal/models"

	"github.com/google/uuid"
)

const (
	maxMessageRunes = 4000
	maxStackRunes   = 16000
	truncatedSuffix = "... (truncated)"
	hiddenValue     = "*** HIDDEN ***"
)

var (
	sensitiveKeyPattern = regexp.MustCompile(`(?i)(password|passwd|secret|token|authorization|cookie)`)
	inlineSecretPattern = regexp.MustCompile(`(?i)("(?:password|passwd|secret|token|access_token|refresh_token)"\s*:\s*")[^"]*(")`)
)

// Builder stamps session-wide fields on every entry it constructs.
type Builder struct {
	source  string
	traceID string
	clock   Clock

	mu     sync.RWMutex
	userID string
}

// NewBuilder creates a Builder with a fresh trace id for this session.
func NewBuilder(source string, clock Clock) *Builder {
	if source == "" {
		source = models.DefaultSource
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Builder{source: source, traceID: uuid.NewString(), clock: clock}
}

// TraceID returns the id shared by all entries of this session.
func (b *Builder) TraceID() string { return b.traceID }

// SetUserID attaches a user id to entries built from now on. Empty clears it.
func (b *Builder) SetUserID(id string) {
	b.mu.Lock()
	b.userID = id
	b.mu.Unlock()
}

// Log builds a routine log entry.
func (b *Builder) Log(level models.Level, message string, ec models.EntryContext) models.Entry {
	return b.build(level, message, "", "", ec)
}

// Exception builds an error-level entry from err.
func (b *Builder) Exception(err error, stack string, ec models.EntryContext) models.Entry {
	if err == nil {
		err = errors.New("unknown error")
	}
	return b.build(models.LevelError, err.Error(), ExceptionType(err), stack, ec)
}

// ExceptionText builds an exception entry from already-rendered parts, as read from a log line.
func (b *Builder) ExceptionText(level models.Level, excType, message, stack string, ec models.EntryContext) models.Entry {
	if !level.IsException() {
		level = models.LevelError
	}
	return b.build(level, message, excType, stack, ec)
}

func (b *Builder) build(level models.Level, message, excType, stack string, ec models.EntryContext) models.Entry {
	b.mu.RLock()
	userID := b.userID
	b.mu.RUnlock()

	return models.Entry{
		Source:        b.source,
		Level:         models.ParseLevel(string(level)),
		Message:       truncate(maskInlineSecrets(message), maxMessageRunes),
		Module:        ec.Module,
		Function:      ec.Function,
		RequestPath:   ec.RequestPath,
		StatusCode:    ec.StatusCode,
		DurationMs:    ec.Duration.Milliseconds(),
		ExceptionType: excType,
		Stack:         truncate(stack, maxStackRunes),
		TraceID:       b.traceID,
		UserID:        userID,
		Timestamp:     b.clock.Now(),
		Extra:         sanitizeExtra(ec.Extra),
	}
}

// ExceptionType names the innermost wrapped error's type.
func ExceptionType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + truncatedSuffix
}

func maskInlineSecrets(s string) string {
	return inlineSecretPattern.ReplaceAllString(s, `$1***$2`)
}

// sanitizeExtra returns a deep copy of m with sensitive keys hidden.
func sanitizeExtra(m map[string]interface{}) map[string]interface{} {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if sensitiveKeyPattern.MatchString(k) {
			out[k] = hiddenValue
			continue
		}
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = sanitizeExtra(val)
		case string:
			out[k] = maskInlineSecrets(val)
		default:
			out[k] = v
		}
	}
	return out
}
