package reporter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go-logrelay/internal/models"
)

type quotaError struct{ limit int }

func (e *quotaError) Error() string { return fmt.Sprintf("quota %d exceeded", e.limit) }

func TestBuilder_StampsSessionFields(t *testing.T) {
	clock := newManualClock()
	b := NewBuilder("", clock)
	b.SetUserID("u-42")

	e := b.Log(models.LevelWarn, "slow request", models.EntryContext{
		Module:      "orders",
		Function:    "List",
		RequestPath: "/api/v1/orders",
		StatusCode:  200,
		Duration:    1500 * time.Millisecond,
	})

	if e.Source != models.DefaultSource {
		t.Errorf("expected default source, got %q", e.Source)
	}
	if e.TraceID == "" || e.TraceID != b.TraceID() {
		t.Errorf("expected session trace id, got %q", e.TraceID)
	}
	if e.UserID != "u-42" {
		t.Errorf("expected user id, got %q", e.UserID)
	}
	if e.DurationMs != 1500 || e.StatusCode != 200 || e.Module != "orders" {
		t.Errorf("context not copied: %+v", e)
	}
	if !e.Timestamp.Equal(clock.Now()) {
		t.Errorf("expected clock timestamp, got %v", e.Timestamp)
	}

	b.SetUserID("")
	if got := b.Log(models.LevelInfo, "x", models.EntryContext{}).UserID; got != "" {
		t.Errorf("expected cleared user id, got %q", got)
	}
}

func TestBuilder_TraceIDIsPerSession(t *testing.T) {
	if NewBuilder("", nil).TraceID() == NewBuilder("", nil).TraceID() {
		t.Error("expected distinct trace ids per builder")
	}
}

func TestBuilder_Exception(t *testing.T) {
	b := NewBuilder("agent", newManualClock())
	err := fmt.Errorf("sync orders: %w", &quotaError{limit: 10})

	e := b.Exception(err, "goroutine 1 [running]", models.EntryContext{})
	if e.Level != models.LevelError {
		t.Errorf("expected error level, got %s", e.Level)
	}
	if e.ExceptionType != "*reporter.quotaError" {
		t.Errorf("expected innermost type, got %q", e.ExceptionType)
	}
	if e.Message != "sync orders: quota 10 exceeded" || e.Stack == "" || e.Source != "agent" {
		t.Errorf("unexpected entry %+v", e)
	}

	if got := b.Exception(nil, "", models.EntryContext{}).Message; got != "unknown error" {
		t.Errorf("expected placeholder for nil error, got %q", got)
	}
	if got := b.ExceptionText(models.LevelInfo, "TypeError", "x is undefined", "", models.EntryContext{}).Level; got != models.LevelError {
		t.Errorf("exception text must be at least error level, got %s", got)
	}
	if got := b.ExceptionText(models.LevelFatal, "", "boom", "", models.EntryContext{}).Level; got != models.LevelFatal {
		t.Errorf("expected fatal to be kept, got %s", got)
	}
}

func TestBuilder_Sanitizes(t *testing.T) {
	b := NewBuilder("", newManualClock())

	tests := []struct {
		name  string
		check func(t *testing.T)
	}{
		{
			name: "unknown level falls back to info",
			check: func(t *testing.T) {
				if got := b.Log(models.Level("verbose"), "x", models.EntryContext{}).Level; got != models.LevelInfo {
					t.Errorf("got %s", got)
				}
			},
		},
		{
			name: "long message is truncated",
			check: func(t *testing.T) {
				msg := strings.Repeat("é", maxMessageRunes+10)
				got := b.Log(models.LevelInfo, msg, models.EntryContext{}).Message
				if !strings.HasSuffix(got, truncatedSuffix) {
					t.Errorf("expected truncation suffix")
				}
				if n := len([]rune(strings.TrimSuffix(got, truncatedSuffix))); n != maxMessageRunes {
					t.Errorf("expected %d runes, got %d", maxMessageRunes, n)
				}
			},
		},
		{
			name: "inline secrets are masked",
			check: func(t *testing.T) {
				got := b.Log(models.LevelInfo, `login body {"user":"a","password":"hunter2"}`, models.EntryContext{}).Message
				if strings.Contains(got, "hunter2") || !strings.Contains(got, `"password":"***"`) {
					t.Errorf("got %q", got)
				}
			},
		},
		{
			name: "sensitive extra keys are hidden",
			check: func(t *testing.T) {
				extra := map[string]interface{}{
					"Authorization": "Bearer abc",
					"page":          "checkout",
					"nested":        map[string]interface{}{"refreshToken": "r", "step": 2},
				}
				got := b.Log(models.LevelInfo, "x", models.EntryContext{Extra: extra}).Extra
				if got["Authorization"] != hiddenValue || got["page"] != "checkout" {
					t.Errorf("got %v", got)
				}
				nested := got["nested"].(map[string]interface{})
				if nested["refreshToken"] != hiddenValue || nested["step"] != 2 {
					t.Errorf("got nested %v", nested)
				}
				if extra["Authorization"] != "Bearer abc" {
					t.Errorf("caller map must not be modified")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.check)
	}
}

func TestExceptionType_Unwrapped(t *testing.T) {
	if got := ExceptionType(errors.New("plain")); got != "*errors.errorString" {
		t.Errorf("got %q", got)
	}
}
