package logging

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-logrelay/internal/models"
	"go-logrelay/internal/reporter"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []models.Entry
}

func (s *recordingSender) Send(_ context.Context, _ string, e models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, e)
	return nil
}

type quotaError struct{}

func (*quotaError) Error() string { return "quota" }

func newTestHub(sender reporter.Sender) *reporter.Hub {
	store := reporter.NewMemoryStore()
	return reporter.NewHub(
		reporter.NewBuilder("agent", nil),
		reporter.New(reporter.LogsChannel(), sender, store, nil, zap.NewNop()),
		reporter.New(reporter.ExceptionsChannel(), sender, store, nil, zap.NewNop()),
	)
}

func TestRelayCore_LogLevelsAreQueued(t *testing.T) {
	sender := &recordingSender{}
	hub := newTestHub(sender)
	logger := zap.New(NewRelayCore(zapcore.InfoLevel, hub, time.Second)).Named("billing")

	logger.Debug("below threshold")
	logger.Info("charged",
		zap.String(FieldRequestPath, "/pay"),
		zap.Int(FieldStatusCode, 201),
		zap.Duration(FieldDuration, 150*time.Millisecond),
		zap.String("password", "hunter2"),
		zap.String("order", "A-1"),
	)

	pending := hub.Logs().Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 queued entry, got %d", len(pending))
	}
	e := pending[0]
	if e.Module != "billing" || e.RequestPath != "/pay" || e.StatusCode != 201 || e.DurationMs != 150 {
		t.Errorf("context not lifted: %+v", e)
	}
	if e.Extra["password"] != "*** HIDDEN ***" {
		t.Errorf("password not hidden: %v", e.Extra["password"])
	}
	if e.Extra["order"] != "A-1" {
		t.Errorf("extra field lost: %v", e.Extra)
	}
	if e.TraceID != hub.TraceID() || e.Source != "agent" {
		t.Errorf("session fields not stamped: %+v", e)
	}
	if len(sender.sent) != 0 {
		t.Errorf("log channel must not send immediately, sent %d", len(sender.sent))
	}
}

func TestRelayCore_ErrorsAreSentImmediately(t *testing.T) {
	sender := &recordingSender{}
	hub := newTestHub(sender)
	logger := zap.New(NewRelayCore(zapcore.InfoLevel, hub, time.Second)).With(zap.String(FieldModule, "checkout"))

	logger.Error("charge failed", zap.Error(&quotaError{}))

	if len(sender.sent) != 1 {
		t.Fatalf("expected immediate send, got %d", len(sender.sent))
	}
	e := sender.sent[0]
	if e.Level != models.LevelError || e.ExceptionType != "*logging.quotaError" {
		t.Errorf("unexpected exception entry: %+v", e)
	}
	if e.Message != "charge failed: quota" || e.Module != "checkout" {
		t.Errorf("unexpected message/module: %q %q", e.Message, e.Module)
	}
	if hub.Exceptions().Len() != 0 {
		t.Errorf("sent exception should leave the queue")
	}
}

func TestZapToLevel(t *testing.T) {
	tests := []struct {
		in   zapcore.Level
		want models.Level
	}{
		{zapcore.DebugLevel, models.LevelDebug},
		{zapcore.InfoLevel, models.LevelInfo},
		{zapcore.WarnLevel, models.LevelWarn},
		{zapcore.ErrorLevel, models.LevelError},
		{zapcore.DPanicLevel, models.LevelError},
		{zapcore.PanicLevel, models.LevelFatal},
		{zapcore.FatalLevel, models.LevelFatal},
	}
	for _, tt := range tests {
		if got := zapToLevel(tt.in); got != tt.want {
			t.Errorf("zapToLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
