package logging

import (
	"context"
	"fmt"
	"os"
	"time"

	"go-logrelay/internal/models"
	"go-logrelay/internal/reporter"

	"go.uber.org/zap/zapcore"
)

const defaultSubmitTimeout = 2 * time.Second

// Field keys lifted out of zap fields into first-class entry columns.
const (
	FieldModule      = "module"
	FieldFunction    = "function"
	FieldRequestPath = "request_path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration"
)

// relayCore implements zapcore.Core and forwards every enabled entry to a reporter.Hub.
// Loggers handed to the hub's own reporters must not include this core.
type relayCore struct {
	zapcore.LevelEnabler
	hub     *reporter.Hub
	timeout time.Duration
	fields  []zapcore.Field // Fields added via logger.With()
}

// NewRelayCore creates a core that turns zap entries into relay entries. submitTimeout bounds
// the immediate send of error-level entries; the entry stays queued when it expires.
func NewRelayCore(enab zapcore.LevelEnabler, hub *reporter.Hub, submitTimeout time.Duration) zapcore.Core {
	if submitTimeout <= 0 {
		submitTimeout = defaultSubmitTimeout
	}
	return &relayCore{LevelEnabler: enab, hub: hub, timeout: submitTimeout}
}

func (c *relayCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &relayCore{
		LevelEnabler: c.LevelEnabler,
		hub:          c.hub,
		timeout:      c.timeout,
		fields:       make([]zapcore.Field, 0, len(c.fields)+len(fields)),
	}
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return clone
}

func (c *relayCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *relayCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	entry := c.buildEntry(ent, append(append([]zapcore.Field(nil), c.fields...), fields...))

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.hub.Submit(ctx, entry); err != nil {
		// The application logger cannot log its own delivery failures.
		fmt.Fprintf(os.Stderr, "[WARN] relay core dropped entry: %v\n", err)
	}
	return nil
}

func (c *relayCore) Sync() error { return nil }

func (c *relayCore) buildEntry(ent zapcore.Entry, fields []zapcore.Field) models.Entry {
	ec := models.EntryContext{Module: ent.LoggerName}
	if ent.Caller.Defined {
		ec.Function = ent.Caller.Function
	}

	var cause error
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		switch {
		case f.Key == FieldModule && f.Type == zapcore.StringType:
			ec.Module = f.String
		case f.Key == FieldFunction && f.Type == zapcore.StringType:
			ec.Function = f.String
		case f.Key == FieldRequestPath && f.Type == zapcore.StringType:
			ec.RequestPath = f.String
		case f.Key == FieldStatusCode && isIntField(f):
			ec.StatusCode = int(f.Integer)
		case f.Key == FieldDuration && f.Type == zapcore.DurationType:
			ec.Duration = time.Duration(f.Integer)
		case f.Type == zapcore.ErrorType && cause == nil:
			if err, ok := f.Interface.(error); ok {
				cause = err
			}
			f.AddTo(enc)
		default:
			f.AddTo(enc)
		}
	}
	if len(enc.Fields) > 0 {
		ec.Extra = enc.Fields
	}

	b := c.hub.Builder()
	level := zapToLevel(ent.Level)
	if !level.IsException() {
		return b.Log(level, ent.Message, ec)
	}
	excType, message := "", ent.Message
	if cause != nil {
		excType = reporter.ExceptionType(cause)
		message = ent.Message + ": " + cause.Error()
	}
	return b.ExceptionText(level, excType, message, ent.Stack, ec)
}

func isIntField(f zapcore.Field) bool {
	switch f.Type {
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return true
	}
	return false
}

func zapToLevel(l zapcore.Level) models.Level {
	switch {
	case l < zapcore.InfoLevel:
		return models.LevelDebug
	case l == zapcore.InfoLevel:
		return models.LevelInfo
	case l == zapcore.WarnLevel:
		return models.LevelWarn
	case l <= zapcore.DPanicLevel:
		return models.LevelError
	default:
		return models.LevelFatal
	}
}
