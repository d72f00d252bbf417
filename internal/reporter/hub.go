package reporter

import (
	"context"
	"errors"

	"go-logrelay/internal/models"
)

// Hub pairs the logs and exceptions reporters of one session behind a single entry point.
type Hub struct {
	builder    *Builder
	logs       *Reporter
	exceptions *Reporter
}

// HubStats holds the stats of both channels.
type HubStats struct {
	Logs       Stats `json:"logs"`
	Exceptions Stats `json:"exceptions"`
}

// NewHub wires a Builder and the two channel reporters together.
func NewHub(builder *Builder, logs, exceptions *Reporter) *Hub {
	return &Hub{builder: builder, logs: logs, exceptions: exceptions}
}

func (h *Hub) Builder() *Builder       { return h.builder }
func (h *Hub) Logs() *Reporter         { return h.logs }
func (h *Hub) Exceptions() *Reporter   { return h.exceptions }
func (h *Hub) TraceID() string         { return h.builder.TraceID() }
func (h *Hub) SetUserID(userID string) { h.builder.SetUserID(userID) }

// LoadFromStorage restores both queues and returns the total number of entries restored.
func (h *Hub) LoadFromStorage(ctx context.Context) int {
	return h.logs.LoadFromStorage(ctx) + h.exceptions.LoadFromStorage(ctx)
}

// Start launches both flush loops.
func (h *Hub) Start() {
	h.logs.Start()
	h.exceptions.Start()
}

// Submit routes an already built entry by level: error and fatal go to the exceptions channel.
func (h *Hub) Submit(ctx context.Context, entry models.Entry) error {
	if entry.Level.IsException() {
		return h.exceptions.Report(ctx, entry)
	}
	return h.logs.Report(ctx, entry)
}

// Log builds and submits a log entry.
func (h *Hub) Log(ctx context.Context, level models.Level, message string, ec models.EntryContext) error {
	return h.Submit(ctx, h.builder.Log(level, message, ec))
}

// Exception builds and submits an exception entry for err.
func (h *Hub) Exception(ctx context.Context, err error, stack string, ec models.EntryContext) error {
	return h.exceptions.Report(ctx, h.builder.Exception(err, stack, ec))
}

// Flush flushes both channels once.
func (h *Hub) Flush(ctx context.Context) (logs, exceptions FlushResult) {
	return h.logs.Flush(ctx), h.exceptions.Flush(ctx)
}

// Stats returns counters for both channels.
func (h *Hub) Stats() HubStats {
	return HubStats{Logs: h.logs.Stats(), Exceptions: h.exceptions.Stats()}
}

// Close closes both channels, exceptions first so they get the larger share of ctx.
func (h *Hub) Close(ctx context.Context) error {
	return errors.Join(h.exceptions.Close(ctx), h.logs.Close(ctx))
}
