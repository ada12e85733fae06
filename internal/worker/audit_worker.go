// Package worker drains the audit queue into durable storage and mirrors
// the affected user's current-month rollup to the export dashboard.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/audit"
	"bilancio/internal/core"
	"bilancio/internal/export"
)

// SummarySource recomputes one user's month rollup for mirroring.
type SummarySource interface {
	MonthSummary(ctx context.Context, userID string, year, month int) (core.MonthlySummary, error)
}

// AuditWorker persists consumed audit entries and keeps the dashboard row
// for the entry's user fresh.
type AuditWorker struct {
	sink      audit.Sink
	summaries SummarySource
	mirror    export.SummaryWriter
	now       func() time.Time
}

// NewAuditWorker creates the worker. summaries and mirror may be nil when
// no dashboard is configured.
func NewAuditWorker(sink audit.Sink, summaries SummarySource, mirror export.SummaryWriter) *AuditWorker {
	return &AuditWorker{
		sink:      sink,
		summaries: summaries,
		mirror:    mirror,
		now:       time.Now,
	}
}

// HandleAuditMessage processes a single audit message from AMQP. A storage
// failure is returned so the delivery gets requeued; a mirror failure is
// logged and swallowed.
func (w *AuditWorker) HandleAuditMessage(ctx context.Context, msg *amqp.AuditMessage) error {
	if w.sink == nil {
		return fmt.Errorf("worker has no audit sink")
	}

	slog.InfoContext(ctx, "Processing audit message",
		"user_id", msg.Entry.UserID,
		"kind", msg.Entry.Kind,
		"prompt_hash", msg.Entry.PromptHash)

	if err := w.sink.Append(ctx, msg.Entry); err != nil {
		return fmt.Errorf("persist audit entry: %w", err)
	}

	w.refreshDashboard(ctx, msg.Entry.UserID)
	return nil
}

func (w *AuditWorker) refreshDashboard(ctx context.Context, userID string) {
	if w.summaries == nil || w.mirror == nil {
		return
	}

	now := w.now().UTC()
	summary, err := w.summaries.MonthSummary(ctx, userID, now.Year(), int(now.Month()))
	if err != nil {
		slog.WarnContext(ctx, "Failed to recompute month for dashboard",
			"user_id", userID,
			"error", err)
		return
	}

	if _, err := w.mirror.WriteSummary(ctx, userID, summary); err != nil {
		slog.WarnContext(ctx, "Failed to mirror month summary",
			"user_id", userID,
			"month", summary.Month,
			"error", err)
	}
}
