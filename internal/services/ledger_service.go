package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/export"
)

// LedgerStore is the persistence surface the service needs. Soft delete
// reports the removed row's occurred_at so the right month can be mirrored.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	SoftDeleteTransaction(ctx context.Context, userID string, id int64) (time.Time, error)
	ListMonth(ctx context.Context, userID string, year, month int) ([]core.Transaction, error)
}

// LedgerService creates and soft-deletes transactions and mirrors the
// affected month's rollup to the export dashboard. Mirroring is
// best-effort: a failed mirror never fails the mutation.
type LedgerService struct {
	storage LedgerStore
	mirror  export.SummaryWriter
}

// NewLedgerService creates the service. mirror may be nil when no
// dashboard is configured.
func NewLedgerService(storage LedgerStore, mirror export.SummaryWriter) *LedgerService {
	return &LedgerService{storage: storage, mirror: mirror}
}

func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if s.storage == nil {
		return 0, fmt.Errorf("service not properly initialized")
	}

	id, err := s.storage.CreateTransaction(ctx, tx)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Created transaction",
		"id", id,
		"user_id", tx.UserID,
		"direction", tx.Direction,
		"amount_minor", tx.Amount.Minor)

	s.mirrorMonth(ctx, tx.UserID, tx.OccurredAt)
	return id, nil
}

func (s *LedgerService) SoftDeleteTransaction(ctx context.Context, userID string, id int64) error {
	if s.storage == nil {
		return fmt.Errorf("service not properly initialized")
	}

	occurredAt, err := s.storage.SoftDeleteTransaction(ctx, userID, id)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Soft-deleted transaction", "id", id, "user_id", userID)

	// Refresh the month the deleted row belonged to, not the current one.
	s.mirrorMonth(ctx, userID, occurredAt)
	return nil
}

// mirrorMonth recomputes the rollup of the month containing at and writes
// it to the dashboard.
func (s *LedgerService) mirrorMonth(ctx context.Context, userID string, at time.Time) {
	if s.mirror == nil {
		return
	}

	at = at.UTC()
	summary, err := s.MonthSummary(ctx, userID, at.Year(), int(at.Month()))
	if err != nil {
		slog.WarnContext(ctx, "Failed to recompute month for mirror",
			"user_id", userID,
			"month", core.MonthKey(at),
			"error", err)
		return
	}

	if _, err := s.mirror.WriteSummary(ctx, userID, summary); err != nil {
		slog.WarnContext(ctx, "Failed to mirror month summary",
			"user_id", userID,
			"month", summary.Month,
			"error", err)
	}
}

// MonthSummary computes one month's income/expense/net rollup straight
// from storage.
func (s *LedgerService) MonthSummary(ctx context.Context, userID string, year, month int) (core.MonthlySummary, error) {
	txs, err := s.storage.ListMonth(ctx, userID, year, month)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("list month: %w", err)
	}

	summary := core.MonthlySummary{Month: core.MonthKeyOf(year, month)}
	for _, tx := range txs {
		switch tx.Direction {
		case core.In:
			summary.IncomeMinor += tx.Amount.Minor
		case core.Out:
			summary.ExpenseMinor += tx.Amount.Minor
		}
	}
	summary.NetMinor = summary.IncomeMinor - summary.ExpenseMinor
	return summary, nil
}
