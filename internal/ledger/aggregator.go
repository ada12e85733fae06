// Package ledger turns raw transaction windows into monthly rollups and
// ranked category spend.
package ledger

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"bilancio/internal/core"
)

// TopCategoryLimit caps the ranked category list returned by Summarize.
const TopCategoryLimit = 10

// TransactionSource is the outbound port for reading a user's transactions.
// Implementations must already exclude soft-deleted rows; the aggregator
// filters again as a safety net.
type TransactionSource interface {
	Query(ctx context.Context, userID string, since time.Time) ([]core.Transaction, error)
}

// Aggregator computes request-scoped summaries. It holds no state beyond its
// source and is safe for concurrent use.
type Aggregator struct {
	source TransactionSource
}

func NewAggregator(source TransactionSource) *Aggregator {
	return &Aggregator{source: source}
}

// Summarize groups the user's transactions since the given instant into
// per-month income/expense/net totals and the top spending categories.
// Months come back newest first; categories are ranked by total spend with
// ties broken by ascending category id.
//
// A failing source degrades to an empty summary instead of an error so
// downstream budgeting still has well-defined input.
func (a *Aggregator) Summarize(ctx context.Context, userID string, since time.Time) core.LedgerSummary {
	empty := core.LedgerSummary{
		Months:        []core.MonthlySummary{},
		TopCategories: []core.CategorySpend{},
	}

	txs, err := a.source.Query(ctx, userID, since)
	if err != nil {
		slog.WarnContext(ctx, "Transaction source unavailable, degrading to empty summary",
			"user_id", userID, "error", err)
		return empty
	}

	months := map[string]*core.MonthlySummary{}
	spend := map[int64]*core.CategorySpend{}

	for _, tx := range txs {
		if tx.Deleted() {
			continue
		}

		key := core.MonthKey(tx.OccurredAt)
		m, ok := months[key]
		if !ok {
			m = &core.MonthlySummary{Month: key}
			months[key] = m
		}
		switch tx.Direction {
		case core.In:
			m.IncomeMinor += tx.Amount.Minor
		case core.Out:
			m.ExpenseMinor += tx.Amount.Minor
		}
		m.NetMinor = m.IncomeMinor - m.ExpenseMinor

		if tx.Direction == core.Out {
			accumulateSpend(spend, tx)
		}
	}

	summary := core.LedgerSummary{
		Months:        sortMonths(months),
		TopCategories: rankSpend(spend),
	}
	if len(summary.TopCategories) > TopCategoryLimit {
		summary.TopCategories = summary.TopCategories[:TopCategoryLimit]
	}
	return summary
}

// MonthActuals sums outbound spend per category for one specific calendar
// month (UTC). Unlike Summarize this is a hard read: a failing source is an
// error, because the caller asked for a precise period.
func (a *Aggregator) MonthActuals(ctx context.Context, userID string, year, month int) ([]core.CategorySpend, error) {
	start, end := core.MonthBounds(year, month)

	txs, err := a.source.Query(ctx, userID, start)
	if err != nil {
		return nil, err
	}

	spend := map[int64]*core.CategorySpend{}
	for _, tx := range txs {
		if tx.Deleted() || tx.Direction != core.Out {
			continue
		}
		at := tx.OccurredAt.UTC()
		if at.Before(start) || !at.Before(end) {
			continue
		}
		accumulateSpend(spend, tx)
	}

	return rankSpend(spend), nil
}

func accumulateSpend(spend map[int64]*core.CategorySpend, tx core.Transaction) {
	id := core.UncategorizedID
	name := core.UncategorizedName
	if tx.CategoryID != nil {
		id = *tx.CategoryID
		name = tx.CategoryName
	}

	cs, ok := spend[id]
	if !ok {
		cs = &core.CategorySpend{CategoryID: id, Name: name}
		spend[id] = cs
	}
	cs.TotalMinor += tx.Amount.Minor
	cs.Count++
}

func sortMonths(months map[string]*core.MonthlySummary) []core.MonthlySummary {
	out := make([]core.MonthlySummary, 0, len(months))
	for _, m := range months {
		out = append(out, *m)
	}
	// YYYY-MM keys sort lexicographically; newest first.
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out
}

func rankSpend(spend map[int64]*core.CategorySpend) []core.CategorySpend {
	out := make([]core.CategorySpend, 0, len(spend))
	for _, cs := range spend {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMinor != out[j].TotalMinor {
			return out[i].TotalMinor > out[j].TotalMinor
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}
