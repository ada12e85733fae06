package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
)

// RuleStore is the persistence surface the processor needs.
type RuleStore interface {
	ListActiveRules(ctx context.Context, now time.Time) ([]core.RecurringRule, error)
	UpdateRuleLastExecution(ctx context.Context, id int64, at time.Time) error
}

// RecurringProcessor materializes transactions from recurring rule
// templates.
type RecurringProcessor struct {
	rules  RuleStore
	ledger *LedgerService
}

func NewRecurringProcessor(rules RuleStore, ledger *LedgerService) *RecurringProcessor {
	return &RecurringProcessor{rules: rules, ledger: ledger}
}

// ProcessDueRules walks every active rule and creates a transaction for
// each one that is due. A failing rule is logged and skipped; the whole
// pass never aborts on one bad rule.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, now time.Time) (int, error) {
	if p.rules == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	rules, err := p.rules.ListActiveRules(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list active rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"total_active", len(rules),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, rule := range rules {
		checker, err := GetDuenessChecker(rule.Every)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping rule with unknown frequency",
				"rule_id", rule.ID,
				"frequency", rule.Every)
			continue
		}

		if !checker.IsDue(rule.LastExecutedAt, now, rule.StartDate) {
			continue
		}

		tx := core.Transaction{
			UserID:      rule.UserID,
			CategoryID:  rule.CategoryID,
			Description: rule.Description,
			Amount:      rule.Amount,
			Direction:   rule.Direction,
			OccurredAt:  now,
		}
		id, err := p.ledger.CreateTransaction(ctx, tx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create transaction from rule",
				"rule_id", rule.ID,
				"description", rule.Description,
				"error", err)
			continue
		}

		if err := p.rules.UpdateRuleLastExecution(ctx, rule.ID, now); err != nil {
			// The transaction exists; the rule may fire again next pass.
			slog.ErrorContext(ctx, "Failed to update rule execution time",
				"rule_id", rule.ID,
				"error", err)
		}

		processed++
		slog.InfoContext(ctx, "Created transaction from recurring rule",
			"rule_id", rule.ID,
			"transaction_id", id,
			"amount_minor", rule.Amount.Minor,
			"frequency", rule.Every)
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"processed", processed,
		"total_checked", len(rules))

	return processed, nil
}
