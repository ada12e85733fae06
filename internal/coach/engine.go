// Package coach derives zero-based budget proposals from aggregated
// spending history via an external text-completion service.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"bilancio/internal/audit"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/llm"
)

// Methodology strings attached to every response.
const (
	MethodologyZeroBased  = "zero-based allocation from recent spending history and a target savings rate"
	MethodologyHistorical = "proportional allocation from recent spending history with reserved target savings"
)

// CategorySource is the outbound port for the user's category catalog.
type CategorySource interface {
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
}

// Options tune a single proposal request.
type Options struct {
	// TargetSavingsRate is a percentage of average income reserved before
	// allocation, 0-100.
	TargetSavingsRate float64
	ZeroBased         bool
}

// DefaultOptions mirrors the API defaults: 20% savings, zero-based.
func DefaultOptions() Options {
	return Options{TargetSavingsRate: 20, ZeroBased: true}
}

// Config wires an Engine. All collaborators are injected; there is no
// global client state.
type Config struct {
	Aggregator *ledger.Aggregator
	Categories CategorySource
	Completer  llm.Completer
	Sink       audit.Sink // optional; nil disables audit writes
	Cost       CostEstimator

	LookbackMonths int
	MaxTokens      int
	Temperature    float64

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Engine runs the proposal pipeline. Stateless between calls and safe for
// concurrent use.
type Engine struct {
	agg        *ledger.Aggregator
	categories CategorySource
	completer  llm.Completer
	sink       audit.Sink
	cost       CostEstimator

	lookbackMonths int
	maxTokens      int
	temperature    float64
	now            func() time.Time
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		agg:            cfg.Aggregator,
		categories:     cfg.Categories,
		completer:      cfg.Completer,
		sink:           cfg.Sink,
		cost:           cfg.Cost,
		lookbackMonths: cfg.LookbackMonths,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		now:            cfg.Now,
	}
	if e.lookbackMonths <= 0 {
		e.lookbackMonths = 6
	}
	if e.maxTokens <= 0 {
		e.maxTokens = 1024
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Propose builds a budget proposal for the given period.
//
// History is always read from a lookback window anchored at now, not at the
// requested period: the engine reasons from recent behavior regardless of
// which future month is being budgeted. Only the per-category actuals come
// from the requested month itself.
func (e *Engine) Propose(ctx context.Context, userID string, year, month int, opts Options) (core.AutoBudgetResponse, error) {
	var zero core.AutoBudgetResponse

	if month < 1 || month > 12 {
		return zero, fmt.Errorf("%w: month %d out of range", ErrInvalidOptions, month)
	}
	if opts.TargetSavingsRate < 0 || opts.TargetSavingsRate > 100 {
		return zero, fmt.Errorf("%w: target savings rate %.1f out of range", ErrInvalidOptions, opts.TargetSavingsRate)
	}

	now := e.now()
	summary := e.agg.Summarize(ctx, userID, now.AddDate(0, -e.lookbackMonths, 0))

	var avgIncome int64
	if len(summary.Months) > 0 {
		var total int64
		for _, m := range summary.Months {
			total += m.IncomeMinor
		}
		avgIncome = total / int64(len(summary.Months))
	}
	targetSavings := int64(math.Round(float64(avgIncome) * opts.TargetSavingsRate / 100))
	available := avgIncome - targetSavings

	catalog, err := e.categories.ListCategories(ctx, userID)
	if err != nil {
		return zero, fmt.Errorf("list categories: %w", err)
	}
	if len(catalog) == 0 {
		return zero, ErrNoCategories
	}

	// Like the lookback summary, a failed actuals read is absorbed: the
	// engine proposes from zero signal rather than cascading the failure.
	actuals, err := e.agg.MonthActuals(ctx, userID, year, month)
	if err != nil {
		slog.WarnContext(ctx, "Period actuals unavailable, proposing from zero signal",
			"user_id", userID, "year", year, "month", month, "error", err)
		actuals = nil
	}

	prompt := buildPrompt(promptInput{
		PeriodYear:     year,
		PeriodMonth:    month,
		AvgIncomeMinor: avgIncome,
		SavingsRate:    opts.TargetSavingsRate,
		TargetSavings:  targetSavings,
		AvailableMinor: available,
		PeriodActuals:  actuals,
		Catalog:        catalog,
		ZeroBased:      opts.ZeroBased,
		LookbackMonths: e.lookbackMonths,
	})

	estimated, err := e.cost.Check(systemPrompt+prompt, e.maxTokens)
	if err != nil {
		return zero, err
	}
	slog.DebugContext(ctx, "Completion cost projected",
		"user_id", userID, "estimated_micros", estimated)

	res, err := e.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	proposals, err := parseProposals(res.Content, catalog)
	if err != nil {
		return zero, err
	}

	var totalAllocated int64
	for _, p := range proposals {
		totalAllocated += p.LimitMinor
	}

	e.appendAudit(ctx, userID, prompt, res)

	methodology := MethodologyHistorical
	if opts.ZeroBased {
		methodology = MethodologyZeroBased
	}

	return core.AutoBudgetResponse{
		Proposals:      proposals,
		TotalAllocated: totalAllocated,
		TotalIncome:    avgIncome,
		PeriodYear:     year,
		PeriodMonth:    month,
		Methodology:    methodology,
	}, nil
}

// appendAudit is fire-and-forget: a failing sink is logged, never surfaced.
func (e *Engine) appendAudit(ctx context.Context, userID, prompt string, res llm.Response) {
	if e.sink == nil {
		return
	}
	entry := audit.NewEntry(userID, audit.KindBudgetProposal, prompt, res.Content,
		res.PromptTokens, res.CompletionTokens)
	if err := e.sink.Append(ctx, entry); err != nil {
		slog.WarnContext(ctx, "Audit append failed",
			"user_id", userID, "prompt_hash", entry.PromptHash, "error", err)
	}
}

// IsUserError reports whether err should map to a 4xx-style response.
func IsUserError(err error) bool {
	var costErr *CostLimitError
	return errors.Is(err, ErrNoCategories) ||
		errors.Is(err, ErrInvalidOptions) ||
		errors.As(err, &costErr)
}
