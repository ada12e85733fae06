package core

// MonthlySummary holds the income/expense/net rollup for one YYYY-MM bucket.
type MonthlySummary struct {
	Month        string `json:"year_month"`
	IncomeMinor  int64  `json:"income_minor"`
	ExpenseMinor int64  `json:"expense_minor"`
	NetMinor     int64  `json:"net_minor"`
}

// CategorySpend is the aggregated outbound spend for one category within a
// window. Uncategorized transactions land under the sentinel bucket.
type CategorySpend struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	TotalMinor int64  `json:"total_minor"`
	Count      int    `json:"transaction_count"`
}

// LedgerSummary is the aggregator's full result: months newest first,
// categories ranked by total spend.
type LedgerSummary struct {
	Months        []MonthlySummary `json:"months"`
	TopCategories []CategorySpend  `json:"top_categories"`
}

// BudgetProposal is one normalized per-category allocation. LimitMinor is
// always a non-negative integer and Confidence is clamped to 0-100.
type BudgetProposal struct {
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
	LimitMinor   int64  `json:"limit_minor"`
	Rationale    string `json:"rationale"`
	Confidence   int    `json:"confidence"`
}

// AutoBudgetResponse is the proposal engine's result. TotalAllocated is
// recomputed from the normalized proposals, never taken from the model.
type AutoBudgetResponse struct {
	Proposals      []BudgetProposal `json:"proposals"`
	TotalAllocated int64            `json:"total_allocated"`
	TotalIncome    int64            `json:"total_income"`
	PeriodYear     int              `json:"period_year"`
	PeriodMonth    int              `json:"period_month"`
	Methodology    string           `json:"methodology"`
}
