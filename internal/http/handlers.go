package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/coach"
	"bilancio/internal/core"
	"bilancio/internal/ingest"
	applog "bilancio/internal/log"
	"bilancio/internal/storage"
)

// handleSummary serves the rolling ledger summary. The window defaults to
// the configured lookback; an explicit since=YYYY-MM-DD narrows or widens
// it. Results are cached per user+window for a few minutes.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, userID string) {
	since := time.Now().UTC().AddDate(0, -s.summaryLookbackMonths, 0)
	if v := strings.TrimSpace(r.URL.Query().Get("since")); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		since = parsed
	}

	// Key on the full date: two since values in the same month are
	// different windows and must never share an entry.
	cacheKey := userID + "|" + since.Format("2006-01-02")
	if cached, ok := s.summaryCache.Get(cacheKey); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	summary := s.aggregator.Summarize(r.Context(), userID, since)
	s.summaryCache.Set(cacheKey, summary)
	s.trackSummaryKey(userID, cacheKey)
	respondJSON(w, http.StatusOK, summary)
}

type proposalRequest struct {
	Year              int      `json:"year"`
	Month             int      `json:"month"`
	TargetSavingsRate *float64 `json:"target_savings_rate"`
	ZeroBased         *bool    `json:"zero_based"`
}

func (s *Server) handleBudgetProposal(w http.ResponseWriter, r *http.Request, userID string) {
	if s.engine == nil {
		respondError(w, http.StatusServiceUnavailable, "budget proposals are not configured")
		return
	}

	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	opts := coach.DefaultOptions()
	if req.TargetSavingsRate != nil {
		opts.TargetSavingsRate = *req.TargetSavingsRate
	}
	if req.ZeroBased != nil {
		opts.ZeroBased = *req.ZeroBased
	}

	res, err := s.engine.Propose(r.Context(), userID, req.Year, req.Month, opts)
	if err != nil {
		status := proposalStatus(err)
		if status >= 500 {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Budget proposal failed",
				applog.FieldUserID, userID, applog.FieldError, err)
		}
		respondError(w, status, err.Error())
		return
	}

	// Mirror accepted proposals to the dashboard; a failed mirror never
	// fails the response.
	if s.proposalMirror != nil {
		if err := s.proposalMirror.WriteProposals(r.Context(), userID, res.PeriodYear, res.PeriodMonth, res.Proposals); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to mirror proposals",
				applog.FieldUserID, userID, applog.FieldError, err)
		}
	}

	respondJSON(w, http.StatusOK, res)
}

// proposalStatus maps engine errors onto HTTP statuses.
func proposalStatus(err error) int {
	var costErr *coach.CostLimitError
	var formatErr *coach.ProposalFormatError
	switch {
	case errors.Is(err, coach.ErrNoCategories):
		return http.StatusPreconditionFailed
	case errors.Is(err, coach.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.As(err, &costErr):
		return http.StatusTooManyRequests
	case errors.As(err, &formatErr):
		return http.StatusBadGateway
	case errors.Is(err, coach.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		respondError(w, http.StatusBadRequest, "month must be 1-12")
		return
	}

	txs, err := s.txStore.ListMonth(r.Context(), userID, year, month)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List transactions failed", applog.FieldUserID, userID, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"month":        core.MonthKeyOf(year, month),
		"transactions": txs,
	})
}

type transactionRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Direction   string `json:"direction"`
	OccurredAt  string `json:"occurred_at"`
	CategoryID  *int64 `json:"category_id"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	minor, err := core.ParseDecimalToMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "amount: "+err.Error())
		return
	}

	occurredAt, err := parseTimestamp(req.OccurredAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, "occurred_at must be RFC3339 or YYYY-MM-DD")
		return
	}

	tx := core.Transaction{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Description: strings.TrimSpace(req.Description),
		Amount:      core.Money{Minor: minor},
		Direction:   core.Direction(strings.ToLower(strings.TrimSpace(req.Direction))),
		OccurredAt:  occurredAt,
	}

	id, err := s.ledgerSvc.CreateTransaction(r.Context(), tx)
	if err != nil {
		if isValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create transaction failed", applog.FieldUserID, userID, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	s.invalidateSummaries(userID)
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := s.ledgerSvc.SoftDeleteTransaction(r.Context(), userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete transaction failed",
			applog.FieldUserID, userID, "id", id, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	s.invalidateSummaries(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, userID string) {
	categories, err := s.catalog.ListCategories(r.Context(), userID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List categories for import failed", applog.FieldUserID, userID, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "failed to resolve categories")
		return
	}
	byName := make(map[string]int64, len(categories))
	for _, c := range categories {
		byName[strings.ToLower(c.Name)] = c.ID
	}
	resolve := func(name string) (int64, bool) {
		id, ok := byName[strings.ToLower(name)]
		return id, ok
	}

	result, err := ingest.Read(r.Body, userID, resolve)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	imported := 0
	if len(result.Transactions) > 0 {
		imported, err = s.txStore.CreateTransactions(r.Context(), result.Transactions)
		if err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Import batch insert failed", applog.FieldUserID, userID, applog.FieldError, err)
			respondError(w, http.StatusInternalServerError, "failed to store imported transactions")
			return
		}
	}

	s.invalidateSummaries(userID)
	rowErrors := result.Errors
	if rowErrors == nil {
		rowErrors = []ingest.RowError{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"imported": imported,
		"errors":   rowErrors,
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, userID string) {
	categories, err := s.catalog.ListCategories(r.Context(), userID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List categories failed", applog.FieldUserID, userID, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []core.Category{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, userID string) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := s.catalog.CreateCategory(r.Context(), core.Category{
		UserID: userID,
		Name:   strings.TrimSpace(req.Name),
	})
	if err != nil {
		if isValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.Contains(err.Error(), "UNIQUE") {
			respondError(w, http.StatusConflict, "category already exists")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create category failed", applog.FieldUserID, userID, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type recurringRuleRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Direction   string `json:"direction"`
	CategoryID  *int64 `json:"category_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Frequency   string `json:"frequency"`
}

func (s *Server) handleCreateRecurringRule(w http.ResponseWriter, r *http.Request, userID string) {
	var req recurringRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	minor, err := core.ParseDecimalToMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "amount: "+err.Error())
		return
	}
	startDate, err := parseTimestamp(req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "start_date must be RFC3339 or YYYY-MM-DD")
		return
	}
	var endDate time.Time
	if strings.TrimSpace(req.EndDate) != "" {
		endDate, err = parseTimestamp(req.EndDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end_date must be RFC3339 or YYYY-MM-DD")
			return
		}
	}

	rule := core.RecurringRule{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Description: strings.TrimSpace(req.Description),
		Amount:      core.Money{Minor: minor},
		Direction:   core.Direction(strings.ToLower(strings.TrimSpace(req.Direction))),
		StartDate:   startDate,
		EndDate:     endDate,
		Every:       core.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency))),
	}

	if err := rule.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.rules.CreateRecurringRule(r.Context(), rule)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create recurring rule failed", applog.FieldUserID, userID, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "failed to create recurring rule")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleListRecurringRules(w http.ResponseWriter, r *http.Request, userID string) {
	rules, err := s.rules.ListRules(r.Context(), userID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List recurring rules failed", applog.FieldUserID, userID, applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "failed to list recurring rules")
		return
	}
	if rules == nil {
		rules = []core.RecurringRule{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) trackSummaryKey(userID, key string) {
	s.summaryKeysMu.Lock()
	defer s.summaryKeysMu.Unlock()
	keys, ok := s.summaryKeys[userID]
	if !ok {
		keys = make(map[string]struct{})
		s.summaryKeys[userID] = keys
	}
	keys[key] = struct{}{}
}

// invalidateSummaries drops every cached window for the user after a
// mutation.
func (s *Server) invalidateSummaries(userID string) {
	s.summaryKeysMu.Lock()
	keys := s.summaryKeys[userID]
	delete(s.summaryKeys, userID)
	s.summaryKeysMu.Unlock()

	for key := range keys {
		s.summaryCache.Delete(key)
	}
}
