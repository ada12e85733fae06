// Package http exposes the JSON API: ledger summaries, budget proposals,
// transaction and category CRUD, and CSV import.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/coach"
	"bilancio/internal/core"
	"bilancio/internal/export"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

// Catalog is the category surface the API needs.
type Catalog interface {
	CreateCategory(ctx context.Context, c core.Category) (int64, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
}

// TransactionStore covers listing and batch import.
type TransactionStore interface {
	ListMonth(ctx context.Context, userID string, year, month int) ([]core.Transaction, error)
	CreateTransactions(ctx context.Context, txs []core.Transaction) (int, error)
}

// RuleStore covers recurring-rule CRUD for the API; materialization stays
// with the recurring worker.
type RuleStore interface {
	CreateRecurringRule(ctx context.Context, rule core.RecurringRule) (int64, error)
	ListRules(ctx context.Context, userID string) ([]core.RecurringRule, error)
}

type Server struct {
	http.Server

	ledgerSvc  *services.LedgerService
	aggregator *ledger.Aggregator
	engine     *coach.Engine
	catalog    Catalog
	txStore    TransactionStore
	rules      RuleStore

	// proposalMirror receives accepted proposals for the dashboard; nil
	// when no dashboard is configured.
	proposalMirror export.ProposalWriter

	rateLimiter *rateLimiter

	// Request-level cache for ledger summaries, keyed by user and window.
	// summaryKeys tracks each user's live keys so a mutation can drop every
	// cached window, whatever since date produced it.
	summaryCache  *cache.LRUCache[core.LedgerSummary]
	cacheManager  *cache.Manager
	summaryKeysMu sync.Mutex
	summaryKeys   map[string]map[string]struct{}

	summaryLookbackMonths int
	shutdownOnce          sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
// engine may be nil when no completion service is configured; the proposal
// endpoint then answers 503. proposalMirror may be nil.
func NewServer(addr string, ledgerSvc *services.LedgerService, agg *ledger.Aggregator,
	engine *coach.Engine, catalog Catalog, txStore TransactionStore, rules RuleStore,
	proposalMirror export.ProposalWriter, summaryLookbackMonths int) *Server {

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledgerSvc:             ledgerSvc,
		aggregator:            agg,
		engine:                engine,
		catalog:               catalog,
		txStore:               txStore,
		rules:                 rules,
		proposalMirror:        proposalMirror,
		rateLimiter:           newRateLimiter(),
		summaryCache:          cache.NewLRUCache[core.LedgerSummary](200, 5*time.Minute),
		cacheManager:          cache.NewManager(),
		summaryKeys:           make(map[string]map[string]struct{}),
		summaryLookbackMonths: summaryLookbackMonths,
	}
	if s.summaryLookbackMonths <= 0 {
		s.summaryLookbackMonths = 6
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	httpLogger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	traced := trace.NewMiddleware(clientIP)
	s.Server.Handler = traced.Middleware(applog.Middleware(httpLogger)(mux))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/summary", s.withAPI(s.handleSummary))
	mux.HandleFunc("POST /api/budget/proposal", s.withAPI(s.handleBudgetProposal))
	mux.HandleFunc("GET /api/transactions", s.withAPI(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withAPI(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withAPI(s.handleDeleteTransaction))
	mux.HandleFunc("POST /api/transactions/import", s.withAPI(s.handleImport))
	mux.HandleFunc("GET /api/categories", s.withAPI(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withAPI(s.handleCreateCategory))
	mux.HandleFunc("GET /api/recurring", s.withAPI(s.handleListRecurringRules))
	mux.HandleFunc("POST /api/recurring", s.withAPI(s.handleCreateRecurringRule))

	return s
}

// withAPI resolves the caller's identity and applies rate limiting to
// mutating requests.
func (s *Server) withAPI(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next(w, r, userID)
	}
}

// Shutdown stops the cache janitor and rate limiter before draining the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
