// Package memory is an in-process export adapter used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"bilancio/internal/core"
)

type Store struct {
	mu        sync.Mutex
	summaries map[string]core.MonthlySummary
	proposals map[string][]core.BudgetProposal
}

func New() *Store {
	return &Store{
		summaries: make(map[string]core.MonthlySummary),
		proposals: make(map[string][]core.BudgetProposal),
	}
}

// WriteSummary stores the rollup keyed by user+month; re-writes overwrite.
func (s *Store) WriteSummary(_ context.Context, userID string, summary core.MonthlySummary) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + " " + summary.Month
	s.summaries[key] = summary
	return fmt.Sprintf("mem:%s", key), nil
}

// WriteProposals replaces the stored proposals for the user+period.
func (s *Store) WriteProposals(_ context.Context, userID string, year, month int, proposals []core.BudgetProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + " " + core.MonthKeyOf(year, month)
	s.proposals[key] = append([]core.BudgetProposal(nil), proposals...)
	return nil
}

// Summary returns the stored rollup for user+month, if any.
func (s *Store) Summary(userID, month string) (core.MonthlySummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.summaries[userID+" "+month]
	return v, ok
}

// Proposals returns the stored proposals for user+period.
func (s *Store) Proposals(userID string, year, month int) []core.BudgetProposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proposals[userID+" "+core.MonthKeyOf(year, month)]
}
