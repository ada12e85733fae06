package export

import (
	"context"

	"bilancio/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryWriter mirrors one user's monthly rollup to an external
	// dashboard. Writing the same user+month twice overwrites the row.
	SummaryWriter interface {
		WriteSummary(ctx context.Context, userID string, s core.MonthlySummary) (rowRef string, err error)
	}

	// ProposalWriter mirrors the accepted budget proposals for a period.
	ProposalWriter interface {
		WriteProposals(ctx context.Context, userID string, year, month int, proposals []core.BudgetProposal) error
	}
)
