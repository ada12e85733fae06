package coach

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCategories means the user has nothing to allocate against. The
	// caller should prompt the user to create categories first.
	ErrNoCategories = errors.New("no categories to allocate against")

	// ErrServiceUnavailable covers missing credentials and an unreachable
	// completion service. Not retried automatically.
	ErrServiceUnavailable = errors.New("completion service unavailable")

	// ErrInvalidOptions is returned for out-of-range proposal options.
	ErrInvalidOptions = errors.New("invalid proposal options")
)

// CostLimitError rejects a request whose projected spend exceeds the
// configured ceiling. The estimate is carried so the caller can shrink the
// request.
type CostLimitError struct {
	EstimatedMicros int64
	CeilingMicros   int64
}

func (e *CostLimitError) Error() string {
	return fmt.Sprintf("projected completion cost %dµ$ exceeds ceiling %dµ$",
		e.EstimatedMicros, e.CeilingMicros)
}

// ProposalFormatError means the model reply was not a valid proposal list.
// There is no best-effort fallback: fabricating financial numbers silently
// is worse than failing visibly.
type ProposalFormatError struct {
	Reason string
}

func (e *ProposalFormatError) Error() string {
	return "invalid proposal format: " + e.Reason
}
