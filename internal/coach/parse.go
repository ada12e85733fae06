package coach

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"bilancio/internal/core"
)

// rawProposal mirrors the model's reply before normalization. Pointers keep
// "absent" distinguishable from zero so schema violations are caught.
type rawProposal struct {
	CategoryID   *int64   `json:"category_id"`
	CategoryName string   `json:"category_name"`
	LimitMinor   *float64 `json:"limit_minor"`
	Rationale    string   `json:"rationale"`
	Confidence   *float64 `json:"confidence"`
}

// parseProposals strictly parses the model's reply as a JSON array of
// proposal objects and normalizes each one. Any structural problem is a
// *ProposalFormatError; there is no partial result.
func parseProposals(content string, catalog []core.Category) ([]core.BudgetProposal, error) {
	trimmed := stripFence(strings.TrimSpace(content))
	if trimmed == "" {
		return nil, &ProposalFormatError{Reason: "empty response"}
	}

	var raw []rawProposal
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, &ProposalFormatError{Reason: "not a JSON array of proposal objects: " + err.Error()}
	}
	if len(raw) == 0 {
		return nil, &ProposalFormatError{Reason: "proposal array is empty"}
	}

	byID := make(map[int64]core.Category, len(catalog))
	byName := make(map[string]core.Category, len(catalog))
	for _, c := range catalog {
		byID[c.ID] = c
		byName[strings.ToLower(strings.TrimSpace(c.Name))] = c
	}

	out := make([]core.BudgetProposal, 0, len(raw))
	for i, rp := range raw {
		if strings.TrimSpace(rp.CategoryName) == "" {
			return nil, &ProposalFormatError{Reason: proposalField(i, "category_name missing")}
		}
		if rp.LimitMinor == nil {
			return nil, &ProposalFormatError{Reason: proposalField(i, "limit_minor missing")}
		}

		p := core.BudgetProposal{
			CategoryName: strings.TrimSpace(rp.CategoryName),
			LimitMinor:   NormalizeLimit(*rp.LimitMinor),
			Rationale:    strings.TrimSpace(rp.Rationale),
			Confidence:   ClampConfidence(rp.Confidence),
		}

		// Anchor the proposal to the catalog: prefer the model's id when it
		// names a real category, otherwise match by name. An unresolvable
		// entry keeps id 0 rather than failing the whole proposal.
		if rp.CategoryID != nil {
			if c, ok := byID[*rp.CategoryID]; ok {
				p.CategoryID = c.ID
				p.CategoryName = c.Name
			}
		}
		if p.CategoryID == 0 {
			if c, ok := byName[strings.ToLower(p.CategoryName)]; ok {
				p.CategoryID = c.ID
				p.CategoryName = c.Name
			}
		}

		out = append(out, p)
	}

	return out, nil
}

// maxLimitMinor caps a proposed limit. Far beyond any real budget, but it
// keeps huge model values representable instead of overflowing int64.
const maxLimitMinor = int64(math.MaxInt64 / 2)

// NormalizeLimit maps an arbitrary model value onto a valid limit:
// max(0, round(x)), capped at maxLimitMinor. Fractional minor units do not
// exist, and an absurdly large value must clamp high, not collapse to zero.
func NormalizeLimit(raw float64) int64 {
	if math.IsNaN(raw) || raw <= 0 {
		return 0
	}
	if math.IsInf(raw, 1) || raw >= float64(maxLimitMinor) {
		return maxLimitMinor
	}
	return int64(math.Round(raw))
}

// ClampConfidence defaults a missing confidence to 50 and clamps to 0-100.
func ClampConfidence(raw *float64) int {
	if raw == nil || math.IsNaN(*raw) {
		return 50
	}
	c := int(math.Round(*raw))
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// stripFence removes a surrounding markdown code fence if the model added
// one despite instructions. Content inside is still parsed strictly.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func proposalField(i int, msg string) string {
	return "proposal[" + strconv.Itoa(i) + "]: " + msg
}
