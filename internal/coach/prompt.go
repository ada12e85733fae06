package coach

import (
	"fmt"
	"sort"
	"strings"

	"bilancio/internal/core"
)

// systemPrompt fixes the model's role and the output contract. The reply
// must be a bare JSON array so parsing stays strict.
const systemPrompt = `You are a budgeting assistant. You allocate a monthly budget across spending categories.
Respond with a JSON array only, no prose and no code fences. Each element must be an object with:
"category_id" (number), "category_name" (string), "limit_minor" (integer, smallest currency unit), "rationale" (short string), "confidence" (integer 0-100).`

type promptInput struct {
	PeriodYear       int
	PeriodMonth      int
	AvgIncomeMinor   int64
	SavingsRate      float64
	TargetSavings    int64
	AvailableMinor   int64
	PeriodActuals    []core.CategorySpend
	Catalog          []core.Category
	ZeroBased        bool
	LookbackMonths   int
}

// buildPrompt renders the user message. Output is deterministic for a given
// input: catalog sorted by id, actuals already ranked by the aggregator.
func buildPrompt(in promptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Build a budget for %s.\n", core.MonthKeyOf(in.PeriodYear, in.PeriodMonth))
	fmt.Fprintf(&b, "Average monthly income over the last %d months: %s.\n",
		in.LookbackMonths, core.FormatMinor(in.AvgIncomeMinor))
	fmt.Fprintf(&b, "Target savings rate: %.0f%% (%s per month).\n",
		in.SavingsRate, core.FormatMinor(in.TargetSavings))
	fmt.Fprintf(&b, "Available to budget after savings: %s.\n\n", core.FormatMinor(in.AvailableMinor))

	b.WriteString("Spending so far in the requested period, by category:\n")
	if len(in.PeriodActuals) == 0 {
		b.WriteString("- none recorded\n")
	}
	for _, cs := range in.PeriodActuals {
		fmt.Fprintf(&b, "- %s (id %d): %s across %d transactions\n",
			cs.Name, cs.CategoryID, core.FormatMinor(cs.TotalMinor), cs.Count)
	}

	b.WriteString("\nAll categories to allocate across:\n")
	catalog := make([]core.Category, len(in.Catalog))
	copy(catalog, in.Catalog)
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].ID < catalog[j].ID })
	for _, c := range catalog {
		fmt.Fprintf(&b, "- %s (id %d)\n", c.Name, c.ID)
	}

	b.WriteString("\nGuidance: prioritize essentials (housing, food, utilities, transport) before discretionary spending.\n")
	if in.ZeroBased {
		b.WriteString("Zero-base the allocation: the limits must sum to the available-to-budget amount, with every category assigned an explicit limit (0 is allowed).\n")
	} else {
		b.WriteString("Allocate proportionally to historical spending; categories may be left without a limit only if they had no recent spend.\n")
	}
	b.WriteString("Include a confidence score per category reflecting how consistent the historical spending signal is.")

	return b.String()
}
