package coach

// CostEstimator projects the spend of a completion request before it is
// sent. Prices are micro-dollars per 1K tokens; the token count is the usual
// chars/4 heuristic, which overshoots slightly for numeric prompts and that
// is the safe direction for a guardrail.
type CostEstimator struct {
	PromptPriceMicros     int64
	CompletionPriceMicros int64
	CeilingMicros         int64
}

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// Check projects the cost of sending prompt with the given completion
// budget. Returns the estimate and a *CostLimitError when it exceeds the
// ceiling.
func (c CostEstimator) Check(prompt string, maxCompletionTokens int) (int64, error) {
	promptTokens := int64(EstimateTokens(prompt))
	estimated := promptTokens*c.PromptPriceMicros/1000 +
		int64(maxCompletionTokens)*c.CompletionPriceMicros/1000

	if c.CeilingMicros > 0 && estimated > c.CeilingMicros {
		return estimated, &CostLimitError{
			EstimatedMicros: estimated,
			CeilingMicros:   c.CeilingMicros,
		}
	}
	return estimated, nil
}
