// Package audit records prompt/response trails for external model calls.
//
// Entries are redacted before they leave this package: no sink ever sees a
// raw prompt or response. Appending is fire-and-forget from the caller's
// point of view; a failed write must never fail the operation being audited.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Kind labels what produced an entry.
const (
	KindBudgetProposal = "budget_proposal"
	KindCoachChat      = "coach_chat"
)

// Entry is one audit record for a completed model call.
type Entry struct {
	UserID           string    `json:"user_id"`
	Kind             string    `json:"kind"`
	PromptHash       string    `json:"prompt_hash"`
	PromptRedacted   string    `json:"prompt_redacted"`
	ResponseRedacted string    `json:"response_redacted"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// Sink persists audit entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// NewEntry builds a redacted entry from the raw prompt and response. The
// hash is taken over the raw prompt so identical prompts dedup even though
// only the redacted text is stored.
func NewEntry(userID, kind, prompt, response string, promptTokens, completionTokens int) Entry {
	return Entry{
		UserID:           userID,
		Kind:             kind,
		PromptHash:       Hash(prompt),
		PromptRedacted:   Redact(prompt),
		ResponseRedacted: Redact(response),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CreatedAt:        time.Now().UTC(),
	}
}

// Hash returns the hex SHA-256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
