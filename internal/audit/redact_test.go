package audit

import (
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "card with spaces",
			in:   "my card is 4111 1111 1111 1111 ok",
			want: "my card is " + PlaceholderCard + " ok",
		},
		{
			name: "card with dashes",
			in:   "4111-1111-1111-1111",
			want: PlaceholderCard,
		},
		{
			name: "contiguous 16 digits treated as card",
			in:   "pan 4111111111111111 end",
			want: "pan " + PlaceholderCard + " end",
		},
		{
			name: "email",
			in:   "contact me at jane.doe+tag@example.co.uk please",
			want: "contact me at " + PlaceholderEmail + " please",
		},
		{
			name: "long digit run",
			in:   "account 12345678901 here",
			want: "account " + PlaceholderNumber + " here",
		},
		{
			name: "short digit run untouched",
			in:   "spent 123456 on rent",
			want: "spent 123456 on rent",
		},
		{
			name: "amounts untouched",
			in:   "budget 1234.56 for groceries",
			want: "budget 1234.56 for groceries",
		},
		{
			name: "mixed",
			in:   "card 4000 0000 0000 0002, mail a@b.io, acct 99999999990",
			want: "card " + PlaceholderCard + ", mail " + PlaceholderEmail + ", acct " + PlaceholderNumber,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.in); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewEntryRedactsBothSides(t *testing.T) {
	prompt := "user jane@example.com has card 4111 1111 1111 1111"
	response := "send the plan to jane@example.com"

	e := NewEntry("u1", KindBudgetProposal, prompt, response, 120, 40)

	if strings.Contains(e.PromptRedacted, "jane@example.com") ||
		strings.Contains(e.PromptRedacted, "4111") {
		t.Errorf("prompt not redacted: %q", e.PromptRedacted)
	}
	if strings.Contains(e.ResponseRedacted, "jane@example.com") {
		t.Errorf("response not redacted: %q", e.ResponseRedacted)
	}
	if e.PromptHash != Hash(prompt) {
		t.Error("hash must be taken over the raw prompt")
	}
	if e.PromptTokens != 120 || e.CompletionTokens != 40 {
		t.Errorf("token usage not carried: %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("created_at must be set")
	}
}

func TestHashIsStable(t *testing.T) {
	if Hash("abc") != Hash("abc") {
		t.Error("hash must be deterministic")
	}
	if Hash("abc") == Hash("abd") {
		t.Error("different inputs should not collide")
	}
	if len(Hash("abc")) != 64 {
		t.Errorf("expected hex sha256, got %d chars", len(Hash("abc")))
	}
}
