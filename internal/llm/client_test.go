package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_CompleteWithoutCredentials(t *testing.T) {
	c := NewClient("http://localhost:9", "", "test-model", time.Second)

	_, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestClient_Complete(t *testing.T) {
	var gotAuth string
	var gotBody wireRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `[{"x":1}]`}},
			},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 7},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "test-model", time.Second)
	res, err := c.Complete(context.Background(), Request{
		Messages:    []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "go"}},
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.Model != "test-model" || gotBody.MaxTokens != 256 || gotBody.Temperature != 0.2 {
		t.Errorf("unexpected wire request: %+v", gotBody)
	}
	if res.Content != `[{"x":1}]` {
		t.Errorf("content = %q", res.Content)
	}
	if res.PromptTokens != 42 || res.CompletionTokens != 7 {
		t.Errorf("usage = %d/%d", res.PromptTokens, res.CompletionTokens)
	}
}

func TestClient_CompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "test-model", time.Second)
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "go"}}})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", statusErr.Status)
	}
}

func TestClient_CompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "test-model", time.Second)
	if _, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "go"}}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
