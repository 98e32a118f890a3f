package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foxseedlab/transrelay/internal/translator"
)

func TestTranslate_NotConfigured(t *testing.T) {
	tr := NewOpenAITranslator(OpenAIConfig{Model: "gpt-4o-mini"})
	_, err := tr.Translate(context.Background(), "hello", "en-US", "fr")
	if !errors.Is(err, translator.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTranslate_UsesChatCompletion(t *testing.T) {
	var gotModel, gotSystem, gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		gotModel = body.Model
		for _, m := range body.Messages {
			switch m.Role {
			case "system":
				gotSystem = m.Content
			case "user":
				gotUser = m.Content
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c-1","object":"chat.completion","created":0,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" bonjour \n"}}]}`))
	}))
	defer server.Close()

	tr := NewOpenAITranslator(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: server.URL})
	got, err := tr.Translate(context.Background(), "hello", "en-US", "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "bonjour" {
		t.Fatalf("expected trimmed translation, got %q", got)
	}
	if gotModel != "gpt-4o-mini" || gotUser != "hello" {
		t.Fatalf("unexpected request: model=%q user=%q", gotModel, gotUser)
	}
	if !strings.Contains(gotSystem, "from en-US to fr") {
		t.Fatalf("unexpected system prompt: %q", gotSystem)
	}
}

func TestTranslate_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	tr := NewOpenAITranslator(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: server.URL})
	if _, err := tr.Translate(context.Background(), "hello", "en-US", "fr"); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
