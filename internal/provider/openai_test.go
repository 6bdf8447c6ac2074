package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"devlog/internal/config"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(config.ProviderConfig{
		BaseURL:   srv.URL + "/v1/",
		APIKey:    "sk-test",
		Model:     "test-model",
		TimeoutMS: 5000,
	})
}

func TestCompleteSendsRequest(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path=%q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization=%q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Did X"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`))
	})

	temp := 0.3
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: "user", Content: "Summarize these code changes:\n-A\n+B"}},
		Temperature: &temp,
		MaxTokens:   200,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Did X" || resp.FinishReason != "stop" {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.Usage.TotalTokens != 9 {
		t.Fatalf("usage=%+v", resp.Usage)
	}
	if got.Model != "test-model" || got.MaxTokens != 200 {
		t.Fatalf("request model=%q max_tokens=%d", got.Model, got.MaxTokens)
	}
	if got.Temperature < 0.29 || got.Temperature > 0.31 {
		t.Fatalf("temperature=%v", got.Temperature)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("messages=%+v", got.Messages)
	}
}

func TestCompleteServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})
	if _, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "x"}},
	}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompleteNoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})
	_, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err=%v, want ErrEmptyResponse", err)
	}
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path=%q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"m1","object":"model","owned_by":"me"},{"id":"m2","object":"model","owned_by":"you"}]}`))
	})
	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].ID != "m1" || models[1].OwnedBy != "you" {
		t.Fatalf("models=%+v", models)
	}
}

func TestOpenAIProviderSetModel(t *testing.T) {
	p := &OpenAIProvider{model: "gpt-4"}
	if p.CurrentModel() != "gpt-4" {
		t.Fatalf("CurrentModel()=%q, want gpt-4", p.CurrentModel())
	}
	if err := p.SetModel("gpt-4o-mini"); err != nil {
		t.Fatalf("SetModel: %v", err)
	}
	if p.CurrentModel() != "gpt-4o-mini" {
		t.Fatalf("CurrentModel()=%q after set, want gpt-4o-mini", p.CurrentModel())
	}
	if err := p.SetModel(""); err == nil {
		t.Fatal("SetModel empty should error")
	}
}

func TestOpenAIProviderName(t *testing.T) {
	p := &OpenAIProvider{}
	if p.Name() != "openai" {
		t.Fatalf("Name()=%q, want openai", p.Name())
	}
}
