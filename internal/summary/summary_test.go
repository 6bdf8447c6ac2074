package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"devlog/internal/config"
	"devlog/internal/logging"
	"devlog/internal/provider"
)

type fakeProvider struct {
	reply string
	err   error
	reqs  []provider.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return provider.CompletionResponse{}, f.err
	}
	return provider.CompletionResponse{Content: f.reply}, nil
}

func (f *fakeProvider) ListModels(context.Context) ([]provider.ModelInfo, error) { return nil, nil }
func (f *fakeProvider) Name() string                                           { return "fake" }
func (f *fakeProvider) CurrentModel() string                                   { return "fake-model" }
func (f *fakeProvider) SetModel(string) error                                  { return nil }

func testConfig() config.SummaryConfig {
	return config.SummaryConfig{
		MaxOutputTokens: config.DefaultSummaryMaxOutputTokens,
		Temperature:     config.DefaultSummaryTemperature,
		Prompt:          config.DefaultSummaryPrompt,
	}
}

func TestSummarizeBuildsPrompt(t *testing.T) {
	fp := &fakeProvider{reply: "  Did X\n"}
	s := NewModelSummarizer(fp, testConfig(), HeuristicTokenizer(), logging.Discard())

	got, err := s.Summarize(context.Background(), "-A\n+B")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Did X" {
		t.Fatalf("summary=%q", got)
	}
	if len(fp.reqs) != 1 {
		t.Fatalf("calls=%d", len(fp.reqs))
	}
	req := fp.reqs[0]
	if req.Messages[0].Content != "Summarize these code changes:\n-A\n+B" {
		t.Fatalf("prompt=%q", req.Messages[0].Content)
	}
	if req.MaxTokens != 200 {
		t.Fatalf("max tokens=%d", req.MaxTokens)
	}
	if req.Temperature == nil || *req.Temperature != 0.3 {
		t.Fatalf("temperature=%v", req.Temperature)
	}
}

func TestSummarizeEmptyDiffSkipsProvider(t *testing.T) {
	fp := &fakeProvider{reply: "x"}
	s := NewModelSummarizer(fp, testConfig(), HeuristicTokenizer(), nil)
	got, err := s.Summarize(context.Background(), "  \n")
	if err != nil || got != "" {
		t.Fatalf("got=%q err=%v", got, err)
	}
	if len(fp.reqs) != 0 {
		t.Fatal("provider should not be called for empty diff")
	}
}

func TestSummarizeTruncatesLongDiff(t *testing.T) {
	fp := &fakeProvider{reply: "ok"}
	cfg := testConfig()
	cfg.MaxInputTokens = 10
	s := NewModelSummarizer(fp, cfg, HeuristicTokenizer(), logging.Discard())

	diff := strings.Repeat("+added line number\n", 50)
	if _, err := s.Summarize(context.Background(), diff); err != nil {
		t.Fatal(err)
	}
	prompt := fp.reqs[0].Messages[0].Content
	if !strings.HasSuffix(prompt, "\n... (diff truncated)") {
		t.Fatalf("missing truncation marker: %q", prompt)
	}
	if len(prompt) >= len(diff) {
		t.Fatalf("prompt not truncated: %d >= %d", len(prompt), len(diff))
	}
}

func TestSummarizeKeepsPartOfOversizedFirstLine(t *testing.T) {
	fp := &fakeProvider{reply: "ok"}
	cfg := testConfig()
	cfg.MaxInputTokens = 50
	s := NewModelSummarizer(fp, cfg, HeuristicTokenizer(), logging.Discard())

	diff := "Added files: " + strings.Repeat("node_modules/pkg/index.js, ", 500) + "\nChanges in a.go:\n-A\n+B"
	if _, err := s.Summarize(context.Background(), diff); err != nil {
		t.Fatal(err)
	}
	prompt := fp.reqs[0].Messages[0].Content
	want := config.DefaultSummaryPrompt + "\nAdded files: node_modules/pkg/index.js"
	if !strings.HasPrefix(prompt, want) {
		t.Fatalf("diff body missing from prompt: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "\n... (diff truncated)") {
		t.Fatalf("missing truncation marker: %q", prompt)
	}
}

func TestSummarizeOrPlaceholder(t *testing.T) {
	fp := &fakeProvider{err: errors.New("service down")}
	s := NewModelSummarizer(fp, testConfig(), HeuristicTokenizer(), nil)

	got, ok := SummarizeOrPlaceholder(context.Background(), s, "-A\n+B", logging.Discard())
	if ok || got != ErrorSummary {
		t.Fatalf("got=%q ok=%v", got, ok)
	}

	st := &Static{Text: "Did X"}
	got, ok = SummarizeOrPlaceholder(context.Background(), st, "diff", nil)
	if !ok || got != "Did X" {
		t.Fatalf("got=%q ok=%v", got, ok)
	}
	if len(st.Inputs) != 1 || st.Inputs[0] != "diff" {
		t.Fatalf("inputs=%v", st.Inputs)
	}
}
