// Package summary turns diff text into a short natural-language summary
// through a text-generation provider.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"devlog/internal/config"
	"devlog/internal/provider"
)

// ErrorSummary is recorded in place of a summary when generation fails.
const ErrorSummary = "Error generating summary."

const truncatedMarker = "... (diff truncated)"

// Summarizer produces a summary for a diff.
type Summarizer interface {
	Summarize(ctx context.Context, diffText string) (string, error)
}

// ModelSummarizer asks a provider to summarize diffs.
type ModelSummarizer struct {
	provider provider.Provider
	cfg      config.SummaryConfig
	log      *slog.Logger

	tokOnce   sync.Once
	tokenizer *Tokenizer
}

// NewModelSummarizer builds a summarizer. A nil tokenizer is resolved from
// the provider's current model on first use.
func NewModelSummarizer(p provider.Provider, cfg config.SummaryConfig, tok *Tokenizer, log *slog.Logger) *ModelSummarizer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		cfg.Prompt = config.DefaultSummaryPrompt
	}
	return &ModelSummarizer{provider: p, cfg: cfg, tokenizer: tok, log: log}
}

func (s *ModelSummarizer) tokenizerFor() *Tokenizer {
	s.tokOnce.Do(func() {
		if s.tokenizer == nil {
			s.tokenizer = TokenizerForModel(s.provider.CurrentModel())
		}
	})
	return s.tokenizer
}

func (s *ModelSummarizer) Summarize(ctx context.Context, diffText string) (string, error) {
	if strings.TrimSpace(diffText) == "" {
		return "", nil
	}

	body := diffText
	if s.cfg.MaxInputTokens > 0 {
		tok := s.tokenizerFor()
		var truncated bool
		if body, truncated = tok.Truncate(diffText, s.cfg.MaxInputTokens); truncated {
			s.log.Warn("diff truncated before summarizing",
				"max_input_tokens", s.cfg.MaxInputTokens,
				"encoding", tok.EncodingName())
			body += "\n" + truncatedMarker
		}
	}

	temp := s.cfg.Temperature
	resp, err := s.provider.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: "user", Content: s.cfg.Prompt + "\n" + body},
		},
		Temperature: &temp,
		MaxTokens:   s.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	s.log.Debug("summary generated",
		"model", s.provider.CurrentModel(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return strings.TrimSpace(resp.Content), nil
}

// SummarizeOrPlaceholder never fails: any error is logged and replaced by
// ErrorSummary.
func SummarizeOrPlaceholder(ctx context.Context, s Summarizer, diffText string, log *slog.Logger) (string, bool) {
	out, err := s.Summarize(ctx, diffText)
	if err != nil {
		if log != nil {
			log.Error("error generating summary", "error", err)
		}
		return ErrorSummary, false
	}
	return out, true
}

// Static returns a fixed summary, or Err when set.
type Static struct {
	Text string
	Err  error

	Inputs []string
}

func (s *Static) Summarize(_ context.Context, diffText string) (string, error) {
	s.Inputs = append(s.Inputs, diffText)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}
