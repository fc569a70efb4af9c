package usecase

import (
	"context"
	"errors"
	"log/slog"

	"market-bot/internal/domain"
)

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

// Responder wraps the language model so callers always get user-safe text.
type Responder struct {
	llm    LLMClient
	model  string
	logger *slog.Logger
}

func NewResponder(llm LLMClient, model string, logger *slog.Logger) (*Responder, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{llm: llm, model: model, logger: logger.With(slog.String("component", "responder"))}, nil
}

// Generate answers prompt, with hint injected as a separate system message
// when non-empty. Any failure yields FallbackText.
func (r *Responder) Generate(ctx context.Context, prompt, hint string) string {
	text, err := r.llm.Chat(ctx, r.model, buildMessages(prompt, hint))
	if err != nil {
		e := upstreamError("openai", err)
		r.logger.ErrorContext(ctx, "completion failed",
			slog.String("code", string(e.Code)),
			slog.String("reason", e.Reason),
			slog.Any("error", err),
		)
		return FallbackText
	}
	return text
}

// Flagged reports whether input should be refused. Moderation outages do not
// block answers.
func (r *Responder) Flagged(ctx context.Context, input string) bool {
	flagged, err := r.llm.Moderate(ctx, input)
	if err != nil {
		r.logger.WarnContext(ctx, "moderation unavailable, continuing", slog.Any("error", err))
		return false
	}
	return flagged
}
