package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/domain/ports/adapter"
)

// ContentCache is the two-tier cache port consumed before any generation
// call. Implemented by infra/cache.
type ContentCache interface {
	Get(operation string, params map[string]string) (payload string, ok bool)
	Set(operation string, params map[string]string, payload string)
}

// ContentUseCase produces message bodies for broadcast jobs, caching results
// so the same text is not regenerated for every batch.
type ContentUseCase interface {
	GroupPost(ctx context.Context, theme string) (string, error)
	WelcomeMessage(ctx context.Context, groupTitle string) (string, error)
}

type contentUC struct {
	gen   adapter.ContentGenerator
	cache ContentCache
	log   *zerolog.Logger
}

func NewContentUseCase(gen adapter.ContentGenerator, cache ContentCache, logger *zerolog.Logger) ContentUseCase {
	ucLog := logger.With().Str("component", "ContentUC").Logger()
	return &contentUC{gen: gen, cache: cache, log: &ucLog}
}

func (uc *contentUC) GroupPost(ctx context.Context, theme string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a short, friendly community post about %q. Plain text, no hashtags, under 120 words. "+
			"You may address the reader as {{name}}.", strings.TrimSpace(theme))
	return uc.generate(ctx, "generateGroupPost", map[string]string{"theme": theme}, prompt)
}

func (uc *contentUC) WelcomeMessage(ctx context.Context, groupTitle string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a one-paragraph welcome message for new members of the group %q. "+
			"Warm tone, plain text. Address the reader as {{name}}.", strings.TrimSpace(groupTitle))
	return uc.generate(ctx, "generateWelcome", map[string]string{"group_title": groupTitle}, prompt)
}

func (uc *contentUC) generate(ctx context.Context, operation string, params map[string]string, prompt string) (string, error) {
	if body, ok := uc.cache.Get(operation, params); ok {
		uc.log.Debug().Str("operation", operation).Msg("content served from cache")
		return body, nil
	}
	body, err := uc.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	uc.cache.Set(operation, params, body)
	return body, nil
}
