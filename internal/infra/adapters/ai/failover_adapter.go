// File: internal/infra/adapters/ai/failover_adapter.go
package ai

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/domain/ports/adapter"
)

var _ adapter.ContentGenerator = (*FailoverGenerator)(nil)

// FailoverGenerator tries each configured provider in order until one
// produces content. Campaign generation is not latency-sensitive, so a slow
// fallback beats a failed broadcast.
type FailoverGenerator struct {
	providers []adapter.ContentGenerator
	log       *zerolog.Logger
}

func NewFailoverGenerator(logger *zerolog.Logger, providers ...adapter.ContentGenerator) *FailoverGenerator {
	fLog := logger.With().Str("component", "FailoverGenerator").Logger()
	return &FailoverGenerator{providers: providers, log: &fLog}
}

func (f *FailoverGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, p := range f.providers {
		if p == nil {
			continue
		}
		body, err := p.Generate(ctx, prompt)
		if err == nil && body != "" {
			return body, nil
		}
		lastErr = err
		f.log.Warn().Err(err).Int("provider", i).Msg("generation failed, trying next provider")
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no content provider configured")
	}
	return "", lastErr
}
