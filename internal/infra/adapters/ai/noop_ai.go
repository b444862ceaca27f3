package ai

import (
	"context"

	"telegram-bulk-ops/internal/domain/ports/adapter"
)

var _ adapter.ContentGenerator = (*NoopGenerator)(nil)

// NoopGenerator returns a fixed body for local/dev runs without API keys.
type NoopGenerator struct{}

func NewNoopGenerator() *NoopGenerator { return &NoopGenerator{} }

func (NoopGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "Hello {{name}}! (generated content placeholder)", nil
}
