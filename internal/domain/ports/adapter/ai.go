package adapter

import "context"

// ContentGenerator produces message bodies from a prompt. Generation is
// expensive; callers go through the content cache first.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
