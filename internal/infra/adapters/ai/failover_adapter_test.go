package ai_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	ai "telegram-bulk-ops/internal/infra/adapters/ai"
)

type stubGen struct {
	body string
	err  error
	n    int
}

func (s *stubGen) Generate(ctx context.Context, prompt string) (string, error) {
	s.n++
	return s.body, s.err
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestFailover_FirstProviderWins(t *testing.T) {
	t.Parallel()
	primary := &stubGen{body: "primary"}
	backup := &stubGen{body: "backup"}

	f := ai.NewFailoverGenerator(testLogger(), primary, backup)
	body, err := f.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if body != "primary" || backup.n != 0 {
		t.Fatalf("primary should serve the request, got %q (backup called %d times)", body, backup.n)
	}
}

func TestFailover_FallsThroughOnError(t *testing.T) {
	t.Parallel()
	primary := &stubGen{err: errors.New("quota exceeded")}
	backup := &stubGen{body: "backup"}

	f := ai.NewFailoverGenerator(testLogger(), primary, backup)
	body, err := f.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if body != "backup" || primary.n != 1 {
		t.Fatalf("backup should serve after primary fails, got %q", body)
	}
}

func TestFailover_AllProvidersFail(t *testing.T) {
	t.Parallel()
	boom := errors.New("down")
	f := ai.NewFailoverGenerator(testLogger(), &stubGen{err: boom}, &stubGen{err: boom})

	if _, err := f.Generate(context.Background(), "prompt"); !errors.Is(err, boom) {
		t.Fatalf("expected the last provider error, got %v", err)
	}
}

func TestFailover_NoProviders(t *testing.T) {
	t.Parallel()
	f := ai.NewFailoverGenerator(testLogger())
	if _, err := f.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected an error with no providers configured")
	}
}
