package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"telegram-bulk-ops/internal/usecase"
)

func TestContentUC_GroupPostCachesGeneratedBody(t *testing.T) {
	gen := &MockGenerator{}
	uc := usecase.NewContentUseCase(gen, NewMapCache(), newTestLogger())

	first, err := uc.GroupPost(context.Background(), "spring sale")
	if err != nil {
		t.Fatalf("GroupPost: %v", err)
	}
	second, err := uc.GroupPost(context.Background(), "spring sale")
	if err != nil {
		t.Fatalf("GroupPost (cached): %v", err)
	}
	if first != second {
		t.Errorf("cached body differs: %q vs %q", first, second)
	}
	if gen.Calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.Calls)
	}
}

func TestContentUC_DifferentThemesGenerateSeparately(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			return prompt, nil
		},
	}
	uc := usecase.NewContentUseCase(gen, NewMapCache(), newTestLogger())

	a, _ := uc.GroupPost(context.Background(), "spring sale")
	b, _ := uc.GroupPost(context.Background(), "winter sale")
	if a == b {
		t.Error("different themes must not share a cache entry")
	}
	if gen.Calls != 2 {
		t.Errorf("generator called %d times, want 2", gen.Calls)
	}
}

func TestContentUC_WelcomePromptCarriesGroupTitle(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			if !strings.Contains(prompt, "Gophers") {
				t.Errorf("prompt missing group title: %q", prompt)
			}
			return "welcome!", nil
		},
	}
	uc := usecase.NewContentUseCase(gen, NewMapCache(), newTestLogger())
	if _, err := uc.WelcomeMessage(context.Background(), "Gophers"); err != nil {
		t.Fatalf("WelcomeMessage: %v", err)
	}
}

func TestContentUC_GenerationFailureIsNotCached(t *testing.T) {
	boom := errors.New("model overloaded")
	fail := true
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			if fail {
				return "", boom
			}
			return "recovered body", nil
		},
	}
	uc := usecase.NewContentUseCase(gen, NewMapCache(), newTestLogger())

	if _, err := uc.GroupPost(context.Background(), "launch"); !errors.Is(err, boom) {
		t.Fatalf("expected generation error, got %v", err)
	}

	fail = false
	body, err := uc.GroupPost(context.Background(), "launch")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if body != "recovered body" {
		t.Errorf("body = %q, want the fresh generation", body)
	}
	if gen.Calls != 2 {
		t.Errorf("generator called %d times, want 2", gen.Calls)
	}
}
