package telegram

import (
	"context"
	"log"
	"time"

	"telegram-bulk-ops/internal/domain/ports/adapter"
)

var _ adapter.ChatBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.ChatBotAdapter for local/dev testing.
// It logs calls instead of talking to Telegram.
type NoopBotAdapter struct{}

func NewNoopBotAdapter() *NoopBotAdapter {
	return &NoopBotAdapter{}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	log.Printf("[noop-telegram] To chat %d: %s\n", params.ChatID, params.Text)
	return nil
}

func (b *NoopBotAdapter) AddChatMember(ctx context.Context, chatID, userID int64) error {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	log.Printf("[noop-telegram] Add user %d to chat %d\n", userID, chatID)
	return nil
}

func (b *NoopBotAdapter) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	log.Printf("[noop-telegram] GetChatMemberCount for chat %d\n", chatID)
	return 1, nil
}
