// File: internal/domain/ports/adapter/chat.go
package adapter

import "context"

type SendMessageParams struct {
	ChatID int64
	Text   string
}

// ChatBotAdapter is the chat-protocol client. Errors are raw provider strings;
// the error classifier in usecase is their sole interpreter.
type ChatBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
	AddChatMember(ctx context.Context, chatID int64, userID int64) error
	GetChatMemberCount(ctx context.Context, chatID int64) (int, error)
}
