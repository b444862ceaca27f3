package telegram

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/domain/ports/adapter"
)

var _ adapter.ProgressObserver = (*ProgressNotifier)(nil)

// ProgressNotifier reports batch progress to the operator chat. Delivery is
// best-effort; a failed report never affects the job.
type ProgressNotifier struct {
	bot    adapter.ChatBotAdapter
	chatID int64
	log    *zerolog.Logger
}

func NewProgressNotifier(bot adapter.ChatBotAdapter, chatID int64, logger *zerolog.Logger) *ProgressNotifier {
	nLog := logger.With().Str("component", "ProgressNotifier").Logger()
	return &ProgressNotifier{bot: bot, chatID: chatID, log: &nLog}
}

func (n *ProgressNotifier) Notify(ctx context.Context, snap adapter.ProgressSnapshot) {
	if n.chatID == 0 {
		return
	}
	text := fmt.Sprintf("Job %s (%s): %s %d/%d (%d%%)\nOK %d, skipped %d, failed %d",
		snap.JobID, snap.Kind, snap.State,
		snap.Processed, snap.Total, snap.Percent,
		snap.Succeeded, snap.Skipped, snap.Failed)
	if snap.Final && len(snap.ErrorSample) > 0 {
		text += "\nSample errors:"
		for _, e := range snap.ErrorSample {
			text += "\n- " + e
		}
	}
	if err := n.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: n.chatID, Text: text}); err != nil {
		n.log.Warn().Err(err).Str("job_id", snap.JobID).Msg("progress report not delivered")
	}
}
