package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/ports/repository"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
// Every job command is admin-gated; ordinary contacts only get /optout.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"optout": r.handleOptOutCommand,
		"help":   r.handleHelpCommand,

		"addmembers": r.adminOnly(r.handleAddMembersCommand),
		"replicate":  r.adminOnly(r.handleReplicateCommand),
		"broadcast":  r.adminOnly(r.handleBroadcastCommand),
		"post":       r.adminOnly(r.handlePostCommand),
		"status":     r.adminOnly(r.handleStatusCommand),
		"jobs":       r.adminOnly(r.handleJobsCommand),
		"pause":      r.adminOnly(r.handlePauseCommand),
		"resume":     r.adminOnly(r.handleResumeCommand),
		"cancel":     r.adminOnly(r.handleCancelCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if message.From == nil || !r.isAdmin(message.From.ID) {
			return r.reply(ctx, message.Chat.ID, "This command is restricted.")
		}
		if r.control == nil {
			return r.reply(ctx, message.Chat.ID, "Job control is not available yet.")
		}
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleOptOutCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil {
		return nil
	}
	contact, err := r.contacts.FindByTelegramID(ctx, repository.NoTX, message.From.ID)
	if err != nil {
		return r.reply(ctx, message.Chat.ID, "You are not on any list.")
	}
	if err := r.contacts.MarkOptedOut(ctx, repository.NoTX, contact.ID); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", message.From.ID).Msg("opt-out failed")
		return r.reply(ctx, message.Chat.ID, "Could not process the opt-out, try again later.")
	}
	return r.reply(ctx, message.Chat.ID, "You will no longer receive messages or invitations from this bot.")
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message.From != nil && r.isAdmin(message.From.ID) {
		return r.reply(ctx, message.Chat.ID, "Commands:\n"+
			"/addmembers <group> - add known contacts to a group\n"+
			"/replicate <source> <target> - copy membership between groups\n"+
			"/broadcast <text> - message every contact ({{name}} is substituted)\n"+
			"/post <theme> - generate a post and broadcast it\n"+
			"/status <job_id> - job progress\n"+
			"/jobs - list unfinished jobs\n"+
			"/pause | /resume | /cancel <job_id>")
	}
	return r.reply(ctx, message.Chat.ID, "/optout - stop receiving messages from this bot")
}

func (r *RealTelegramBotAdapter) handleAddMembersCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 1 {
		return r.reply(ctx, message.Chat.ID, "Usage: /addmembers <group>")
	}
	jobID, err := r.control.StartAddMembers(ctx, args[0])
	if err != nil {
		return r.replyStartError(ctx, message.Chat.ID, err)
	}
	return r.reply(ctx, message.Chat.ID, "Queued add-members job "+jobID)
}

func (r *RealTelegramBotAdapter) handleReplicateCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 {
		return r.reply(ctx, message.Chat.ID, "Usage: /replicate <source> <target>")
	}
	jobID, err := r.control.StartReplicate(ctx, args[0], args[1])
	if err != nil {
		return r.replyStartError(ctx, message.Chat.ID, err)
	}
	return r.reply(ctx, message.Chat.ID, "Queued replicate job "+jobID)
}

func (r *RealTelegramBotAdapter) handleBroadcastCommand(ctx context.Context, message *tgbotapi.Message) error {
	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		return r.reply(ctx, message.Chat.ID, "Usage: /broadcast <message text>")
	}
	jobID, err := r.control.StartBroadcast(ctx, "manual", text)
	if err != nil {
		return r.replyStartError(ctx, message.Chat.ID, err)
	}
	return r.reply(ctx, message.Chat.ID, "Queued broadcast job "+jobID)
}

// handlePostCommand generates campaign content first, then queues the
// broadcast with the generated body as payload.
func (r *RealTelegramBotAdapter) handlePostCommand(ctx context.Context, message *tgbotapi.Message) error {
	theme := strings.TrimSpace(message.CommandArguments())
	if theme == "" {
		return r.reply(ctx, message.Chat.ID, "Usage: /post <theme>")
	}
	if r.content == nil {
		return r.reply(ctx, message.Chat.ID, "Content generation is not configured.")
	}
	body, err := r.content.GroupPost(ctx, theme)
	if err != nil {
		r.log.Warn().Err(err).Str("theme", theme).Msg("content generation failed")
		return r.reply(ctx, message.Chat.ID, "Could not generate content for that theme.")
	}
	jobID, err := r.control.StartBroadcast(ctx, theme, body)
	if err != nil {
		return r.replyStartError(ctx, message.Chat.ID, err)
	}
	return r.reply(ctx, message.Chat.ID, "Queued broadcast job "+jobID+" with generated content:\n\n"+body)
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 1 {
		return r.reply(ctx, message.Chat.ID, "Usage: /status <job_id>")
	}
	job, err := r.control.Status(ctx, args[0])
	if err != nil {
		return r.reply(ctx, message.Chat.ID, "No such job.")
	}
	return r.reply(ctx, message.Chat.ID, formatJobStatus(job))
}

func (r *RealTelegramBotAdapter) handleJobsCommand(ctx context.Context, message *tgbotapi.Message) error {
	jobs, err := r.control.ListActive(ctx)
	if err != nil {
		return r.reply(ctx, message.Chat.ID, "Could not list jobs.")
	}
	if len(jobs) == 0 {
		return r.reply(ctx, message.Chat.ID, "No unfinished jobs.")
	}
	var b strings.Builder
	b.WriteString("Unfinished jobs:\n")
	for _, job := range jobs {
		b.WriteString(job.ID + " " + string(job.Kind) + " " + string(job.State) + "\n")
	}
	return r.reply(ctx, message.Chat.ID, b.String())
}

func (r *RealTelegramBotAdapter) handlePauseCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 1 {
		return r.reply(ctx, message.Chat.ID, "Usage: /pause <job_id>")
	}
	if err := r.control.Pause(ctx, args[0]); err != nil {
		return r.reply(ctx, message.Chat.ID, "Cannot pause: "+controlErrorText(err))
	}
	return r.reply(ctx, message.Chat.ID, "Pause requested; the job stops at the next item.")
}

func (r *RealTelegramBotAdapter) handleResumeCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 1 {
		return r.reply(ctx, message.Chat.ID, "Usage: /resume <job_id>")
	}
	if err := r.control.Resume(ctx, args[0]); err != nil {
		return r.reply(ctx, message.Chat.ID, "Cannot resume: "+controlErrorText(err))
	}
	return r.reply(ctx, message.Chat.ID, "Job re-queued.")
}

func (r *RealTelegramBotAdapter) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 1 {
		return r.reply(ctx, message.Chat.ID, "Usage: /cancel <job_id>")
	}
	if err := r.control.Cancel(ctx, args[0]); err != nil {
		return r.reply(ctx, message.Chat.ID, "Cannot cancel: "+controlErrorText(err))
	}
	return r.reply(ctx, message.Chat.ID, "Cancel requested.")
}

func (r *RealTelegramBotAdapter) replyStartError(ctx context.Context, chatID int64, err error) error {
	return r.reply(ctx, chatID, "Could not queue the job: "+controlErrorText(err))
}

func controlErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "job not found."
	case errors.Is(err, domain.ErrInvalidTransition):
		return "the job is not in a state that allows this."
	case errors.Is(err, domain.ErrJobNotResumable):
		return "only paused jobs can be resumed."
	case errors.Is(err, domain.ErrJobAlreadyRunning):
		return "the job is already running."
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid arguments."
	default:
		return "internal error."
	}
}
