package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/config"
	"telegram-bulk-ops/internal/domain/model"
	"telegram-bulk-ops/internal/domain/ports/adapter"
	"telegram-bulk-ops/internal/domain/ports/repository"
	"telegram-bulk-ops/internal/infra/logging"
	"telegram-bulk-ops/internal/infra/metrics"
	red "telegram-bulk-ops/internal/infra/redis"
	"telegram-bulk-ops/internal/usecase"
)

var _ adapter.ChatBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter is both sides of the bot: the provider client the
// batch runner calls through the adapter port, and the polling loop that
// passively collects contacts and serves operator commands.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	contacts    repository.ContactRepository
	groups      repository.GroupRepository
	txm         repository.TransactionManager
	control     usecase.JobControl
	content     usecase.ContentUseCase
	rateLimiter *red.RateLimiter
	log         *zerolog.Logger

	adminIDsMap   map[int64]struct{}
	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(
	cfg *config.BotConfig,
	contacts repository.ContactRepository,
	groups repository.GroupRepository,
	txm repository.TransactionManager,
	rateLimiter *red.RateLimiter,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if contacts == nil || groups == nil {
		return nil, errors.New("contact and group repositories are required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	botLog := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		contacts:      contacts,
		groups:        groups,
		txm:           txm,
		rateLimiter:   rateLimiter,
		log:           &botLog,
		adminIDsMap:   adminMap,
		updateWorkers: workers,
	}, nil
}

// BindControl injects the job surfaces after construction. The bot and the
// batch runner reference each other, so one side has to bind late.
func (r *RealTelegramBotAdapter) BindControl(control usecase.JobControl, content usecase.ContentUseCase) {
	r.control = control
	r.content = content
}

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-updateChan:
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Warn().Err(err).Int("worker", id).Msg("update handling failed")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// ---- adapter.ChatBotAdapter ----

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	start := time.Now()
	msg := tgbotapi.NewMessage(params.ChatID, params.Text)
	_, err := r.bot.Send(msg)
	metrics.ObserveTelegramCall("sendMessage", time.Since(start).Seconds(), err == nil)
	return err
}

func (r *RealTelegramBotAdapter) AddChatMember(ctx context.Context, chatID, userID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	start := time.Now()
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("user_id", userID)
	_, err := r.bot.MakeRequest("addChatMember", params)
	metrics.ObserveTelegramCall("addChatMember", time.Since(start).Seconds(), err == nil)
	return err
}

func (r *RealTelegramBotAdapter) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	start := time.Now()
	n, err := r.bot.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	metrics.ObserveTelegramCall("getChatMemberCount", time.Since(start).Seconds(), err == nil)
	return n, err
}

// ---- update handling ----

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}
	msg := update.Message
	if msg.From != nil {
		ctx = logging.WithTgID(ctx, msg.From.ID)
	}

	// every update feeds the contact graph before any command logic runs
	r.collect(ctx, msg)

	if !msg.IsCommand() {
		return nil
	}

	command := msg.Command()
	if msg.From != nil && r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(msg.From.ID, "/"+command), 20, time.Minute)
		if err != nil {
			logging.With(ctx, r.log).Warn().Err(err).Msg("command rate limit check failed")
		} else if !allowed {
			return r.reply(ctx, msg.Chat.ID, "Rate limit exceeded. Please try again later.")
		}
	}

	if fn, ok := r.commandRoutes()[command]; ok {
		return fn(ctx, msg)
	}
	return nil
}

// collect records senders, chats, memberships and joins as they are observed.
// The bot cannot enumerate group members, so this passive feed is the only
// source of candidates. Everything one update reveals is written in a single
// transaction, so a contact never lands without its membership row.
func (r *RealTelegramBotAdapter) collect(ctx context.Context, msg *tgbotapi.Message) {
	err := r.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var group *model.Group
		if msg.Chat != nil && (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) {
			group = &model.Group{
				ChatID: msg.Chat.ID,
				Title:  msg.Chat.Title,
			}
			if msg.Chat.UserName != "" {
				group.Ref = "@" + msg.Chat.UserName
			}
			if err := r.groups.Save(ctx, tx, group); err != nil {
				return err
			}
		}

		record := func(u *tgbotapi.User) error {
			if u == nil {
				return nil
			}
			c := &model.Contact{
				TelegramID: u.ID,
				Username:   u.UserName,
				FirstName:  u.FirstName,
				IsBot:      u.IsBot,
			}
			if err := r.contacts.Save(ctx, tx, c); err != nil {
				return err
			}
			if group != nil {
				return r.groups.RecordMembership(ctx, tx, group.ID, c.ID)
			}
			return nil
		}

		if err := record(msg.From); err != nil {
			return err
		}
		for i := range msg.NewChatMembers {
			if err := record(&msg.NewChatMembers[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("could not record update")
	}
}

func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, text string) error {
	return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: text})
}

func (r *RealTelegramBotAdapter) isAdmin(userID int64) bool {
	_, ok := r.adminIDsMap[userID]
	return ok
}

func formatJobStatus(job *model.Job) string {
	s := "Job " + job.ID + " (" + string(job.Kind) + ")\n" +
		"State: " + string(job.State) + "\n" +
		"Progress: " + strconv.Itoa(job.Processed) + "/" + strconv.Itoa(job.Total) +
		" (" + strconv.Itoa(job.Percent()) + "%)\n" +
		"OK: " + strconv.Itoa(job.Succeeded) +
		"  Skipped: " + strconv.Itoa(job.Skipped) +
		"  Failed: " + strconv.Itoa(job.Failed)
	if job.LastError != "" {
		s += "\nLast error: " + job.LastError
	}
	return s
}
