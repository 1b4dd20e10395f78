// Package bot implements the Telegram admin bot used to operate the
// deduplication engines: sweeps, source registration and search.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/config"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/htmlutils"
	"github.com/lueurxax/rss-dedup-digest/internal/process/dedup"
	"github.com/lueurxax/rss-dedup-digest/internal/process/sources"
)

// Sweeper runs duplicate sweeps.
type Sweeper interface {
	FindAndRemoveDuplicates(ctx context.Context, dryRun bool) (dedup.SweepReport, error)
}

// SourceRegistrar registers new feeds.
type SourceRegistrar interface {
	Register(ctx context.Context, req sources.Registration) (*domain.Source, error)
}

// SourceInspector reports on similar sources.
type SourceInspector interface {
	FindPotentialDuplicates(ctx context.Context, sourceID string, threshold float64) (sources.PotentialDuplicates, error)
	DomainStats(ctx context.Context) ([]sources.DomainGroup, error)
}

// ArticleSearcher runs full-text article search.
type ArticleSearcher interface {
	SearchArticles(ctx context.Context, query string, rows int) ([]domain.IndexedDocument, error)
}

// Reindexer backfills the search index.
type Reindexer interface {
	Run(ctx context.Context, full bool) (dedup.SyncReport, error)
}

// Deps are the operations exposed through bot commands.
type Deps struct {
	Sweeper   Sweeper
	Registrar SourceRegistrar
	Sources   SourceInspector
	Search    ArticleSearcher
	Reindexer Reindexer
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type commandHandler func(ctx context.Context, msg *tgbotapi.Message)

type Bot struct {
	cfg      *config.Config
	deps     Deps
	api      *tgbotapi.BotAPI
	sender   sender
	handlers map[string]commandHandler
	logger   *zerolog.Logger
}

func New(cfg *config.Config, deps Deps, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}

	b := newBot(cfg, deps, api, logger)
	b.api = api

	return b, nil
}

func newBot(cfg *config.Config, deps Deps, s sender, logger *zerolog.Logger) *Bot {
	b := &Bot{
		cfg:    cfg,
		deps:   deps,
		sender: s,
		logger: logger,
	}

	b.handlers = map[string]commandHandler{
		CmdStart:      b.handleHelp,
		CmdHelp:       b.handleHelp,
		CmdSweep:      func(ctx context.Context, msg *tgbotapi.Message) { b.handleSweep(ctx, msg, true) },
		CmdSweepApply: func(ctx context.Context, msg *tgbotapi.Message) { b.handleSweep(ctx, msg, false) },
		CmdAddSource:  b.handleAddSource,
		CmdSourceDups: b.handleSourceDups,
		CmdDomains:    b.handleDomains,
		CmdSearch:     b.handleSearch,
		CmdReindex:    b.handleReindex,
	}

	return b
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info().Str(LogFieldUsername, b.api.Self.UserName).Msg("Admin bot started")

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("bot run context canceled: %w", ctx.Err())
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}

			b.handleUpdate(ctx, update.Message)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	if !b.cfg.IsAdmin(msg.From.ID) {
		b.logger.Warn().Int64(LogFieldUserID, msg.From.ID).Str(LogFieldUsername, msg.From.UserName).Msg("Unauthorized access attempt")

		return
	}

	b.handleMessage(ctx, msg)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	b.logger.Info().Str(LogFieldCommand, msg.Command()).Int64(LogFieldUserID, msg.From.ID).Msg("Handling command")

	handler, ok := b.handlers[msg.Command()]
	if !ok {
		b.reply(msg, msgUnknownCommand)

		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	handler(cmdCtx, msg)
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) replyError(msg *tgbotapi.Message, err error) {
	b.reply(msg, fmt.Sprintf(errGenericFmt, htmlutils.Escape(err.Error())))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	for _, part := range htmlutils.SplitMessage(text, htmlutils.TelegramMessageLimit) {
		reply := tgbotapi.NewMessage(chatID, part)
		reply.ParseMode = tgbotapi.ModeHTML
		reply.DisableWebPagePreview = true

		if _, err := b.sender.Send(reply); err != nil {
			b.logger.Error().Err(err).Msg("failed to send reply")
		}
	}
}
