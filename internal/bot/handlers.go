package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/htmlutils"
	"github.com/lueurxax/rss-dedup-digest/internal/process/sources"
)

func (b *Bot) handleHelp(_ context.Context, msg *tgbotapi.Message) {
	b.reply(msg, helpText)
}

func (b *Bot) handleSweep(ctx context.Context, msg *tgbotapi.Message, dryRun bool) {
	report, err := b.deps.Sweeper.FindAndRemoveDuplicates(ctx, dryRun)
	if errors.Is(err, apperrors.ErrLockNotAcquired) {
		b.reply(msg, msgSweepBusy)

		return
	}

	if err != nil {
		b.replyError(msg, err)

		return
	}

	var sb strings.Builder

	if dryRun {
		sb.WriteString("🔍 <b>Duplicate sweep (dry run)</b>\n\n")
	} else {
		sb.WriteString("🧹 <b>Duplicate sweep</b>\n\n")
	}

	fmt.Fprintf(&sb, "Found: <code>%d</code>\nRemoved: <code>%d</code>\nErrors: <code>%d</code>\n",
		report.DuplicatesFound, report.DuplicatesRemoved, report.Errors)

	if len(report.Details) > 0 {
		sb.WriteString("\n")
	}

	for i, d := range report.Details {
		if i == maxSweepDetails {
			fmt.Fprintf(&sb, "… and %d more\n", len(report.Details)-maxSweepDetails)

			break
		}

		fmt.Fprintf(&sb, "• %s <i>[%s]</i>\n  ↳ %s <i>[%s]</i> <i>(%s %.2f, %s)</i>\n",
			htmlutils.Escape(d.Title), d.CreatedAt.Format(dateFormat),
			htmlutils.Escape(d.OriginalTitle), d.OriginalCreatedAt.Format(dateFormat),
			htmlutils.Escape(d.Method), d.Similarity, d.Status)
	}

	b.reply(msg, sb.String())
}

func (b *Bot) handleAddSource(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		b.reply(msg, msgUsageAddSource)

		return
	}

	req := sources.Registration{
		URL:     args[0],
		OwnerID: msg.From.ID,
	}

	if len(args) > 1 {
		req.Category = strings.Join(args[1:], " ")
	}

	src, err := b.deps.Registrar.Register(ctx, req)
	if err != nil {
		var dup *sources.DuplicateError
		if errors.As(err, &dup) {
			b.reply(msg, formatDuplicate(dup.Result))

			return
		}

		b.replyError(msg, err)

		return
	}

	b.reply(msg, fmt.Sprintf("✅ Registered <b>%s</b>\n<code>%s</code>\nID: <code>%s</code>",
		htmlutils.Escape(displayTitle(*src)), htmlutils.Escape(src.Link), src.ID))
}

func formatDuplicate(res sources.CheckResult) string {
	if res.Existing == nil {
		return fmt.Sprintf("⚠️ Duplicate source: %s", htmlutils.Escape(res.Reason))
	}

	return fmt.Sprintf("⚠️ Already registered as <b>%s</b>\n<code>%s</code>\nReason: %s\nConfidence: <code>%.2f</code>",
		htmlutils.Escape(displayTitle(*res.Existing)), htmlutils.Escape(res.Existing.Link),
		htmlutils.Escape(res.Reason), res.Confidence)
}

func (b *Bot) handleSourceDups(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		b.reply(msg, msgUsageSourceDups)

		return
	}

	threshold := sources.DefaultPotentialThreshold

	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || v < 0 || v > 1 {
			b.reply(msg, msgInvalidThreshold)

			return
		}

		threshold = v
	}

	res, err := b.deps.Sources.FindPotentialDuplicates(ctx, args[0], threshold)
	if errors.Is(err, apperrors.ErrSourceNotFound) {
		b.reply(msg, fmt.Sprintf("Source <code>%s</code> not found.", htmlutils.Escape(args[0])))

		return
	}

	if err != nil {
		b.replyError(msg, err)

		return
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>Similar to %s</b>\n\n", htmlutils.Escape(displayTitle(res.Source)))

	if len(res.Duplicates) == 0 {
		sb.WriteString(msgNoDuplicates)
	}

	for _, m := range res.Duplicates {
		fmt.Fprintf(&sb, "• %s <code>%.2f</code>\n  <code>%s</code>\n  <i>%s</i>\n",
			htmlutils.Escape(displayTitle(m.Source)), m.Confidence,
			htmlutils.Escape(m.Source.Link), htmlutils.Escape(m.Reason))
	}

	b.reply(msg, sb.String())
}

func (b *Bot) handleDomains(ctx context.Context, msg *tgbotapi.Message) {
	groups, err := b.deps.Sources.DomainStats(ctx)
	if err != nil {
		b.replyError(msg, err)

		return
	}

	if len(groups) == 0 {
		b.reply(msg, "No domains with more than one source.")

		return
	}

	var sb strings.Builder

	sb.WriteString("🌐 <b>Shared domains</b>\n\n")

	for i, g := range groups {
		if i == maxDomainGroups {
			fmt.Fprintf(&sb, "… and %d more\n", len(groups)-maxDomainGroups)

			break
		}

		fmt.Fprintf(&sb, "• <code>%s</code>: %d sources, confidence <code>%.2f</code>\n",
			htmlutils.Escape(g.Domain), len(g.Sources), g.AverageConfidence)
	}

	b.reply(msg, sb.String())
}

func (b *Bot) handleSearch(ctx context.Context, msg *tgbotapi.Message) {
	query := strings.TrimSpace(msg.CommandArguments())
	if query == "" {
		b.reply(msg, msgUsageSearch)

		return
	}

	docs, err := b.deps.Search.SearchArticles(ctx, query, searchRows)
	if err != nil {
		b.replyError(msg, err)

		return
	}

	if len(docs) == 0 {
		b.reply(msg, msgNoResults)

		return
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "🔎 <b>%s</b>\n\n", htmlutils.Escape(query))

	for _, d := range docs {
		sb.WriteString(formatSearchHit(d))
	}

	b.reply(msg, sb.String())
}

func formatSearchHit(d domain.IndexedDocument) string {
	var sb strings.Builder

	title := htmlutils.Escape(d.Title)
	if d.URL != "" {
		title = fmt.Sprintf("<a href=\"%s\">%s</a>", htmlutils.Escape(d.URL), title)
	}

	fmt.Fprintf(&sb, "• %s", title)

	if d.SourceName != "" {
		fmt.Fprintf(&sb, " <i>%s</i>", htmlutils.Escape(d.SourceName))
	}

	if !d.PublishedAt.IsZero() {
		fmt.Fprintf(&sb, " %s", d.PublishedAt.Format(dateFormat))
	}

	sb.WriteString("\n")

	if d.Summary != "" {
		fmt.Fprintf(&sb, "  %s\n", htmlutils.Escape(snippet(d.Summary, snippetLength)))
	}

	return sb.String()
}

func (b *Bot) handleReindex(ctx context.Context, msg *tgbotapi.Message) {
	full := strings.EqualFold(strings.TrimSpace(msg.CommandArguments()), argReindexFull)

	report, err := b.deps.Reindexer.Run(ctx, full)
	if errors.Is(err, apperrors.ErrLockNotAcquired) {
		b.reply(msg, "Another index sync is already running.")

		return
	}

	if err != nil {
		b.replyError(msg, err)

		return
	}

	mode := "incremental"
	if report.Full {
		mode = argReindexFull
	}

	b.reply(msg, fmt.Sprintf("📚 Index sync (%s)\nIndexed: <code>%d</code>\nFailed: <code>%d</code>",
		mode, report.Indexed, report.Failed))
}

func displayTitle(s domain.Source) string {
	if s.Title != "" {
		return s.Title
	}

	return s.Link
}

func snippet(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}

	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
