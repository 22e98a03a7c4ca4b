// Package bot provides the Telegram surface: operator commands for
// managing the track list and the Sender the engine delivers alerts
// through.
package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"metracker/internal/config"
	"metracker/internal/dedup"
	"metracker/internal/engine"
	"metracker/internal/magiceden"
	"metracker/internal/scheduler"
	"metracker/internal/tracks"
)

// Bot handles Telegram interactions for the tracker. The config is
// hot-reloaded on the command goroutine while the scheduler goroutine
// reads it through the Sender, so it lives behind an atomic pointer.
type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       atomic.Pointer[config.Config]
	store     *tracks.Store
	seen      *dedup.Cache
	engine    *engine.Engine
	backoff   *scheduler.Backoff
	stopCh    chan struct{}
	startedAt time.Time

	// Message IDs this bot has sent, so /cleanup can delete them.
	mu   sync.Mutex
	sent []int
}

// New connects to Telegram and builds the bot. The engine is attached
// afterwards with SetEngine, since the engine's alert Sender is the
// bot itself.
func New(cfg *config.Config, store *tracks.Store, seen *dedup.Cache,
	backoff *scheduler.Backoff) (*Bot, error) {

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	b := &Bot{
		api:       api,
		store:     store,
		seen:      seen,
		backoff:   backoff,
		stopCh:    make(chan struct{}),
		startedAt: time.Now(),
	}
	b.cfg.Store(cfg)
	return b, nil
}

// config returns the current settings snapshot.
func (b *Bot) config() *config.Config {
	return b.cfg.Load()
}

// SetEngine attaches the ingestion engine so track commands can warm
// up and re-index newly tracked collections.
func (b *Bot) SetEngine(e *engine.Engine) {
	b.engine = e
}

// Start begins the command listener and announces the bot.
func (b *Bot) Start() {
	go b.listenForCommands()

	taskCount := 0
	if tasks, err := b.store.Tasks(); err == nil {
		taskCount = len(tasks)
	}
	b.SendStatus(fmt.Sprintf("🟢 metracker online. Watching %d task(s).", taskCount))
}

// Stop stops the bot.
func (b *Bot) Stop() {
	close(b.stopCh)
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	// Pick up config edits before every command.
	if cfg, err := config.Reload(); err == nil {
		b.cfg.Store(cfg)
	} else {
		log.Warn().Err(err).Msg("Config reload failed, keeping previous settings")
	}

	if msg.From == nil || msg.From.ID != b.config().OwnerID {
		b.reply(msg.Chat.ID, "⛔ This bot only answers to its owner.")
		return
	}

	command := msg.Command()
	args := strings.Fields(msg.CommandArguments())

	log.Debug().Str("command", command).Strs("args", args).Msg("Received command")

	switch command {
	case "start", "help":
		b.cmdHelp(msg.Chat.ID)
		return
	}

	intent, err := ParseIntent(command, args)
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ "+err.Error())
		return
	}
	b.dispatch(msg.Chat.ID, intent)
}

func (b *Bot) dispatch(chatID int64, intent Intent) {
	switch intent.Action {
	case ActionTrack, ActionSalesTrack:
		b.cmdTrack(chatID, intent)
	case ActionUntrack, ActionSalesUntrack:
		b.cmdUntrack(chatID, intent)
	case ActionList:
		b.cmdList(chatID)
	case ActionTest:
		b.cmdTest(chatID)
	case ActionCleanup:
		b.cmdCleanup(chatID)
	case ActionStatus:
		b.cmdStatus(chatID)
	}
}

// Commands

func (b *Bot) cmdHelp(chatID int64) {
	b.replyMarkdown(chatID, `📚 *metracker commands*

*Tracking:*
/track <url-or-symbol> <max_price> [min_rarity] - watch listings
/untrack <url-or-symbol> - stop watching listings
/salestrack <url-or-symbol> <max_price> [min_rarity] - watch sales
/salesuntrack <url-or-symbol> - stop watching sales
/list - show tracked collections

*Maintenance:*
/test - clear the seen cache and re-alert on current activity
/cleanup - delete my messages in this chat
/status - uptime, tasks and polling state

Max price is in SOL; 0 means no ceiling. Min rarity is one of
Mythic, Legendary, Epic, Rare, Uncommon, Common.`)
}

func (b *Bot) cmdTrack(chatID int64, intent Intent) {
	filter := tracks.Filter{MinRarity: intent.MinRarity}
	if intent.MaxPrice != nil {
		filter.MaxPrice, _ = intent.MaxPrice.Float64()
	}

	if err := b.store.Upsert(intent.Symbol, intent.Kind(), filter); err != nil {
		b.reply(chatID, fmt.Sprintf("❌ Could not save track list: %s", err))
		return
	}

	desc := fmt.Sprintf("max price %s SOL", intent.MaxPrice)
	if filter.MaxPrice == 0 {
		desc = "no price ceiling"
	}
	if intent.MinRarity != nil {
		desc += fmt.Sprintf(", min rarity %s", *intent.MinRarity)
	}
	b.reply(chatID, fmt.Sprintf("✅ Now tracking %s for %s (%s).",
		kindWord(intent.Kind()), intent.Symbol, desc))

	// Warm rarity data and index what is already visible so only
	// genuinely new events alert.
	if b.engine != nil {
		ctx := context.Background()
		b.engine.EnsureCollection(ctx, intent.Symbol)
		b.engine.Index(ctx)
	}
}

func (b *Bot) cmdUntrack(chatID int64, intent Intent) {
	removed, err := b.store.Remove(intent.Symbol, intent.Kind())
	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ Could not save track list: %s", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("🤷 No %s track for %s.", kindWord(intent.Kind()), intent.Symbol))
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Stopped tracking %s for %s.", kindWord(intent.Kind()), intent.Symbol))
}

func (b *Bot) cmdList(chatID int64) {
	doc, err := b.store.Load()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ Could not read track list: %s", err))
		return
	}
	if len(doc.Collections) == 0 && len(doc.SalesCollections) == 0 {
		b.reply(chatID, "No collections are being tracked.")
		return
	}

	var sb strings.Builder
	if len(doc.Collections) > 0 {
		sb.WriteString("*Tracking listings:*\n")
		writeFilterList(&sb, doc.Collections)
	}
	if len(doc.SalesCollections) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("*Tracking sales:*\n")
		writeFilterList(&sb, doc.SalesCollections)
	}
	b.replyMarkdown(chatID, sb.String())
}

func (b *Bot) cmdTest(chatID int64) {
	listings, sales := b.seen.Clear()
	log.Info().Int("listings", listings).Int("sales", sales).Msg("🔄 Seen cache cleared by operator")
	b.reply(chatID, fmt.Sprintf(
		"🔄 Cleared seen cache: %d listings, %d sales. Will re-alert on current activities.",
		listings, sales))
}

func (b *Bot) cmdCleanup(chatID int64) {
	b.mu.Lock()
	ids := b.sent
	b.sent = nil
	b.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, id)); err == nil {
			deleted++
		}
	}
	b.reply(chatID, fmt.Sprintf("🧹 Deleted %d of my messages in this chat.", deleted))
}

func (b *Bot) cmdStatus(chatID int64) {
	taskCount := 0
	if tasks, err := b.store.Tasks(); err == nil {
		taskCount = len(tasks)
	}

	polling := "🟢 polling"
	if b.backoff.Paused(time.Now()) {
		polling = "⏳ paused (backoff)"
	}
	listings, sales := b.seen.Sizes()

	b.replyMarkdown(chatID, fmt.Sprintf(`📊 *metracker status*

*Uptime:* %s
*Tasks:* %d
*State:* %s
*Tick interval:* %s
*Seen cache:* %d listings, %d sales`,
		time.Since(b.startedAt).Round(time.Second),
		taskCount,
		polling,
		b.backoff.Interval(),
		listings, sales,
	))
}

// Sender implementation (engine.Sender)

// SendAlert renders an alert into the configured channel: a photo with
// a Markdown caption when an image is known, a plain Markdown message
// otherwise.
func (b *Bot) SendAlert(a engine.Alert) error {
	text := fmt.Sprintf("*%s*\n%s", a.Title, strings.Join(a.Lines, "\n"))

	chatID := b.config().ChatID
	if a.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(a.ImageURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeMarkdown
		if sent, err := b.api.Send(photo); err == nil {
			b.record(sent.MessageID)
			return nil
		}
		// A bad image URL should not cost us the alert; fall through
		// to the text form.
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(msg)
	if err != nil {
		return err
	}
	b.record(sent.MessageID)
	return nil
}

// SendStatus posts a plain status line to the configured channel.
func (b *Bot) SendStatus(text string) error {
	sent, err := b.api.Send(tgbotapi.NewMessage(b.config().ChatID, text))
	if err != nil {
		return err
	}
	b.record(sent.MessageID)
	return nil
}

// Helpers

func (b *Bot) record(messageID int) {
	b.mu.Lock()
	b.sent = append(b.sent, messageID)
	b.mu.Unlock()
}

func (b *Bot) reply(chatID int64, text string) {
	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		log.Error().Err(err).Msg("Reply failed")
		return
	}
	b.record(sent.MessageID)
}

func (b *Bot) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Error().Err(err).Msg("Reply failed")
		return
	}
	b.record(sent.MessageID)
}

func kindWord(kind magiceden.Kind) string {
	if kind == magiceden.KindSale {
		return "sales"
	}
	return "listings"
}

func writeFilterList(sb *strings.Builder, filters map[string]tracks.Filter) {
	for _, symbol := range sortedFilterKeys(filters) {
		f := filters[symbol]
		price := "no ceiling"
		if f.MaxPrice > 0 {
			price = fmt.Sprintf("max price %g SOL", f.MaxPrice)
		}
		if f.MinRarity != nil {
			fmt.Fprintf(sb, "- %s: %s, min rarity %s\n", symbol, price, *f.MinRarity)
		} else {
			fmt.Fprintf(sb, "- %s: %s\n", symbol, price)
		}
	}
}

func sortedFilterKeys(m map[string]tracks.Filter) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
