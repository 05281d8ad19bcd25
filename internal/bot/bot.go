// Package bot is the Telegram front-end: it accepts post URLs in chat,
// enforces the free-time gate, and delivers downloaded videos back to
// the user, deleting the local file once it has been sent.
package bot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"vidgrab/internal/history"
	"vidgrab/internal/media"
	"vidgrab/internal/service"
	"vidgrab/internal/store"
)

const captionLimit = 1024 // Telegram's video caption cap

// Bot wraps the Telegram API and the download pipeline.
type Bot struct {
	api   *tgbotapi.BotAPI
	users *store.Users
	svc   *service.Service
	hist  *history.Store // nil disables history recording
	grant time.Duration
}

// New authorizes against the Telegram API.
func New(token string, users *store.Users, svc *service.Service, hist *history.Store, grant time.Duration) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorizing bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("bot authorized")
	return &Bot{api: api, users: users, svc: svc, hist: hist, grant: grant}, nil
}

// Run consumes updates via long polling until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}
		b.handleMessage(ctx, update.Message)
	}
	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.IsCommand() {
		b.handleCommand(m)
		return
	}

	sourceURL := firstSupportedURL(m.Text)
	if sourceURL == "" {
		if strings.TrimSpace(m.Text) != "" {
			b.reply(m.Chat.ID, "Send me a TikTok, Instagram or Pinterest video link and I'll fetch it for you.")
		}
		return
	}

	userID := m.From.ID
	if !b.users.HasFreeAccess(userID) {
		b.reply(m.Chat.ID, "You're out of free time. Watch an ad in the app to unlock "+formatGrant(b.grant)+" of downloads.")
		return
	}

	b.reply(m.Chat.ID, "Downloading, hang on…")
	// Each request runs as its own task; the polling loop stays free.
	go b.Deliver(ctx, userID, sourceURL)
}

func (b *Bot) handleCommand(m *tgbotapi.Message) {
	switch m.Command() {
	case "start":
		name := m.From.FirstName
		if name == "" {
			name = "there"
		}
		b.reply(m.Chat.ID, fmt.Sprintf(
			"Hi %s! Send me a video link from %s and I'll send the video back here.",
			name, strings.Join(media.SupportedPlatforms(), ", ")))
	case "help":
		b.reply(m.Chat.ID,
			"1. Watch an ad in the app to unlock "+formatGrant(b.grant)+" of downloads.\n"+
				"2. Paste a TikTok, Instagram or Pinterest video link here.\n"+
				"3. I download the video and send it back.\n\n"+
				"Use /status to check your remaining free time.")
	case "status":
		remaining := b.users.FreeRemaining(m.From.ID)
		if remaining <= 0 {
			b.reply(m.Chat.ID, "No free time left. Watch an ad in the app to top up.")
			return
		}
		b.reply(m.Chat.ID, fmt.Sprintf("Free time remaining: %s.", formatGrant(remaining)))
	default:
		b.reply(m.Chat.ID, "Unknown command. Try /help.")
	}
}

// Deliver downloads sourceURL and sends the result to the user,
// removing the local file after successful delivery. Implementing the
// api.Deliverer contract, it reports failures in chat rather than
// returning them.
func (b *Bot) Deliver(ctx context.Context, userID int64, sourceURL string) {
	dl, err := b.svc.Download(ctx, sourceURL)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("download failed")
		b.reply(userID, service.UserMessage(err))
		return
	}

	video := tgbotapi.NewVideo(userID, tgbotapi.FilePath(dl.Path))
	video.Caption = buildCaption(dl)
	video.SupportsStreaming = true

	if _, err := b.api.Send(video); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("path", dl.Path).Msg("sending video failed")
		b.reply(userID, "The video was downloaded but could not be delivered. Please try again.")
		// Leave the file to the retention sweeper; it may still be
		// mid-upload on Telegram's side.
		return
	}

	// Ownership of the file is ours once delivered; remove it now
	// rather than waiting for the sweeper. Already-gone is fine.
	if err := os.Remove(dl.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", dl.Path).Msg("removing delivered file failed")
	}

	if err := b.users.RecordDownload(userID); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("recording download failed")
	}
	if b.hist != nil {
		err := b.hist.Record(ctx, &history.Entry{
			UserID:    userID,
			Platform:  dl.Platform.String(),
			SourceURL: sourceURL,
			SizeBytes: dl.SizeBytes,
			Caption:   dl.Caption,
			Author:    dl.Author,
		})
		if err != nil {
			log.Warn().Err(err).Msg("recording history failed")
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("sending message failed")
	}
}

// firstSupportedURL picks the first token in text that matches a known
// platform signature.
func firstSupportedURL(text string) string {
	for _, field := range strings.Fields(text) {
		if _, err := media.Detect(field); err == nil {
			return field
		}
	}
	return ""
}

func buildCaption(dl *media.Download) string {
	var parts []string
	if dl.Caption != "" {
		parts = append(parts, dl.Caption)
	}
	if dl.Author != "" {
		parts = append(parts, "by "+dl.Author)
	}
	if dl.Soundtrack != "" {
		parts = append(parts, "♪ "+dl.Soundtrack)
	}
	caption := strings.Join(parts, "\n")
	if runes := []rune(caption); len(runes) > captionLimit {
		caption = string(runes[:captionLimit-1]) + "…"
	}
	return caption
}

func formatGrant(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dmin", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dmin", m)
	}
}
