// Package announce delivers catalog announcements to a Telegram channel.
package announce

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jonesrussell/dealwatch/internal/domain"
	"github.com/jonesrussell/dealwatch/internal/logger"
)

// Telegram sends announcements as a single media group: the cover photo
// carries the caption, screenshots follow as plain photos.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger logger.Logger
}

// NewTelegram authorizes the bot and returns an announcer for one chat.
func NewTelegram(token string, chatID int64, log logger.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}

	log.Info("telegram bot authorized", logger.String("username", bot.Self.UserName))

	return &Telegram{bot: bot, chatID: chatID, logger: log}, nil
}

// Announce sends one announcement atomically. The bot API client has no
// context plumbing, so cancellation is only checked up front.
func (t *Telegram) Announce(ctx context.Context, a domain.Announcement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	group := tgbotapi.NewMediaGroup(t.chatID, BuildMediaGroup(a))
	if _, err := t.bot.SendMediaGroup(group); err != nil {
		return fmt.Errorf("send media group: %w", err)
	}

	t.logger.Debug("announcement delivered",
		logger.Int64("app_id", a.AppID),
		logger.Int("attachments", 1+len(a.Screenshots)))
	return nil
}

// BuildMediaGroup assembles the media slice for one announcement.
func BuildMediaGroup(a domain.Announcement) []any {
	cover := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(a.CoverURL))
	cover.Caption = a.Caption
	cover.ParseMode = tgbotapi.ModeHTML

	media := make([]any, 0, 1+len(a.Screenshots))
	media = append(media, cover)
	for _, url := range a.Screenshots {
		media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(url)))
	}
	return media
}
