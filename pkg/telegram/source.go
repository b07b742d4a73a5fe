// Package telegram turns Telegram Bot API updates into relay inbound events.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"rainrelay/internal/errors"
	"rainrelay/internal/models"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
)

const longPollTimeoutSec = 30

var allowedUpdates = []string{"channel_post", "edited_channel_post", "message", "edited_message"}

// Source long-polls the Bot API. The bot must be a member (admin for channels) of every
// relayed chat.
type Source struct {
	bot    *telego.Bot
	logger *logrus.Logger
}

// NewSource creates a bot client. apiServer overrides the Bot API base URL when set.
func NewSource(token, apiServer string, logger *logrus.Logger) (*Source, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.NewConfigError("telegram.botToken", "telegram bot token is required")
	}

	opts := []telego.BotOption{telego.WithLogger(logger)}
	if apiServer != "" {
		opts = append(opts, telego.WithAPIServer(apiServer))
	}
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}
	return &Source{bot: bot, logger: logger}, nil
}

// Events starts long polling and returns the converted event stream. The channel is
// closed once ctx is done.
func (s *Source) Events(ctx context.Context) (<-chan models.InboundEvent, error) {
	updates, err := s.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        longPollTimeoutSec,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return nil, fmt.Errorf("start long polling: %w", err)
	}

	events := make(chan models.InboundEvent)
	go func() {
		defer close(events)
		for update := range updates {
			event, ok := EventFromUpdate(update)
			if !ok {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("Telegram long polling started")
	return events, nil
}

// ResolveFileURL returns a temporary download URL for a file id.
func (s *Source) ResolveFileURL(ctx context.Context, fileID string) (string, error) {
	file, err := s.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get telegram file %s: %w", fileID, err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("telegram file %s has no download path", fileID)
	}
	return s.bot.FileDownloadURL(file.FilePath), nil
}

// EventFromUpdate converts posts and edits; every other update kind is ignored.
func EventFromUpdate(update telego.Update) (models.InboundEvent, bool) {
	switch {
	case update.ChannelPost != nil:
		return eventFromMessage(models.InboundNewMessage, update.ChannelPost), true
	case update.EditedChannelPost != nil:
		return eventFromMessage(models.InboundEditedMessage, update.EditedChannelPost), true
	case update.Message != nil:
		return eventFromMessage(models.InboundNewMessage, update.Message), true
	case update.EditedMessage != nil:
		return eventFromMessage(models.InboundEditedMessage, update.EditedMessage), true
	}
	return models.InboundEvent{}, false
}

func eventFromMessage(kind models.InboundEventType, msg *telego.Message) models.InboundEvent {
	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	return models.InboundEvent{
		Type:     kind,
		Ref:      models.SourceMessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
		ChatName: msg.Chat.Username,
		Content:  content,
		Media:    mediaFromMessage(msg),
	}
}

func mediaFromMessage(msg *telego.Message) *models.Media {
	switch {
	case len(msg.Photo) > 0:
		// Sizes are ordered smallest first.
		largest := msg.Photo[len(msg.Photo)-1]
		return &models.Media{FileID: largest.FileID, FileName: "photo.jpg", MimeType: "image/jpeg", Size: int64(largest.FileSize)}
	case msg.Animation != nil:
		a := msg.Animation
		return &models.Media{FileID: a.FileID, FileName: a.FileName, MimeType: a.MimeType, Size: int64(a.FileSize)}
	case msg.Video != nil:
		v := msg.Video
		return &models.Media{FileID: v.FileID, FileName: v.FileName, MimeType: v.MimeType, Size: int64(v.FileSize)}
	case msg.Document != nil:
		d := msg.Document
		return &models.Media{FileID: d.FileID, FileName: d.FileName, MimeType: d.MimeType, Size: int64(d.FileSize)}
	case msg.Audio != nil:
		a := msg.Audio
		return &models.Media{FileID: a.FileID, FileName: a.FileName, MimeType: a.MimeType, Size: int64(a.FileSize)}
	case msg.Voice != nil:
		v := msg.Voice
		return &models.Media{FileID: v.FileID, FileName: "voice.ogg", MimeType: v.MimeType, Size: int64(v.FileSize)}
	}
	return nil
}
