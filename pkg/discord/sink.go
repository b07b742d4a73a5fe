// Package discord delivers alerts and relayed messages through the Discord REST API.
package discord

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"rainrelay/internal/errors"
	"rainrelay/internal/models"
	"rainrelay/internal/retry"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Sink sends, edits and fetches channel messages as a bot user. It never opens a
// gateway connection.
type Sink struct {
	session *discordgo.Session
	backoff retry.BackoffConfig
	logger  *logrus.Logger
}

func NewSink(token string, retryConfig models.RetryConfig, logger *logrus.Logger) (*Sink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.NewConfigError("discord.token", "discord token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return newSink(session, retry.FromConfig(retryConfig), logger), nil
}

func newSink(session *discordgo.Session, backoff retry.BackoffConfig, logger *logrus.Logger) *Sink {
	// Retries of server errors are ours; rate limits stay with discordgo.
	session.MaxRestRetries = 0
	return &Sink{session: session, backoff: backoff, logger: logger}
}

// allowedMentions lets role pings through and suppresses everything else relayed text
// might contain.
func allowedMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeRoles},
	}
}

// Send posts content, with an optional staged attachment, and returns the new message id.
func (s *Sink) Send(ctx context.Context, channelID, content string, attachment *models.Attachment) (string, error) {
	var messageID string
	err := s.do(ctx, "send", channelID, func() error {
		data := &discordgo.MessageSend{Content: content, AllowedMentions: allowedMentions()}
		if attachment != nil {
			// Reopened per attempt since a failed upload consumes the reader.
			f, err := os.Open(attachment.Path)
			if err != nil {
				return errors.NewMediaError("open", err)
			}
			defer f.Close()
			data.Files = []*discordgo.File{{Name: attachment.Name, ContentType: attachment.ContentType, Reader: f}}
		}

		msg, err := s.session.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		messageID = msg.ID
		return nil
	})
	return messageID, err
}

// Edit replaces the content of an existing message.
func (s *Sink) Edit(ctx context.Context, channelID, messageID, content string) error {
	return s.do(ctx, "edit", channelID, func() error {
		edit := discordgo.NewMessageEdit(channelID, messageID).SetContent(content)
		edit.AllowedMentions = allowedMentions()
		_, err := s.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
		return err
	})
}

// Fetch reads a message as it currently exists on Discord.
func (s *Sink) Fetch(ctx context.Context, channelID, messageID string) (*models.DestinationMessage, error) {
	var out *models.DestinationMessage
	err := s.do(ctx, "fetch", channelID, func() error {
		msg, err := s.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		out = &models.DestinationMessage{
			Ref:     models.DestinationRef{ChannelID: msg.ChannelID, MessageID: msg.ID},
			Content: msg.Content,
		}
		return nil
	})
	return out, err
}

// Close releases idle HTTP connections.
func (s *Sink) Close() error {
	if s.session.Client != nil {
		s.session.Client.CloseIdleConnections()
	}
	return nil
}

func (s *Sink) do(ctx context.Context, operation, channelID string, call func() error) error {
	backoff := retry.NewBackoff(s.backoff).OnRetry(func(attempt int, delay time.Duration, err error) {
		s.logger.WithFields(logrus.Fields{
			"operation":  operation,
			"channel_id": channelID,
			"attempt":    attempt,
			"delay_ms":   delay.Milliseconds(),
		}).WithError(err).Warn("Discord request rejected, retrying")
	})

	return backoff.RetryWithPredicate(ctx, func() error {
		err := call()
		if err == nil {
			return nil
		}
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return err
		}
		return errors.NewSendError(operation, channelID, statusCode(err), err)
	}, errors.IsRetryable)
}

// statusCode is zero unless Discord answered; transport failures must not be retried.
func statusCode(err error) int {
	var restErr *discordgo.RESTError
	if stderrors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}
