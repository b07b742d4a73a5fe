package service

import (
	"context"

	"rainrelay/internal/models"
)

// FeedProvider samples the monitored chat feed.
type FeedProvider interface {
	Snapshot(ctx context.Context) (*models.FeedSnapshot, error)
}

// OutboundSink is the destination messaging platform.
type OutboundSink interface {
	Send(ctx context.Context, channelID, content string, attachment *models.Attachment) (string, error)
	Edit(ctx context.Context, channelID, messageID, content string) error
	Fetch(ctx context.Context, channelID, messageID string) (*models.DestinationMessage, error)
}

// MediaStager downloads inbound media to a local file for the duration of one send.
type MediaStager interface {
	Stage(ctx context.Context, media models.Media) (*models.Attachment, error)
	Release(attachment *models.Attachment) error
}
