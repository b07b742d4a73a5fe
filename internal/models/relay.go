package models

import (
	"strconv"
	"time"
)

// SourceMessageRef identifies an inbound message on the relay source platform.
type SourceMessageRef struct {
	ChatID    int64 `json:"chatId"`
	MessageID int   `json:"messageId"`
}

func (r SourceMessageRef) String() string {
	return strconv.FormatInt(r.ChatID, 10) + "/" + strconv.Itoa(r.MessageID)
}

// DestinationRef identifies the message created on the outbound platform.
type DestinationRef struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

// RelayMapping associates a source message with the destination message it produced.
type RelayMapping struct {
	Source      SourceMessageRef `json:"source"`
	Destination DestinationRef   `json:"destination"`
	RelayedAt   time.Time        `json:"relayedAt"`
}

// Media describes an attachment on an inbound message. It is resolved to a
// download URL by the event source that produced it.
type Media struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Attachment is a staged local file ready to be uploaded to the destination.
type Attachment struct {
	Name        string
	ContentType string
	Path        string
}

type InboundEventType string

const (
	InboundNewMessage    InboundEventType = "new_message"
	InboundEditedMessage InboundEventType = "edited_message"
)

// InboundEvent is a push event from the relay source platform.
type InboundEvent struct {
	Type     InboundEventType
	Ref      SourceMessageRef
	ChatName string
	Content  string
	Media    *Media
}

// DestinationMessage is a message as currently stored on the outbound platform.
type DestinationMessage struct {
	Ref     DestinationRef
	Content string
}
