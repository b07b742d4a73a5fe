package service

import (
	"fmt"
	"strconv"
	"strings"

	"rainrelay/internal/models"
)

// ChannelManager maps relay source chats to destination channels. The mapping is
// built once at startup and never changes, so reads need no locking.
type ChannelManager struct {
	destinations map[string]string // normalized source -> destination channel id
	orderedNames []string          // sources in config order
}

// NewChannelManager creates a new channel manager from configuration
func NewChannelManager(channels []models.Channel) (*ChannelManager, error) {
	cm := &ChannelManager{
		destinations: make(map[string]string, len(channels)),
		orderedNames: make([]string, 0, len(channels)),
	}

	for _, channel := range channels {
		source := normalizeSource(channel.Source)
		if source == "" {
			return nil, fmt.Errorf("empty source in channel configuration")
		}
		if channel.DestinationChannelID == "" {
			return nil, fmt.Errorf("empty destination channel for source %s", channel.Source)
		}
		if _, exists := cm.destinations[source]; exists {
			return nil, fmt.Errorf("duplicate relay source: %s", channel.Source)
		}

		cm.destinations[source] = channel.DestinationChannelID
		cm.orderedNames = append(cm.orderedNames, source)
	}

	if len(cm.destinations) == 0 {
		return nil, fmt.Errorf("no channels configured")
	}

	return cm, nil
}

// normalizeSource makes "@Name", "name" and "NAME" the same key.
func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(source), "@"))
}

// Destination resolves the destination for an inbound event, first by chat username
// and then by numeric chat id.
func (cm *ChannelManager) Destination(event models.InboundEvent) (string, bool) {
	if event.ChatName != "" {
		if dest, ok := cm.destinations[normalizeSource(event.ChatName)]; ok {
			return dest, true
		}
	}
	dest, ok := cm.destinations[strconv.FormatInt(event.Ref.ChatID, 10)]
	return dest, ok
}

// Sources returns the configured sources in config order
func (cm *ChannelManager) Sources() []string {
	out := make([]string, len(cm.orderedNames))
	copy(out, cm.orderedNames)
	return out
}

// GetChannelCount returns the number of configured channels
func (cm *ChannelManager) GetChannelCount() int {
	return len(cm.destinations)
}
