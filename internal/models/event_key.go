package models

import "strings"

// KeySpace separates independent idempotency gates so their keys never collide.
type KeySpace string

const (
	KeySpaceFeed  KeySpace = "feed"
	KeySpaceRelay KeySpace = "relay"
)

// AlertType distinguishes alerts raised for the same underlying message.
type AlertType string

const (
	AlertCodeWord AlertType = "word"
	AlertRain     AlertType = "rain"
	AlertTag      AlertType = "tag"
)

// EventKey identifies one alertable real-world occurrence.
type EventKey struct {
	Space  KeySpace
	Source string
	Type   AlertType
}

// FeedEventKey derives the key for an alert raised from the monitored feed.
func FeedEventKey(messageID string, alert AlertType) EventKey {
	return EventKey{Space: KeySpaceFeed, Source: messageID, Type: alert}
}

// RelayTagKey derives the key for the large-number tag of one relayed message.
func RelayTagKey(ref SourceMessageRef) EventKey {
	return EventKey{Space: KeySpaceRelay, Source: ref.String(), Type: AlertTag}
}

func (k EventKey) String() string {
	var b strings.Builder
	b.WriteString(string(k.Space))
	b.WriteByte(':')
	b.WriteString(string(k.Type))
	b.WriteByte(':')
	b.WriteString(k.Source)
	return b.String()
}
