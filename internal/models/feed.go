package models

import "fmt"

// RawMessage is the most recent message observed in the external chat feed.
type RawMessage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Markup string `json:"markup,omitempty"`
	// DerivedID is set when the feed had no element id and ID was computed from the text.
	DerivedID bool `json:"derivedId,omitempty"`
}

// FeedSnapshot is one sample of the rendered feed.
type FeedSnapshot struct {
	BannerPresent bool        `json:"bannerPresent"`
	Latest        *RawMessage `json:"latest,omitempty"`
}

type ClassificationKind string

const (
	ClassificationNone     ClassificationKind = "none"
	ClassificationCodeWord ClassificationKind = "code_word"
	ClassificationRain     ClassificationKind = "rain"
	ClassificationSkipped  ClassificationKind = "skipped"
)

const SkipReasonRakebackBanner = "rakeback-banner"

// ClassificationResult is the outcome of classifying one feed snapshot.
// Amount is only meaningful for rain events, Reason only for skipped snapshots.
type ClassificationResult struct {
	Kind      ClassificationKind
	MessageID string
	Text      string
	Amount    float64
	Reason    string
}

func NoMatch(messageID string) ClassificationResult {
	return ClassificationResult{Kind: ClassificationNone, MessageID: messageID}
}

func Skipped(reason string) ClassificationResult {
	return ClassificationResult{Kind: ClassificationSkipped, Reason: reason}
}

func CodeWordHit(messageID, text string) ClassificationResult {
	return ClassificationResult{Kind: ClassificationCodeWord, MessageID: messageID, Text: text}
}

func RainEvent(messageID, text string, amount float64) ClassificationResult {
	return ClassificationResult{Kind: ClassificationRain, MessageID: messageID, Text: text, Amount: amount}
}

// Alertable reports whether the result should reach the alert dispatcher.
func (r ClassificationResult) Alertable() bool {
	return r.Kind == ClassificationCodeWord || r.Kind == ClassificationRain
}

func (r ClassificationResult) String() string {
	switch r.Kind {
	case ClassificationRain:
		return fmt.Sprintf("rain(%s, %.2f)", r.MessageID, r.Amount)
	case ClassificationCodeWord:
		return fmt.Sprintf("code_word(%s)", r.MessageID)
	case ClassificationSkipped:
		return fmt.Sprintf("skipped(%s)", r.Reason)
	default:
		return "none"
	}
}
