// Package feed samples the monitored chat feed in a headless browser.
package feed

import (
	"context"
	"strings"

	"rainrelay/internal/classifier"
	"rainrelay/internal/models"
)

// Provider returns one snapshot of the feed per call. A nil Latest means the feed
// rendered no messages.
type Provider interface {
	Snapshot(ctx context.Context) (*models.FeedSnapshot, error)
	Close() error
}

// pageState is what the in-page script reports back.
type pageState struct {
	Banner bool   `json:"banner"`
	Found  bool   `json:"found"`
	ID     string `json:"id"`
	Text   string `json:"text"`
	Markup string `json:"markup"`
}

// snapshotScript reads the rakeback banner and the last chat message in one evaluation
// so both describe the same render.
const snapshotScript = `(() => {
	const banner = document.querySelector('div.chat-rain') !== null;
	const container = document.querySelector('.chat-messages');
	if (!container) { return { banner: banner, found: false }; }
	const messages = container.querySelectorAll('p.message-content');
	if (messages.length === 0) { return { banner: banner, found: false }; }
	const last = messages[messages.length - 1];
	return {
		banner: banner,
		found: true,
		id: last.id || '',
		text: last.innerText || last.textContent || '',
		markup: last.parentElement ? last.parentElement.innerHTML : '',
	};
})()`

func (s pageState) toSnapshot() *models.FeedSnapshot {
	snap := &models.FeedSnapshot{BannerPresent: s.Banner}
	if !s.Found {
		return snap
	}

	text := strings.TrimSpace(s.Text)
	raw := &models.RawMessage{ID: s.ID, Text: text, Markup: s.Markup}
	if raw.ID == "" {
		raw.ID = classifier.DeriveMessageID(text)
		raw.DerivedID = true
	}
	snap.Latest = raw
	return snap
}
