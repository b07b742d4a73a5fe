package classifier

import (
	"strings"

	"rainrelay/internal/models"

	"github.com/sirupsen/logrus"
)

// Config is the fixed classification configuration.
type Config struct {
	CodeWord  string
	MinAmount float64
}

// Classifier turns feed snapshots into classification results. Its only state is the
// feed cursor, which advances exactly once per distinct message id.
type Classifier struct {
	config Config
	cursor *FeedCursor
	logger *logrus.Logger
}

func New(config Config, cursor *FeedCursor, logger *logrus.Logger) *Classifier {
	if cursor == nil {
		cursor = NewFeedCursor()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Classifier{config: config, cursor: cursor, logger: logger}
}

// Cursor exposes the feed cursor so callers can report the last seen id.
func (c *Classifier) Cursor() *FeedCursor {
	return c.cursor
}

// Classify applies, in order: the rakeback banner gate, the cursor check, the code
// word match and the rain check.
func (c *Classifier) Classify(snapshot *models.FeedSnapshot) models.ClassificationResult {
	if snapshot == nil {
		return models.NoMatch("")
	}
	if snapshot.BannerPresent {
		return models.Skipped(models.SkipReasonRakebackBanner)
	}

	raw := snapshot.Latest
	if raw == nil {
		return models.NoMatch("")
	}
	if !c.cursor.Advance(raw.ID) {
		return models.NoMatch(raw.ID)
	}

	return c.classifyBody(raw)
}

func (c *Classifier) classifyBody(raw *models.RawMessage) models.ClassificationResult {
	text := strings.TrimSpace(raw.Text)

	if c.config.CodeWord != "" && strings.Contains(strings.ToLower(text), strings.ToLower(c.config.CodeWord)) {
		return models.CodeWordHit(raw.ID, text)
	}

	if !IsRainAnnouncement(raw.Markup) {
		return models.NoMatch(raw.ID)
	}

	amount, err := ExtractRainAmount(raw.Markup)
	if err != nil {
		c.logger.WithError(err).WithField("message_id", raw.ID).Warn("Skipping rain with unreadable amount")
		return models.NoMatch(raw.ID)
	}
	if amount < c.config.MinAmount {
		c.logger.WithFields(logrus.Fields{
			"message_id": raw.ID,
			"amount":     amount,
			"min_amount": c.config.MinAmount,
		}).Debug("Rain below minimum amount")
		return models.NoMatch(raw.ID)
	}

	return models.RainEvent(raw.ID, text, amount)
}
