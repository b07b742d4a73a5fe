package classifier

import (
	"io"
	"testing"

	"rainrelay/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rainMarkup = `<div class="chat-message"><span>bob tipped </span><span class="text-gold font-weight-bold">150,50</span><span> into the rain</span></div>`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClassifier() *Classifier {
	return New(Config{CodeWord: "Burmalda69", MinAmount: 100}, NewFeedCursor(), quietLogger())
}

func snapshot(id, text, markup string) *models.FeedSnapshot {
	return &models.FeedSnapshot{Latest: &models.RawMessage{ID: id, Text: text, Markup: markup}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		snap     *models.FeedSnapshot
		wantKind models.ClassificationKind
		wantAmt  float64
	}{
		{
			name:     "code word case insensitive",
			snap:     snapshot("m1", "hey BURMALDA69 everyone", "<div>hey BURMALDA69 everyone</div>"),
			wantKind: models.ClassificationCodeWord,
		},
		{
			name:     "rain above minimum",
			snap:     snapshot("m2", "bob tipped 150,50 into the rain", rainMarkup),
			wantKind: models.ClassificationRain,
			wantAmt:  150.5,
		},
		{
			name:     "rain exactly at minimum",
			snap:     snapshot("m3", "rain", `<p>tipped <span class="font-weight-bold">100</span> into the rain</p>`),
			wantKind: models.ClassificationRain,
			wantAmt:  100,
		},
		{
			name:     "rain below minimum",
			snap:     snapshot("m4", "rain", `<p>tipped <span class="font-weight-bold">99.99</span> into the rain</p>`),
			wantKind: models.ClassificationNone,
		},
		{
			name:     "rain without amount span",
			snap:     snapshot("m5", "rain", `<p>tipped something into the rain</p>`),
			wantKind: models.ClassificationNone,
		},
		{
			name:     "rain with ambiguous amount",
			snap:     snapshot("m6", "rain", `<p>tipped <span class="font-weight-bold">1,000.50</span> into the rain</p>`),
			wantKind: models.ClassificationNone,
		},
		{
			name:     "ordinary chatter",
			snap:     snapshot("m7", "good luck all", "<div>good luck all</div>"),
			wantKind: models.ClassificationNone,
		},
		{
			name:     "missing latest message",
			snap:     &models.FeedSnapshot{},
			wantKind: models.ClassificationNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestClassifier().Classify(tt.snap)
			assert.Equal(t, tt.wantKind, result.Kind)
			if tt.wantKind == models.ClassificationRain {
				assert.InDelta(t, tt.wantAmt, result.Amount, 0.0001)
			}
		})
	}
}

func TestClassify_CodeWordWinsOverRain(t *testing.T) {
	c := newTestClassifier()
	result := c.Classify(snapshot("m1", "burmalda69 tipped 500 into the rain", rainMarkup))
	assert.Equal(t, models.ClassificationCodeWord, result.Kind)
}

func TestClassify_SameIDIsNoMatch(t *testing.T) {
	c := newTestClassifier()

	first := c.Classify(snapshot("m1", "Burmalda69", ""))
	require.Equal(t, models.ClassificationCodeWord, first.Kind)

	second := c.Classify(snapshot("m1", "Burmalda69", ""))
	assert.Equal(t, models.ClassificationNone, second.Kind)

	third := c.Classify(snapshot("m2", "Burmalda69", ""))
	assert.Equal(t, models.ClassificationCodeWord, third.Kind)
}

func TestClassify_BannerSkipsWithoutAdvancingCursor(t *testing.T) {
	c := newTestClassifier()

	snap := snapshot("m1", "Burmalda69", "")
	snap.BannerPresent = true

	result := c.Classify(snap)
	assert.Equal(t, models.ClassificationSkipped, result.Kind)
	assert.Equal(t, models.SkipReasonRakebackBanner, result.Reason)

	_, seen := c.Cursor().Last()
	assert.False(t, seen)

	snap.BannerPresent = false
	assert.Equal(t, models.ClassificationCodeWord, c.Classify(snap).Kind)
}

func TestClassify_EmptyCodeWordNeverMatches(t *testing.T) {
	c := New(Config{MinAmount: 100}, nil, quietLogger())
	assert.Equal(t, models.ClassificationNone, c.Classify(snapshot("m1", "anything", "")).Kind)
}

func TestClassify_NilSnapshot(t *testing.T) {
	assert.Equal(t, models.ClassificationNone, newTestClassifier().Classify(nil).Kind)
}
