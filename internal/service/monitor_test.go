package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"rainrelay/internal/classifier"
	"rainrelay/internal/dedup"
	"rainrelay/internal/errors"
	"rainrelay/internal/models"
	"rainrelay/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const rainMarkup = `<div class="chat-message"><span>bob tipped </span><span class="font-weight-bold">150,50</span><span> into the rain</span></div>`

var noAttachment = (*models.Attachment)(nil)

func testMonitorConfig() models.MonitorConfig {
	return models.MonitorConfig{
		CodeWord:       "Burmalda69",
		MinAmount:      100,
		PollIntervalMs: 10,
		PollTimeoutSec: 1,
		AlertChannelID: "A",
		CodeWordRoleID: "11",
		RainRoleID:     "22",
	}
}

func newTestMonitor(t *testing.T, provider FeedProvider, sink OutboundSink) (*Monitor, *dedup.Deduper) {
	t.Helper()
	config := testMonitorConfig()
	templates, err := NewAlertTemplates(config, models.RelayConfig{})
	require.NoError(t, err)

	deduper := dedup.New(store.NewMemoryStore())
	c := classifier.New(classifier.Config{CodeWord: config.CodeWord, MinAmount: config.MinAmount}, classifier.NewFeedCursor(), quietLogger())
	dispatcher := NewAlertDispatcher(config, sink, deduper, templates, quietLogger())
	return NewMonitor(provider, c, dispatcher, config, quietLogger()), deduper
}

func feedSnapshot(id, text, markup string) *models.FeedSnapshot {
	return &models.FeedSnapshot{Latest: &models.RawMessage{ID: id, Text: text, Markup: markup}}
}

func TestMonitor_PollOnce_RainAlertFiresOnce(t *testing.T) {
	provider := &mockProvider{}
	sink := &mockSink{}
	monitor, deduper := newTestMonitor(t, provider, sink)
	ctx := context.Background()

	provider.On("Snapshot", mock.Anything).Return(feedSnapshot("m1", "bob tipped 150,50 into the rain", rainMarkup), nil)
	sink.On("Send", mock.Anything, "A", "<@&22> Next 150.5!", noAttachment).Return("alert-1", nil).Once()

	result, err := monitor.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ClassificationRain, result.Kind)
	assert.Equal(t, 150.5, result.Amount)

	// Same message on the next poll.
	result, err = monitor.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ClassificationNone, result.Kind)

	sink.AssertExpectations(t)
	fire, err := deduper.ShouldFire(ctx, models.FeedEventKey("m1", models.AlertRain))
	require.NoError(t, err)
	assert.False(t, fire)
}

func TestMonitor_PollOnce_CodeWord(t *testing.T) {
	provider := &mockProvider{}
	sink := &mockSink{}
	monitor, _ := newTestMonitor(t, provider, sink)

	provider.On("Snapshot", mock.Anything).Return(feedSnapshot("m2", "BURMALDA69 now", ""), nil).Once()
	sink.On("Send", mock.Anything, "A", "<@&11> code word found: Burmalda69", noAttachment).Return("alert-2", nil).Once()

	result, err := monitor.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ClassificationCodeWord, result.Kind)
	sink.AssertExpectations(t)
}

func TestMonitor_PollOnce_BannerSuppressesEverything(t *testing.T) {
	provider := &mockProvider{}
	sink := &mockSink{}
	monitor, _ := newTestMonitor(t, provider, sink)

	snap := feedSnapshot("m3", "Burmalda69 bob tipped", rainMarkup)
	snap.BannerPresent = true
	provider.On("Snapshot", mock.Anything).Return(snap, nil).Once()

	result, err := monitor.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ClassificationSkipped, result.Kind)
	assert.Equal(t, models.SkipReasonRakebackBanner, result.Reason)
	sink.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMonitor_PollOnce_FeedUnavailable(t *testing.T) {
	provider := &mockProvider{}
	sink := &mockSink{}
	monitor, _ := newTestMonitor(t, provider, sink)

	provider.On("Snapshot", mock.Anything).Return(nil, assert.AnError).Once()

	result, err := monitor.PollOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFeedUnavailable, errors.GetCode(err))
	assert.Equal(t, models.ClassificationNone, result.Kind)

	_, seen := monitor.classifier.Cursor().Last()
	assert.False(t, seen, "a failed poll must not move the cursor")
	assert.Equal(t, int64(1), monitor.Status().Polls)
	assert.NotEmpty(t, monitor.Status().LastError)
}

func TestAlertDispatcher_FailedSendCanBeRetried(t *testing.T) {
	sink := &mockSink{}
	config := testMonitorConfig()
	templates, err := NewAlertTemplates(config, models.RelayConfig{})
	require.NoError(t, err)
	dispatcher := NewAlertDispatcher(config, sink, dedup.New(store.NewMemoryStore()), templates, quietLogger()).
		WithSendTimeout(time.Second)
	ctx := context.Background()
	hit := models.CodeWordHit("m4", "burmalda69")

	sink.On("Send", mock.Anything, "A", mock.Anything, noAttachment).Return("", assert.AnError).Once()
	sink.On("Send", mock.Anything, "A", mock.Anything, noAttachment).Return("alert-4", nil).Once()

	assert.Equal(t, dedup.OutcomeFailed, dispatcher.OnClassification(ctx, hit))
	assert.Equal(t, dedup.OutcomeSent, dispatcher.OnClassification(ctx, hit))
	assert.Equal(t, dedup.OutcomeDuplicate, dispatcher.OnClassification(ctx, hit))
	assert.Equal(t, dedup.Outcome(""), dispatcher.OnClassification(ctx, models.NoMatch("m5")))
	sink.AssertNumberOfCalls(t, "Send", 2)
}

func TestAlertDispatcher_CodeWordAndRainUseSeparateKeys(t *testing.T) {
	sink := &mockSink{}
	config := testMonitorConfig()
	templates, err := NewAlertTemplates(config, models.RelayConfig{})
	require.NoError(t, err)
	dispatcher := NewAlertDispatcher(config, sink, dedup.New(store.NewMemoryStore()), templates, quietLogger())
	ctx := context.Background()

	sink.On("Send", mock.Anything, "A", mock.Anything, noAttachment).Return("x", nil).Twice()

	assert.Equal(t, dedup.OutcomeSent, dispatcher.OnClassification(ctx, models.CodeWordHit("m6", "burmalda69")))
	assert.Equal(t, dedup.OutcomeSent, dispatcher.OnClassification(ctx, models.RainEvent("m6", "", 200)))
	sink.AssertExpectations(t)
}

func TestMonitor_StartStop(t *testing.T) {
	provider := &mockProvider{}
	sink := &mockSink{}
	monitor, _ := newTestMonitor(t, provider, sink)

	var polls int32
	provider.On("Snapshot", mock.Anything).Run(func(mock.Arguments) {
		atomic.AddInt32(&polls, 1)
	}).Return(&models.FeedSnapshot{}, nil)

	require.NoError(t, monitor.Start(context.Background()))
	assert.True(t, monitor.IsRunning())
	assert.Error(t, monitor.Start(context.Background()), "second start must fail")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&polls) >= 3 }, 2*time.Second, 5*time.Millisecond)

	monitor.Stop()
	assert.False(t, monitor.IsRunning())
	stopped := atomic.LoadInt32(&polls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&polls), "no polls after Stop")

	monitor.Stop()
}
