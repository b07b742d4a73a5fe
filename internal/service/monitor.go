package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rainrelay/internal/classifier"
	"rainrelay/internal/constants"
	"rainrelay/internal/errors"
	"rainrelay/internal/metrics"
	"rainrelay/internal/models"
	"rainrelay/internal/tracing"

	"github.com/sirupsen/logrus"
)

// MonitorStatus is reported on the status endpoint.
type MonitorStatus struct {
	Running       bool      `json:"running"`
	Polls         int64     `json:"polls"`
	LastPollAt    time.Time `json:"lastPollAt,omitempty"`
	LastMessageID string    `json:"lastMessageId,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
}

// Monitor polls the feed on a fixed interval, classifies the newest message and
// hands alertable results to the dispatcher. Polls never overlap.
type Monitor struct {
	provider   FeedProvider
	classifier *classifier.Classifier
	dispatcher *AlertDispatcher
	interval   time.Duration
	timeout    time.Duration
	logger     *logrus.Logger

	pollMu sync.Mutex

	mu       sync.RWMutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	polls    int64
	lastPoll time.Time
	lastErr  error
}

func NewMonitor(provider FeedProvider, c *classifier.Classifier, dispatcher *AlertDispatcher, config models.MonitorConfig, logger *logrus.Logger) *Monitor {
	interval := time.Duration(config.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Duration(constants.DefaultPollIntervalMs) * time.Millisecond
	}
	timeout := time.Duration(config.PollTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(constants.DefaultPollTimeoutSec) * time.Second
	}
	return &Monitor{
		provider:   provider,
		classifier: c,
		dispatcher: dispatcher,
		interval:   interval,
		timeout:    timeout,
		logger:     logger,
	}
}

// Start begins the background polling process
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("monitor is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.pollLoop(loopCtx)

	m.logger.WithField("interval", m.interval.String()).Info("Feed monitor started")
	return nil
}

// Stop cancels the loop and waits for the current poll to return.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.logger.Info("Stopping feed monitor...")
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.logger.Info("Feed monitor stopped")
}

// IsRunning returns whether the monitor is currently active
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) Status() MonitorStatus {
	m.mu.RLock()
	status := MonitorStatus{Running: m.running, Polls: m.polls, LastPollAt: m.lastPoll}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	if id, ok := m.classifier.Cursor().Last(); ok {
		status.LastMessageID = id
	}
	return status
}

func (m *Monitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		// Errors are already logged and counted by PollOnce.
		_, _ = m.PollOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce runs one serialized poll cycle: snapshot, classify, dispatch. A failed
// snapshot changes no state and is returned as a FeedUnavailable error.
func (m *Monitor) PollOnce(ctx context.Context) (models.ClassificationResult, error) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	ctx, span := tracing.StartPollSpan(ctx)
	defer span.End()

	start := time.Now()
	snapshot, err := m.snapshot(ctx)
	metrics.RecordTimer(metrics.FeedPollDuration, time.Since(start), nil, "Feed snapshot duration")
	metrics.IncrementCounter(metrics.FeedPolls, nil, "Feed polls")
	m.recordPoll(err)

	if err != nil {
		if ctx.Err() != nil {
			return models.NoMatch(""), err
		}
		metrics.IncrementCounter(metrics.FeedPollFailures, nil, "Feed polls that failed")
		tracing.RecordError(ctx, err)
		m.logger.WithFields(errorFields(err, nil)).WithError(err).Warn("Skipping poll: feed unavailable")
		return models.NoMatch(""), err
	}

	result := m.classifier.Classify(snapshot)
	metrics.IncrementCounter(metrics.Classifications, map[string]string{"kind": string(result.Kind)}, "Feed classification results")
	tracing.AddSpanAttributes(ctx,
		tracing.AttrFeedMessageID.String(result.MessageID),
		tracing.AttrClassification.String(string(result.Kind)))

	if !result.Alertable() {
		m.logger.WithFields(logrus.Fields{
			LogFieldMessageID:      SanitizeMessageID(result.MessageID),
			LogFieldClassification: result.String(),
		}).Debug("Poll completed")
		return result, nil
	}

	m.dispatcher.OnClassification(ctx, result)
	return result, nil
}

func (m *Monitor) snapshot(ctx context.Context) (*models.FeedSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	snapshot, err := m.provider.Snapshot(ctx)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeFeedUnavailable) {
			return nil, err
		}
		return nil, errors.NewFeedUnavailableError(err)
	}
	return snapshot, nil
}

func (m *Monitor) recordPoll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	m.lastPoll = time.Now()
	m.lastErr = err
}
