package service

import (
	"context"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/dedup"
	"rainrelay/internal/metrics"
	"rainrelay/internal/models"
	"rainrelay/internal/tracing"

	"github.com/sirupsen/logrus"
)

// dispatchBudgetFactor leaves room for the store round trips around one send.
const dispatchBudgetFactor = 2

// AlertDispatcher turns classification results into at-most-once alerts in the
// configured alert channel.
type AlertDispatcher struct {
	sink        OutboundSink
	deduper     *dedup.Deduper
	templates   *AlertTemplates
	config      models.MonitorConfig
	sendTimeout time.Duration
	logger      *logrus.Logger
}

func NewAlertDispatcher(config models.MonitorConfig, sink OutboundSink, deduper *dedup.Deduper, templates *AlertTemplates, logger *logrus.Logger) *AlertDispatcher {
	return &AlertDispatcher{
		sink:        sink,
		deduper:     deduper,
		templates:   templates,
		config:      config,
		sendTimeout: time.Duration(constants.DefaultRelaySendTimeoutSec) * time.Second,
		logger:      logger,
	}
}

// OnClassification dispatches an alert for code word hits and rain events. For any
// other result it does nothing and returns an empty outcome.
func (d *AlertDispatcher) OnClassification(ctx context.Context, result models.ClassificationResult) dedup.Outcome {
	var (
		alert   models.AlertType
		content string
		err     error
	)
	switch result.Kind {
	case models.ClassificationCodeWord:
		alert = models.AlertCodeWord
		content, err = d.templates.CodeWord(AlertData{
			RoleID:    d.config.CodeWordRoleID,
			CodeWord:  d.config.CodeWord,
			Text:      result.Text,
			MessageID: result.MessageID,
		})
	case models.ClassificationRain:
		alert = models.AlertRain
		content, err = d.templates.Rain(AlertData{
			RoleID:    d.config.RainRoleID,
			Amount:    result.Amount,
			Text:      result.Text,
			MessageID: result.MessageID,
		})
	default:
		return ""
	}

	key := models.FeedEventKey(result.MessageID, alert)
	entry := d.logger.WithFields(logrus.Fields{
		LogFieldEventKey:       key.String(),
		LogFieldClassification: string(result.Kind),
		LogFieldChannelID:      d.config.AlertChannelID,
	})
	labels := map[string]string{"type": string(alert)}

	if err != nil {
		entry.WithError(err).Error("Failed to render alert")
		metrics.IncrementCounter(metrics.AlertsFailed, labels, "Alerts that could not be sent")
		return dedup.OutcomeFailed
	}

	// A dispatch that has started finishes on shutdown, including recording the key.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout*dispatchBudgetFactor)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "alert.dispatch", tracing.AttrFeedMessageID.String(result.MessageID),
		tracing.AttrClassification.String(string(result.Kind)))
	defer span.End()

	outcome, err := d.deduper.Dispatch(ctx, key, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
		_, err := d.sink.Send(sendCtx, d.config.AlertChannelID, content, nil)
		return err
	})

	switch outcome {
	case dedup.OutcomeSent:
		metrics.IncrementCounter(metrics.AlertsSent, labels, "Alerts sent")
		if err != nil {
			entry.WithFields(errorFields(err, nil)).WithError(err).Error("Alert sent but not recorded")
		} else if result.Kind == models.ClassificationRain {
			entry.WithField(LogFieldAmount, result.Amount).Info("Rain alert sent")
		} else {
			entry.Info("Code word alert sent")
		}
	case dedup.OutcomeDuplicate:
		metrics.IncrementCounter(metrics.AlertsDuplicate, labels, "Alerts suppressed as already sent")
		entry.Debug("Skipping alert: already sent")
	case dedup.OutcomeFailed:
		metrics.IncrementCounter(metrics.AlertsFailed, labels, "Alerts that could not be sent")
		tracing.RecordError(ctx, err)
		entry.WithFields(errorFields(err, nil)).WithError(err).Error("Failed to send alert")
	}
	return outcome
}

// WithSendTimeout overrides the per-alert send timeout.
func (d *AlertDispatcher) WithSendTimeout(timeout time.Duration) *AlertDispatcher {
	if timeout > 0 {
		d.sendTimeout = timeout
	}
	return d
}
