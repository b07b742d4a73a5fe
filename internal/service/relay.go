package service

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"rainrelay/internal/classifier"
	"rainrelay/internal/constants"
	"rainrelay/internal/dedup"
	"rainrelay/internal/errors"
	"rainrelay/internal/metrics"
	"rainrelay/internal/models"
	"rainrelay/internal/store"
	"rainrelay/internal/tracing"

	"github.com/sirupsen/logrus"
)

// relayCallsPerEvent bounds one event: staging, the send, a text-only resend and the tag.
const relayCallsPerEvent = 4

// RelayForwarder copies new and edited messages from mapped source chats to their
// destination channels and tags relayed text that mentions a large number.
// Failures are logged and never stop the relay.
type RelayForwarder struct {
	channels  *ChannelManager
	sink      OutboundSink
	stager    MediaStager
	store     store.Store
	deduper   *dedup.Deduper
	templates *AlertTemplates

	tagRoleID   string
	threshold   float64
	placeholder string
	sendTimeout time.Duration
	workTimeout time.Duration
	laneBuffer  int
	logger      *logrus.Logger
}

// NewRelayForwarder wires the relay. stager may be nil, in which case media is
// dropped and only the text is relayed.
func NewRelayForwarder(config models.RelayConfig, channels *ChannelManager, sink OutboundSink, stager MediaStager,
	st store.Store, deduper *dedup.Deduper, templates *AlertTemplates, logger *logrus.Logger) *RelayForwarder {
	r := &RelayForwarder{
		channels:    channels,
		sink:        sink,
		stager:      stager,
		store:       st,
		deduper:     deduper,
		templates:   templates,
		tagRoleID:   config.TagRoleID,
		threshold:   config.LargeNumberThreshold,
		placeholder: config.EmptyPlaceholder,
		sendTimeout: time.Duration(config.SendTimeoutSec) * time.Second,
		laneBuffer:  constants.DefaultRelayLaneBuffer,
		logger:      logger,
	}
	if r.threshold <= 0 {
		r.threshold = constants.DefaultLargeNumberThreshold
	}
	if r.placeholder == "" {
		r.placeholder = constants.DefaultEmptyPlaceholder
	}
	if r.sendTimeout <= 0 {
		r.sendTimeout = time.Duration(constants.DefaultRelaySendTimeoutSec) * time.Second
	}
	r.workTimeout = r.sendTimeout * relayCallsPerEvent
	return r
}

// Run consumes events until the channel closes or ctx is done. Each source chat gets
// its own lane so an edit is never handled before the message it edits. Once ctx is
// done, events already being handled finish and events still queued are dropped;
// Run returns after every lane has stopped.
func (r *RelayForwarder) Run(ctx context.Context, events <-chan models.InboundEvent) {
	lanes := make(map[int64]chan models.InboundEvent)
	var wg sync.WaitGroup
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
		r.logger.Info("Relay stopped")
	}()

	r.logger.WithField(LogFieldCount, r.channels.GetChannelCount()).Info("Relay started")

	for {
		var event models.InboundEvent
		var ok bool
		select {
		case <-ctx.Done():
			return
		case event, ok = <-events:
			if !ok {
				return
			}
		}

		if _, mapped := r.channels.Destination(event); !mapped {
			r.drop(event, "unmapped chat")
			continue
		}

		lane, exists := lanes[event.Ref.ChatID]
		if !exists {
			lane = make(chan models.InboundEvent, r.laneBuffer)
			lanes[event.Ref.ChatID] = lane
			wg.Add(1)
			go func() {
				defer wg.Done()
				for ev := range lane {
					if ctx.Err() != nil {
						r.drop(ev, "shutting down")
						continue
					}
					r.HandleEvent(ctx, ev)
				}
			}()
		}

		select {
		case lane <- event:
		case <-ctx.Done():
			return
		}
	}
}

// HandleEvent routes one inbound event to the new-message or edit path.
func (r *RelayForwarder) HandleEvent(ctx context.Context, event models.InboundEvent) {
	ctx, span := tracing.StartRelaySpan(ctx, event)
	defer span.End()

	start := time.Now()
	labels := map[string]string{"type": string(event.Type)}
	metrics.IncrementCounter(metrics.RelayEvents, labels, "Inbound relay events")

	switch event.Type {
	case models.InboundNewMessage:
		_, _ = r.HandleNewMessage(ctx, event)
	case models.InboundEditedMessage:
		_ = r.HandleEdit(ctx, event)
	default:
		r.drop(event, "unknown event type")
	}

	metrics.RecordTimer(metrics.RelayDuration, time.Since(start), labels, "Relay event handling duration")
}

// HandleNewMessage relays a new message and returns the destination message id. A
// message that was already relayed is not sent again; its existing destination id is
// returned. The returned error is informational; it has already been logged.
func (r *RelayForwarder) HandleNewMessage(ctx context.Context, event models.InboundEvent) (string, error) {
	ctx, cancel := r.workContext(ctx)
	defer cancel()
	entry := r.entry(ctx, event)

	channelID, ok := r.channels.Destination(event)
	if !ok {
		r.drop(event, "unmapped chat")
		return "", errors.NewRelayTargetMissingError("destination channel", r.chatLabel(event))
	}
	entry = entry.WithField(LogFieldChannelID, channelID)
	tracing.AddSpanAttributes(ctx, tracing.AttrDestChannel.String(channelID))

	existing, err := r.store.LookupRelay(ctx, event.Ref)
	switch {
	case err != nil:
		entry.WithFields(errorFields(err, nil)).WithError(err).Warn("Failed to check for an earlier relay, relaying anyway")
	case existing != nil:
		entry.WithField(LogFieldMessageID, existing.MessageID).Debug("Skipping message: already relayed")
		metrics.IncrementCounter(metrics.RelayDropped, map[string]string{"reason": "already relayed"}, "Inbound events dropped")
		return existing.MessageID, nil
	}

	attachment := r.stage(ctx, event, entry)
	if attachment != nil {
		defer r.release(attachment, entry)
	}

	content := event.Content
	if strings.TrimSpace(content) == "" && attachment == nil {
		content = r.placeholder
	}

	messageID, err := r.send(ctx, channelID, content, attachment)
	if err != nil && attachment != nil && fallbackToText(err) {
		entry.WithError(err).Warn("Media send rejected, relaying text only")
		if strings.TrimSpace(content) == "" {
			content = r.placeholder
		}
		messageID, err = r.send(ctx, channelID, content, nil)
	}
	if err != nil {
		r.fail(ctx, entry, err, "Failed to relay message")
		return "", err
	}
	entry = entry.WithField(LogFieldMessageID, messageID)

	mapping := models.RelayMapping{
		Source:      event.Ref,
		Destination: models.DestinationRef{ChannelID: channelID, MessageID: messageID},
		RelayedAt:   time.Now(),
	}
	if inserted, err := r.store.SaveRelay(ctx, mapping); err != nil {
		entry.WithFields(errorFields(err, nil)).WithError(err).Error("Failed to record relay mapping")
	} else if !inserted {
		entry.Debug("Relay mapping already recorded")
	}

	entry.Info("Message relayed")
	r.tagIfLarge(ctx, event, channelID, event.Content)
	return messageID, nil
}

// HandleEdit projects a source edit onto the relayed message. Edits of messages that
// were never relayed are ignored.
func (r *RelayForwarder) HandleEdit(ctx context.Context, event models.InboundEvent) error {
	ctx, cancel := r.workContext(ctx)
	defer cancel()
	entry := r.entry(ctx, event)

	dest, err := r.store.LookupRelay(ctx, event.Ref)
	if err != nil {
		entry.WithFields(errorFields(err, nil)).WithError(err).Error("Failed to look up relay mapping")
		return err
	}
	if dest == nil {
		entry.Debug("Skipping edit: message was never relayed")
		return nil
	}
	entry = entry.WithFields(logrus.Fields{LogFieldChannelID: dest.ChannelID, LogFieldMessageID: dest.MessageID})
	tracing.AddSpanAttributes(ctx, tracing.AttrDestChannel.String(dest.ChannelID))

	content := event.Content
	if strings.TrimSpace(content) == "" {
		content = r.placeholder
	}

	opCtx, cancel := r.opContext(ctx)
	current, err := r.sink.Fetch(opCtx, dest.ChannelID, dest.MessageID)
	cancel()
	if err != nil {
		r.fail(ctx, entry, err, "Failed to fetch relayed message")
		return err
	}

	if current.Content != content {
		opCtx, cancel := r.opContext(ctx)
		err = r.sink.Edit(opCtx, dest.ChannelID, dest.MessageID, content)
		cancel()
		if err != nil {
			r.fail(ctx, entry, err, "Failed to edit relayed message")
			return err
		}
		entry.Info("Edit relayed")
	} else {
		entry.Debug("Skipping edit: content unchanged")
	}

	r.tagIfLarge(ctx, event, dest.ChannelID, event.Content)
	return nil
}

// tagIfLarge sends the role tag once per source message, whether the large number
// arrived with the message or with a later edit.
func (r *RelayForwarder) tagIfLarge(ctx context.Context, event models.InboundEvent, channelID, content string) {
	if r.tagRoleID == "" || !classifier.ContainsLargeNumber(content, r.threshold) {
		return
	}

	key := models.RelayTagKey(event.Ref)
	entry := r.logger.WithFields(logrus.Fields{LogFieldEventKey: key.String(), LogFieldChannelID: channelID})
	labels := map[string]string{"type": string(models.AlertTag)}

	text, err := r.templates.Tag(AlertData{RoleID: r.tagRoleID, Text: content, ChatName: event.ChatName})
	if err != nil {
		entry.WithError(err).Error("Failed to render tag")
		metrics.IncrementCounter(metrics.AlertsFailed, labels, "Alerts that could not be sent")
		return
	}

	outcome, err := r.deduper.Dispatch(ctx, key, func(ctx context.Context) error {
		_, err := r.send(ctx, channelID, text, nil)
		return err
	})
	switch outcome {
	case dedup.OutcomeSent:
		metrics.IncrementCounter(metrics.AlertsSent, labels, "Alerts sent")
		if err != nil {
			entry.WithError(err).Error("Tag sent but not recorded")
			return
		}
		entry.Info("Large number tag sent")
	case dedup.OutcomeDuplicate:
		metrics.IncrementCounter(metrics.AlertsDuplicate, labels, "Alerts suppressed as already sent")
		entry.Debug("Skipping tag: already sent")
	case dedup.OutcomeFailed:
		metrics.IncrementCounter(metrics.AlertsFailed, labels, "Alerts that could not be sent")
		entry.WithFields(errorFields(err, nil)).WithError(err).Error("Failed to send tag")
	}
}

func (r *RelayForwarder) stage(ctx context.Context, event models.InboundEvent, entry *logrus.Entry) *models.Attachment {
	if event.Media == nil {
		return nil
	}
	if r.stager == nil {
		entry.Warn("Media staging disabled, relaying text only")
		return nil
	}

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	attachment, err := r.stager.Stage(opCtx, *event.Media)
	if err != nil {
		metrics.IncrementCounter(metrics.MediaStaged, map[string]string{"result": "failed"}, "Media staging attempts")
		entry.WithFields(errorFields(err, nil)).WithError(err).Warn("Failed to stage media, relaying text only")
		return nil
	}
	metrics.IncrementCounter(metrics.MediaStaged, map[string]string{"result": "ok"}, "Media staging attempts")
	return attachment
}

func (r *RelayForwarder) release(attachment *models.Attachment, entry *logrus.Entry) {
	if err := r.stager.Release(attachment); err != nil {
		entry.WithError(err).WithField(LogFieldFileName, attachment.Name).Warn("Failed to release staged media")
	}
}

func (r *RelayForwarder) send(ctx context.Context, channelID, content string, attachment *models.Attachment) (string, error) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()
	return r.sink.Send(opCtx, channelID, content, attachment)
}

// workContext detaches one event from shutdown. Everything the event does, store
// writes included, runs to completion or to the work deadline.
func (r *RelayForwarder) workContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.workTimeout)
}

// opContext bounds one outbound call.
func (r *RelayForwarder) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.sendTimeout)
}

// fallbackToText reports whether a failed media send may be retried without the media.
// Only failures where the platform certainly did not post anything qualify.
func fallbackToText(err error) bool {
	if errors.HasCode(err, errors.ErrCodeMediaDownload) {
		return true
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Code == errors.ErrCodeSendFailed {
		status, _ := appErr.Context["status_code"].(int)
		return status >= 400 && status < 500 && status != 429
	}
	return false
}

func (r *RelayForwarder) fail(ctx context.Context, entry *logrus.Entry, err error, msg string) {
	metrics.IncrementCounter(metrics.RelayFailures, nil, "Relay operations that failed")
	tracing.RecordError(ctx, err)
	entry.WithFields(errorFields(err, nil)).WithError(err).Error(msg)
}

func (r *RelayForwarder) drop(event models.InboundEvent, reason string) {
	metrics.IncrementCounter(metrics.RelayDropped, map[string]string{"reason": reason}, "Inbound events dropped")
	r.logger.WithFields(logrus.Fields{
		LogFieldChatID:    event.Ref.ChatID,
		LogFieldChatName:  event.ChatName,
		LogFieldEventType: string(event.Type),
	}).Warn("Skipping relay: " + reason)
}

func (r *RelayForwarder) entry(ctx context.Context, event models.InboundEvent) *logrus.Entry {
	return r.logger.WithFields(logrus.Fields{
		LogFieldChatID:    event.Ref.ChatID,
		LogFieldChatName:  event.ChatName,
		LogFieldEventType: string(event.Type),
		"source_msg_id":   event.Ref.MessageID,
		LogFieldPreview:   PreviewContent(ctx, event.Content),
	})
}

func (r *RelayForwarder) chatLabel(event models.InboundEvent) string {
	if event.ChatName != "" {
		return event.ChatName
	}
	return strconv.FormatInt(event.Ref.ChatID, 10)
}
