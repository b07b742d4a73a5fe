package service

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"rainrelay/internal/constants"
	"rainrelay/internal/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestIsVerboseLogging(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected bool
	}{
		{name: "verbose enabled", ctx: WithVerbose(context.Background(), true), expected: true},
		{name: "verbose disabled", ctx: WithVerbose(context.Background(), false), expected: false},
		{name: "no verbose in context", ctx: context.Background(), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsVerboseLogging(tt.ctx))
		})
	}
}

func TestSanitizeMessageID(t *testing.T) {
	assert.Equal(t, "", SanitizeMessageID(""))
	assert.Equal(t, "msg-1", SanitizeMessageID("msg-1"))

	long := strings.Repeat("a", 40)
	assert.Equal(t, strings.Repeat("a", 24)+"...", SanitizeMessageID(long))
}

func TestPreviewContent(t *testing.T) {
	verbose := WithVerbose(context.Background(), true)

	assert.Equal(t, "", PreviewContent(verbose, ""))
	assert.Equal(t, "[hidden]", PreviewContent(context.Background(), "secret"))
	assert.Equal(t, "tip 12 000 sent", PreviewContent(verbose, "tip\n12 000   sent"))

	long := strings.Repeat("ж", constants.DefaultLogPreviewLength+10)
	preview := PreviewContent(verbose, long)
	assert.Equal(t, strings.Repeat("ж", constants.DefaultLogPreviewLength)+"...", preview)
}

func TestLogWithContext(t *testing.T) {
	entry := LogWithContext(WithVerbose(context.Background(), true), logrus.New())
	assert.Equal(t, true, entry.Data["verbose"])
}

func TestErrorFields(t *testing.T) {
	fields := errorFields(errors.NewFeedUnavailableError(stderrors.New("boom")), nil)
	assert.Equal(t, "FEED_UNAVAILABLE", fields[LogFieldErrorCode])

	fields = errorFields(stderrors.New("plain"), logrus.Fields{LogFieldChatID: 7})
	assert.Equal(t, "INTERNAL_ERROR", fields[LogFieldErrorCode])
	assert.Equal(t, 7, fields[LogFieldChatID])
}
