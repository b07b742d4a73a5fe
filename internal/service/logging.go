package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"rainrelay/internal/constants"
	"rainrelay/internal/errors"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

const maxLoggedIDLength = 24

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// WithVerbose marks ctx for verbose logging.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// SanitizeMessageID shortens long ids, e.g. derived feed ids or element ids.
func SanitizeMessageID(msgID string) string {
	if len(msgID) > maxLoggedIDLength {
		return msgID[:maxLoggedIDLength] + "..."
	}
	return msgID
}

// PreviewContent returns a bounded single-line preview of message text when verbose
// logging is on and a placeholder otherwise.
func PreviewContent(ctx context.Context, content string) string {
	if content == "" {
		return ""
	}
	if !IsVerboseLogging(ctx) {
		return "[hidden]"
	}

	preview := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(preview) <= constants.DefaultLogPreviewLength {
		return preview
	}
	runes := []rune(preview)
	return string(runes[:constants.DefaultLogPreviewLength]) + "..."
}

// LogWithContext creates a logger entry carrying the verbose flag
func LogWithContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	return logger.WithField("verbose", IsVerboseLogging(ctx))
}

// errorFields adds the error code of an AppError.
func errorFields(err error, fields logrus.Fields) logrus.Fields {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields[LogFieldErrorCode] = string(errors.GetCode(err))
	return fields
}
