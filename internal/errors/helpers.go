package errors

import (
	"fmt"
	"time"
)

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key)
}

// NewFeedUnavailableError marks a failed or timed out feed snapshot
func NewFeedUnavailableError(err error) *AppError {
	return Wrap(err, ErrCodeFeedUnavailable, "feed snapshot unavailable")
}

// NewAmbiguousAmountError records an unparsable rain amount. It is logged, never propagated.
func NewAmbiguousAmountError(raw string, err error) *AppError {
	return Wrap(err, ErrCodeClassificationAmbiguous, "rain amount is not a number").
		WithContext("raw_amount", raw)
}

// NewRelayTargetMissingError is used for unmapped channels and missing relay map entries
func NewRelayTargetMissingError(what, identifier string) *AppError {
	return New(ErrCodeRelayTargetMissing, fmt.Sprintf("%s not found", what)).
		WithContext("resource", what).
		WithContext("identifier", identifier)
}

// NewSendError wraps an outbound platform failure. Only definite rejections are retryable.
func NewSendError(operation, channelID string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeSendFailed, fmt.Sprintf("outbound %s failed", operation)).
		WithContext("operation", operation).
		WithContext("channel_id", channelID)
	if statusCode != 0 {
		appErr = appErr.WithContext("status_code", statusCode)
	}
	appErr.Retryable = statusCode >= 500 || statusCode == 429
	return appErr
}

// NewMediaError creates a media staging error
func NewMediaError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeMediaDownload, fmt.Sprintf("media %s failed", operation)).
		WithContext("operation", operation)
}

// NewStoreError creates a state store error with operation context
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStore, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation)
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration time.Duration) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration.String())
}
