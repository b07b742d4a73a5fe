package service

// Logging standards for rainrelay
//
// Standard field names, log levels and message patterns shared by the monitor,
// the relay and the command entry point.

// Standard Field Names
const (
	// Core identifiers
	LogFieldMessageID = "message_id"
	LogFieldChatID    = "chat_id"
	LogFieldChatName  = "chat_name"
	LogFieldChannelID = "channel_id"
	LogFieldEventKey  = "event_key"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"

	// Feed and relay fields
	LogFieldClassification = "classification"
	LogFieldAmount         = "amount"
	LogFieldEventType      = "event_type"
	LogFieldOutcome        = "outcome"
	LogFieldPreview        = "preview"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"

	// File and media
	LogFieldFileName  = "file_name"
	LogFieldMediaType = "media_type"

	// Error and debugging
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)

// Log Level Usage Guidelines
//
// DEBUG: per-poll detail, unchanged feed, below-threshold rain, duplicate alerts.
// INFO: startup/shutdown, alerts sent, messages relayed, edits propagated.
// WARN: unmapped chats, fallbacks (text-only relay), feed unavailable, skipped features.
// ERROR: failed sends and store failures. The process keeps running.
// FATAL: only startup wiring in cmd/rainrelay.

// Standard Log Message Patterns
//
// Starting operations: "Starting [operation]"
// Completed operations: "[Operation] completed"
// Failed operations: "Failed to [operation]"
// Skipping operations: "Skipping [operation]: [reason]"
//
// Message text is never logged at info level; use PreviewContent at debug level.
