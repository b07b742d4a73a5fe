package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ContextKey represents keys used for context values
type ContextKey string

const (
	// RequestIDKey is the context key for HTTP request IDs
	RequestIDKey ContextKey = "request_id"
	// WorkIDKey is the context key for the id of one poll cycle or relay event
	WorkIDKey ContextKey = "work_id"
)

func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	id, err := randomHex(8)
	if err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + id
}

// GenerateWorkID generates an id prefixed with the kind of work, e.g. "poll_1a2b...".
func GenerateWorkID(kind string) string {
	id, err := randomHex(6)
	if err != nil {
		return fmt.Sprintf("%s_%d", kind, time.Now().UnixNano())
	}
	return kind + "_" + id
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func WithWorkID(ctx context.Context, workID string) context.Context {
	return context.WithValue(ctx, WorkIDKey, workID)
}

func GetWorkID(ctx context.Context) string {
	if workID, ok := ctx.Value(WorkIDKey).(string); ok {
		return workID
	}
	return ""
}
