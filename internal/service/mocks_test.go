package service

import (
	"context"
	"io"
	"time"

	"rainrelay/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Snapshot(ctx context.Context) (*models.FeedSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeedSnapshot), args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Send(ctx context.Context, channelID, content string, attachment *models.Attachment) (string, error) {
	args := m.Called(ctx, channelID, content, attachment)
	return args.String(0), args.Error(1)
}

func (m *mockSink) Edit(ctx context.Context, channelID, messageID, content string) error {
	args := m.Called(ctx, channelID, messageID, content)
	return args.Error(0)
}

func (m *mockSink) Fetch(ctx context.Context, channelID, messageID string) (*models.DestinationMessage, error) {
	args := m.Called(ctx, channelID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DestinationMessage), args.Error(1)
}

type mockStager struct {
	mock.Mock
}

func (m *mockStager) Stage(ctx context.Context, media models.Media) (*models.Attachment, error) {
	args := m.Called(ctx, media)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

func (m *mockStager) Release(attachment *models.Attachment) error {
	args := m.Called(attachment)
	return args.Error(0)
}

type mockMediaCleaner struct {
	mock.Mock
}

func (m *mockMediaCleaner) CleanupOldFiles(maxAge time.Duration) (int, error) {
	args := m.Called(maxAge)
	return args.Int(0), args.Error(1)
}

// mockStore only covers what the scheduler needs; relay and dedup tests use the
// in-memory store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) TryMarkFired(ctx context.Context, key models.EventKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) HasFired(ctx context.Context, key models.EventKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) SaveRelay(ctx context.Context, mapping models.RelayMapping) (bool, error) {
	args := m.Called(ctx, mapping)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) LookupRelay(ctx context.Context, ref models.SourceMessageRef) (*models.DestinationRef, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DestinationRef), args.Error(1)
}

func (m *mockStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context) (models.StoreStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.StoreStats), args.Error(1)
}

func (m *mockStore) Backend() string {
	return "mock"
}

func (m *mockStore) Close() error {
	return nil
}
