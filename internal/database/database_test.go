package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rainrelay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "state", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_InvalidPath(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"null byte", "bad\x00path.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(tt.path)
			assert.Error(t, err)
			assert.Nil(t, db)
		})
	}
}

func TestTryMarkFired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	key := models.FeedEventKey("m1", models.AlertRain)

	fired, err := db.HasFired(ctx, key)
	require.NoError(t, err)
	assert.False(t, fired)

	first, err := db.TryMarkFired(ctx, key)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := db.TryMarkFired(ctx, key)
	require.NoError(t, err)
	assert.False(t, second)

	fired, err = db.HasFired(ctx, key)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestTryMarkFired_KeySpacesAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ok, err := db.TryMarkFired(ctx, models.FeedEventKey("7/42", models.AlertRain))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.TryMarkFired(ctx, models.RelayTagKey(models.SourceMessageRef{ChatID: 7, MessageID: 42}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryMarkFired_ConcurrentCallersFireOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	key := models.FeedEventKey("race", models.AlertCodeWord)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.TryMarkFired(ctx, key)
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestSaveAndLookupRelay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	source := models.SourceMessageRef{ChatID: 7, MessageID: 42}

	dest, err := db.LookupRelay(ctx, source)
	require.NoError(t, err)
	assert.Nil(t, dest)

	saved, err := db.SaveRelay(ctx, models.RelayMapping{
		Source:      source,
		Destination: models.DestinationRef{ChannelID: "D", MessageID: "900"},
	})
	require.NoError(t, err)
	assert.True(t, saved)

	dest, err = db.LookupRelay(ctx, source)
	require.NoError(t, err)
	require.NotNil(t, dest)
	assert.Equal(t, models.DestinationRef{ChannelID: "D", MessageID: "900"}, *dest)
}

func TestSaveRelay_DoesNotOverwrite(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	source := models.SourceMessageRef{ChatID: 7, MessageID: 42}

	_, err := db.SaveRelay(ctx, models.RelayMapping{Source: source, Destination: models.DestinationRef{ChannelID: "D", MessageID: "900"}})
	require.NoError(t, err)

	saved, err := db.SaveRelay(ctx, models.RelayMapping{Source: source, Destination: models.DestinationRef{ChannelID: "D", MessageID: "901"}})
	require.NoError(t, err)
	assert.False(t, saved)

	dest, err := db.LookupRelay(ctx, source)
	require.NoError(t, err)
	require.NotNil(t, dest)
	assert.Equal(t, "900", dest.MessageID)
}

func TestPrune(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	_, err := db.SaveRelay(ctx, models.RelayMapping{
		Source:      models.SourceMessageRef{ChatID: 1, MessageID: 1},
		Destination: models.DestinationRef{ChannelID: "D", MessageID: "1"},
		RelayedAt:   old,
	})
	require.NoError(t, err)
	_, err = db.SaveRelay(ctx, models.RelayMapping{
		Source:      models.SourceMessageRef{ChatID: 1, MessageID: 2},
		Destination: models.DestinationRef{ChannelID: "D", MessageID: "2"},
	})
	require.NoError(t, err)

	_, err = db.db.ExecContext(ctx, InsertFiredEventQuery, "feed:rain:old", old.Unix())
	require.NoError(t, err)
	_, err = db.TryMarkFired(ctx, models.FeedEventKey("new", models.AlertRain))
	require.NoError(t, err)

	removed, err := db.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", stats.Backend)
	assert.Equal(t, int64(1), stats.FiredEvents)
	assert.Equal(t, int64(1), stats.RelayMappings)

	dest, err := db.LookupRelay(ctx, models.SourceMessageRef{ChatID: 1, MessageID: 1})
	require.NoError(t, err)
	assert.Nil(t, dest)
}

func TestState_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()
	key := models.FeedEventKey("m9", models.AlertCodeWord)

	db, err := New(path)
	require.NoError(t, err)
	ok, err := db.TryMarkFired(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, db.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	ok, err = reopened.TryMarkFired(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
