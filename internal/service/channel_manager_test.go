package service

import (
	"testing"

	"rainrelay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelManager_Validation(t *testing.T) {
	tests := []struct {
		name     string
		channels []models.Channel
		wantErr  string
	}{
		{
			name:     "no channels",
			channels: nil,
			wantErr:  "no channels configured",
		},
		{
			name:     "empty source",
			channels: []models.Channel{{Source: " @ ", DestinationChannelID: "D"}},
			wantErr:  "empty source",
		},
		{
			name:     "empty destination",
			channels: []models.Channel{{Source: "news"}},
			wantErr:  "empty destination",
		},
		{
			name: "duplicate after normalization",
			channels: []models.Channel{
				{Source: "@News", DestinationChannelID: "D1"},
				{Source: "news", DestinationChannelID: "D2"},
			},
			wantErr: "duplicate relay source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChannelManager(tt.channels)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestChannelManager_Destination(t *testing.T) {
	cm, err := NewChannelManager([]models.Channel{
		{Source: "@RainNews", DestinationChannelID: "D1"},
		{Source: "7", DestinationChannelID: "D"},
		{Source: "-1001234", DestinationChannelID: "D3"},
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		event    models.InboundEvent
		wantDest string
		wantOK   bool
	}{
		{
			name:     "by username, case-insensitive",
			event:    models.InboundEvent{ChatName: "rainnews", Ref: models.SourceMessageRef{ChatID: 99}},
			wantDest: "D1",
			wantOK:   true,
		},
		{
			name:     "by numeric id",
			event:    models.InboundEvent{Ref: models.SourceMessageRef{ChatID: 7}},
			wantDest: "D",
			wantOK:   true,
		},
		{
			name:     "by negative channel id when username unmapped",
			event:    models.InboundEvent{ChatName: "other", Ref: models.SourceMessageRef{ChatID: -1001234}},
			wantDest: "D3",
			wantOK:   true,
		},
		{
			name:  "unmapped",
			event: models.InboundEvent{ChatName: "other", Ref: models.SourceMessageRef{ChatID: 8}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest, ok := cm.Destination(tt.event)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDest, dest)
		})
	}

	assert.Equal(t, []string{"rainnews", "7", "-1001234"}, cm.Sources())
	assert.Equal(t, 3, cm.GetChannelCount())
}
