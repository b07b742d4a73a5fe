package service

import (
	"context"
	"sync"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/metrics"
	"rainrelay/internal/store"

	"github.com/sirupsen/logrus"
)

// MediaCleaner removes staged media files left behind by interrupted sends.
type MediaCleaner interface {
	CleanupOldFiles(maxAge time.Duration) (int, error)
}

// Scheduler periodically prunes the ledger and relay map and sweeps stale media.
// A zero retention keeps state for the whole process lifetime.
type Scheduler struct {
	store     store.Store
	media     MediaCleaner
	retention time.Duration
	interval  time.Duration
	logger    *logrus.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewScheduler(st store.Store, media MediaCleaner, retentionHours, intervalMinutes int, logger *logrus.Logger) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = constants.DefaultCleanupIntervalMinutes
	}
	return &Scheduler{
		store:     st,
		media:     media,
		retention: time.Duration(retentionHours) * time.Hour,
		interval:  time.Duration(intervalMinutes) * time.Minute,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting cleanup scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	if s.retention > 0 {
		cutoff := time.Now().Add(-s.retention)
		removed, err := s.store.Prune(ctx, cutoff)
		if err != nil {
			s.logger.WithFields(errorFields(err, nil)).WithError(err).Error("Failed to prune old records")
		} else {
			metrics.AddToCounter(metrics.StorePruned, float64(removed), nil, "Ledger and relay map entries pruned")
			s.logger.WithFields(logrus.Fields{
				LogFieldCount:     removed,
				"retention_hours": s.retention.Hours(),
			}).Info("Pruned old records")
		}
	}

	if s.media != nil {
		removed, err := s.media.CleanupOldFiles(time.Duration(constants.DefaultStaleMediaSec) * time.Second)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to clean up staged media")
		} else if removed > 0 {
			s.logger.WithField(LogFieldCount, removed).Info("Removed stale staged media")
		}
	}

	s.recordStats(ctx)
}

func (s *Scheduler) recordStats(ctx context.Context) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to read store stats")
		return
	}
	labels := map[string]string{"backend": stats.Backend}
	metrics.SetGauge(metrics.StoreFiredEvents, float64(stats.FiredEvents), labels, "Events recorded in the notification ledger")
	metrics.SetGauge(metrics.StoreRelayMappings, float64(stats.RelayMappings), labels, "Entries in the relay map")
}
