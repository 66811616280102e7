package service

import (
	"context"

	"alchemy/internal/competition/model"
	"alchemy/internal/competition/status"
	"alchemy/pkg/utils/logger"

	"go.uber.org/zap"
)

// OnStatusChange reports a new status of competition id: it records the
// snapshot, publishes an event, notifies websocket subscribers and archives
// terminal statuses. Failures are logged; the next transition retries.
func (s *CompetitionService) OnStatusChange(id string, st status.Status) {
	d, ok := s.watcher.Descriptor(id)
	if !ok {
		return
	}

	s.mu.Lock()
	prev, seen := s.reported[id]
	if seen && prev == st.Kind {
		s.mu.Unlock()
		return
	}
	s.reported[id] = st.Kind
	s.mu.Unlock()

	ctx := context.Background()
	rec := model.NewStatusRecord(d, st)
	logger.Info(ctx, "competition status reported",
		zap.String("competition_id", id),
		zap.String("dao", d.DAO),
		zap.String("status", st.Kind.String()),
	)

	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	if err := s.snapshots.Save(ctxCache.ctx, rec); err != nil {
		logger.Warn(ctx, "save status snapshot failed", zap.String("competition_id", id), zap.Error(err))
	}
	ctxCache.cancel()

	ctxMQ := withTimeout(ctx, s.timeouts.MQ)
	if err := s.publisher.PublishStatusChanged(ctxMQ.ctx, rec); err != nil {
		logger.Error(ctx, "publish status change failed", zap.String("competition_id", id), zap.Error(err))
	}
	ctxMQ.cancel()

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(rec)
	}
	if s.metrics != nil {
		s.metrics.RecordStatusChange(st.Kind.String())
		s.refreshTrackedGauge()
	}
	if st.Kind.Terminal() {
		s.archiveFinal(ctx, d, rec)
	}
}

func (s *CompetitionService) archiveFinal(ctx context.Context, d status.Descriptor, rec model.StatusRecord) {
	if s.archive == nil {
		return
	}
	locked := false
	if s.cache != nil {
		ctxCache := withTimeout(ctx, s.timeouts.Cache)
		ok, err := s.cache.TryLock(ctxCache.ctx, archiveLockKey+d.ID, archiveLockTTL)
		ctxCache.cancel()
		if err != nil {
			logger.Warn(ctx, "archive lock failed", zap.String("competition_id", d.ID), zap.Error(err))
		} else if !ok {
			return
		}
		locked = ok
	}

	ctxStorage := withTimeout(ctx, s.timeouts.Storage)
	defer ctxStorage.cancel()
	err := s.archive.PutFinal(ctxStorage.ctx, model.ArchiveRecord{
		Descriptor: d,
		Status:     rec,
		ArchivedAt: s.clock.Now(),
	})
	if s.metrics != nil {
		s.metrics.RecordArchiveWrite(err == nil)
	}
	if err != nil {
		logger.Error(ctx, "archive final status failed", zap.String("competition_id", d.ID), zap.Error(err))
		// Let a later report retry.
		if locked {
			ctxCache := withTimeout(ctx, s.timeouts.Cache)
			if err := s.cache.Unlock(ctxCache.ctx, archiveLockKey+d.ID); err != nil {
				logger.Warn(ctx, "archive unlock failed", zap.String("competition_id", d.ID), zap.Error(err))
			}
			ctxCache.cancel()
		}
		return
	}
	logger.Info(ctx, "competition archived", zap.String("competition_id", d.ID), zap.String("status", rec.Kind.String()))
}
