package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"alchemy/internal/common/cache"
	"alchemy/internal/common/metrics"
	"alchemy/internal/competition/model"
	"alchemy/internal/competition/repository"
	"alchemy/internal/competition/status"
	"alchemy/internal/competition/watcher"
	appErr "alchemy/pkg/errors"
	"alchemy/pkg/utils/logger"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	archiveLockTTL   = time.Minute
	archiveLockKey   = "competition:archive:lock:"
)

// TimeoutConfig holds timeout settings for external calls.
type TimeoutConfig struct {
	DB      time.Duration `yaml:"db"`
	Cache   time.Duration `yaml:"cache"`
	MQ      time.Duration `yaml:"mq"`
	Storage time.Duration `yaml:"storage"`
}

// SnapshotStore keeps the last reported status per competition.
type SnapshotStore interface {
	Save(ctx context.Context, rec model.StatusRecord) error
	All(ctx context.Context) (map[string]model.StatusRecord, error)
	Delete(ctx context.Context, id string) error
}

// ArchiveStore keeps final snapshots of finished competitions.
type ArchiveStore interface {
	PutFinal(ctx context.Context, rec model.ArchiveRecord) error
	GetFinal(ctx context.Context, id string) (*model.ArchiveRecord, error)
	DeleteFinal(ctx context.Context, id string) error
}

// Broadcaster pushes status changes to live subscribers.
type Broadcaster interface {
	Broadcast(rec model.StatusRecord)
}

// Config holds competition service dependencies and settings.
type Config struct {
	Descriptors repository.DescriptorRepository
	Snapshots   SnapshotStore
	Publisher   repository.StatusEventPublisher

	// Optional dependencies. A nil value disables the matching side effect.
	Archive     ArchiveStore
	Broadcaster Broadcaster
	Cache       cache.Cache
	Metrics     *metrics.Metrics

	Clock     clock.Clock
	ListLimit int
	Timeouts  TimeoutConfig
}

// CompetitionService stores descriptors, derives statuses and reports
// lifecycle transitions.
type CompetitionService struct {
	descriptors repository.DescriptorRepository
	snapshots   SnapshotStore
	publisher   repository.StatusEventPublisher
	archive     ArchiveStore
	broadcaster Broadcaster
	cache       cache.Cache
	metrics     *metrics.Metrics

	clock     clock.Clock
	watcher   *watcher.Watcher
	listLimit int
	timeouts  TimeoutConfig

	mu       sync.Mutex
	reported map[string]status.Kind
}

// NewCompetitionService creates a new competition service.
func NewCompetitionService(cfg Config) (*CompetitionService, error) {
	if cfg.Descriptors == nil {
		return nil, fmt.Errorf("descriptor repository is required")
	}
	if cfg.Snapshots == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("status event publisher is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.ListLimit <= 0 || cfg.ListLimit > maxListLimit {
		cfg.ListLimit = defaultListLimit
	}

	s := &CompetitionService{
		descriptors: cfg.Descriptors,
		snapshots:   cfg.Snapshots,
		publisher:   cfg.Publisher,
		archive:     cfg.Archive,
		broadcaster: cfg.Broadcaster,
		cache:       cfg.Cache,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		listLimit:   cfg.ListLimit,
		timeouts:    cfg.Timeouts,
		reported:    make(map[string]status.Kind),
	}
	s.watcher = watcher.New(cfg.Clock, s.OnStatusChange)
	return s, nil
}

// Bootstrap tracks every stored competition. Statuses already reported
// before a restart are not reported again.
func (s *CompetitionService) Bootstrap(ctx context.Context) error {
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	known, err := s.snapshots.All(ctxCache.ctx)
	ctxCache.cancel()
	if err != nil {
		logger.Warn(ctx, "load status snapshots failed, all statuses will be reported", zap.Error(err))
	}
	s.mu.Lock()
	for id, rec := range known {
		s.reported[id] = rec.Kind
	}
	s.mu.Unlock()

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	descriptors, err := s.descriptors.List(ctxDB.ctx, repository.ListFilter{})
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "load competitions failed")
	}
	for _, d := range descriptors {
		s.watcher.Track(d)
	}
	s.refreshTrackedGauge()
	logger.Info(ctx, "competitions bootstrapped", zap.Int("count", len(descriptors)))
	return nil
}

// UpsertDescriptor validates and stores d, then re-derives its status.
func (s *CompetitionService) UpsertDescriptor(ctx context.Context, d status.Descriptor) (*model.CompetitionView, error) {
	d = normalizeDescriptor(d)
	if err := validateDescriptor(d); err != nil {
		return nil, err
	}

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	changed, err := s.descriptors.Replace(ctxDB.ctx, d)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CompetitionUpdateFailed, "store competition failed")
	}

	st := s.watcher.Track(d)
	s.refreshTrackedGauge()
	logger.Info(ctx, "competition upserted",
		zap.String("competition_id", d.ID),
		zap.String("status", st.Kind.String()),
		zap.Bool("changed", changed),
	)
	return &model.CompetitionView{Descriptor: d, Status: model.NewStatusRecord(d, st)}, nil
}

// DeleteDescriptor removes a competition and stops tracking it.
func (s *CompetitionService) DeleteDescriptor(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if err := s.descriptors.Delete(ctxDB.ctx, id); err != nil {
		if errors.Is(err, repository.ErrDescriptorNotFound) {
			return appErr.New(appErr.CompetitionNotFound)
		}
		return appErr.Wrapf(err, appErr.CompetitionDeleteFailed, "delete competition failed")
	}

	s.watcher.Untrack(id)
	s.mu.Lock()
	delete(s.reported, id)
	s.mu.Unlock()

	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()
	if err := s.snapshots.Delete(ctxCache.ctx, id); err != nil {
		logger.Warn(ctx, "delete status snapshot failed", zap.String("competition_id", id), zap.Error(err))
	}
	if s.archive != nil {
		ctxStorage := withTimeout(ctx, s.timeouts.Storage)
		defer ctxStorage.cancel()
		if err := s.archive.DeleteFinal(ctxStorage.ctx, id); err != nil {
			logger.Warn(ctx, "delete competition archive failed", zap.String("competition_id", id), zap.Error(err))
		}
	}
	s.refreshTrackedGauge()
	return nil
}

// GetStatus derives the current status of one competition.
func (s *CompetitionService) GetStatus(ctx context.Context, id string) (*model.CompetitionView, error) {
	if id == "" {
		return nil, appErr.ValidationError("id", "required")
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	d, err := s.descriptors.GetByID(ctxDB.ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDescriptorNotFound) {
			return nil, appErr.New(appErr.CompetitionNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get competition failed")
	}
	st := status.Derive(s.clock.Now(), *d)
	return &model.CompetitionView{Descriptor: *d, Status: model.NewStatusRecord(*d, st)}, nil
}

// ListFilter narrows ListStatuses.
type ListFilter struct {
	DAO   string
	Limit int
}

// ListStatuses returns competitions ordered for display, every status
// derived at the same instant. The limit applies after sorting so active
// competitions are never cut in favour of later-ending ones.
func (s *CompetitionService) ListStatuses(ctx context.Context, filter ListFilter) ([]model.CompetitionView, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = s.listLimit
	}
	if limit > maxListLimit {
		return nil, appErr.ValidationError("limit", "too_large")
	}

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	descriptors, err := s.descriptors.List(ctxDB.ctx, repository.ListFilter{DAO: filter.DAO})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list competitions failed")
	}

	now := s.clock.Now()
	entries := make([]status.Entry, len(descriptors))
	for i, d := range descriptors {
		st := status.Derive(now, d)
		entries[i] = status.Entry{Descriptor: d, Status: &st}
	}
	status.Sort(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	views := make([]model.CompetitionView, len(entries))
	for i, e := range entries {
		views[i] = model.CompetitionView{Descriptor: e.Descriptor, Status: model.NewStatusRecord(e.Descriptor, *e.Status)}
	}
	return views, nil
}

// GetArchive returns the final snapshot of a finished competition.
func (s *CompetitionService) GetArchive(ctx context.Context, id string) (*model.ArchiveRecord, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, appErr.New(appErr.ServiceUnavailable).WithMessage("archive storage is not configured")
	}
	ctxStorage := withTimeout(ctx, s.timeouts.Storage)
	defer ctxStorage.cancel()
	rec, err := s.archive.GetFinal(ctxStorage.ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrArchiveNotFound) {
			return nil, appErr.New(appErr.ArchiveNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.ArchiveDecodeFailed, "read archive failed")
	}
	return rec, nil
}

// Close stops all pending status timers.
func (s *CompetitionService) Close() {
	s.watcher.Stop()
}

func (s *CompetitionService) refreshTrackedGauge() {
	if s.metrics == nil {
		return
	}
	counts := make(map[string]int)
	for _, e := range s.watcher.Snapshot() {
		counts[e.Status.Kind.String()]++
	}
	kinds := status.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	s.metrics.SetTracked(names, counts)
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}
