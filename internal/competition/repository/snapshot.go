package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"alchemy/internal/common/cache"
	"alchemy/internal/competition/model"
	appErr "alchemy/pkg/errors"
)

const snapshotHashKey = "competition:status:last"

// SnapshotRepository keeps the last reported status of every competition in
// one Redis hash keyed by competition id.
type SnapshotRepository struct {
	cache cache.Cache
}

// NewSnapshotRepository creates a new repository.
func NewSnapshotRepository(cacheClient cache.Cache) *SnapshotRepository {
	return &SnapshotRepository{cache: cacheClient}
}

// Save stores rec, replacing any previous record for the same competition.
func (r *SnapshotRepository) Save(ctx context.Context, rec model.StatusRecord) error {
	if rec.ID == "" {
		return appErr.ValidationError("id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal status record failed: %w", err)
	}
	if err := r.cache.HSet(ctx, snapshotHashKey, rec.ID, string(data)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status record failed")
	}
	return nil
}

// Get returns the last record for id. The bool is false when none exists.
func (r *SnapshotRepository) Get(ctx context.Context, id string) (model.StatusRecord, bool, error) {
	if r.cache == nil {
		return model.StatusRecord{}, false, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.HGet(ctx, snapshotHashKey, id)
	if err != nil {
		return model.StatusRecord{}, false, appErr.Wrapf(err, appErr.CacheError, "read status record failed")
	}
	if val == "" {
		return model.StatusRecord{}, false, nil
	}
	var rec model.StatusRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return model.StatusRecord{}, false, appErr.Wrapf(err, appErr.CacheError, "decode status record failed")
	}
	return rec, true, nil
}

// All returns every stored record keyed by competition id. Undecodable
// entries are skipped.
func (r *SnapshotRepository) All(ctx context.Context) (map[string]model.StatusRecord, error) {
	if r.cache == nil {
		return nil, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	raw, err := r.cache.HGetAll(ctx, snapshotHashKey)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "read status records failed")
	}
	out := make(map[string]model.StatusRecord, len(raw))
	for id, val := range raw {
		var rec model.StatusRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			continue
		}
		out[id] = rec
	}
	return out, nil
}

// Delete forgets the record for id.
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if err := r.cache.HDel(ctx, snapshotHashKey, id); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "delete status record failed")
	}
	return nil
}
