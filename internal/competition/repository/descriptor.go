package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"alchemy/internal/common/cache"
	"alchemy/internal/common/db"
	"alchemy/internal/competition/status"
)

const (
	defaultDescriptorCacheTTL      = 30 * time.Minute
	defaultDescriptorCacheEmptyTTL = 2 * time.Minute
	descriptorCacheKeyPrefix       = "competition:descriptor:"
)

var (
	ErrDescriptorNotFound = errors.New("competition descriptor not found")
)

// ListFilter narrows List.
type ListFilter struct {
	DAO string
}

// DescriptorRepository persists competition descriptors.
type DescriptorRepository interface {
	// Replace stores d as the full descriptor for d.ID. It reports false when
	// an identical descriptor was already stored.
	Replace(ctx context.Context, d status.Descriptor) (bool, error)
	GetByID(ctx context.Context, id string) (*status.Descriptor, error)
	List(ctx context.Context, filter ListFilter) ([]status.Descriptor, error)
	Delete(ctx context.Context, id string) error
}

// MySQLDescriptorRepository stores descriptors in MySQL with a Redis read cache.
type MySQLDescriptorRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewDescriptorRepository creates a descriptor repository with default TTLs.
func NewDescriptorRepository(database db.Database, cacheClient cache.Cache) *MySQLDescriptorRepository {
	return NewDescriptorRepositoryWithTTL(database, cacheClient, defaultDescriptorCacheTTL, defaultDescriptorCacheEmptyTTL)
}

// NewDescriptorRepositoryWithTTL creates a descriptor repository with custom TTLs.
func NewDescriptorRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl, emptyTTL time.Duration) *MySQLDescriptorRepository {
	if ttl <= 0 {
		ttl = defaultDescriptorCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultDescriptorCacheEmptyTTL
	}
	return &MySQLDescriptorRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

const descriptorColumns = "id, dao, title, start_time, suggestions_end_time, voting_start_time, end_time, total_submissions, winning_submissions"

const upsertDescriptorQuery = `
	INSERT INTO competitions
	(` + descriptorColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		dao = VALUES(dao),
		title = VALUES(title),
		start_time = VALUES(start_time),
		suggestions_end_time = VALUES(suggestions_end_time),
		voting_start_time = VALUES(voting_start_time),
		end_time = VALUES(end_time),
		total_submissions = VALUES(total_submissions),
		winning_submissions = VALUES(winning_submissions)
`

// Replace locks the stored row, skips the write when it already equals d and
// drops the cache entry after commit otherwise.
func (r *MySQLDescriptorRepository) Replace(ctx context.Context, d status.Descriptor) (bool, error) {
	if d.ID == "" {
		return false, errors.New("descriptor id is required")
	}
	changed := false
	replace := func(ctx context.Context) error {
		return r.db.Transaction(ctx, func(tx db.Transaction) error {
			current, err := r.getByIDFromDB(ctx, tx, d.ID)
			if err != nil && !errors.Is(err, ErrDescriptorNotFound) {
				return err
			}
			if current != nil && sameDescriptor(*current, d) {
				return nil
			}
			if _, err := tx.Exec(
				ctx,
				upsertDescriptorQuery,
				d.ID,
				d.DAO,
				d.Title,
				d.StartTime.UTC(),
				d.SuggestionsEndTime.UTC(),
				d.VotingStartTime.UTC(),
				d.EndTime.UTC(),
				d.TotalSubmissions,
				d.NumberOfWinningSubmissions,
			); err != nil {
				return err
			}
			changed = true
			return nil
		})
	}
	if r.cache == nil {
		err := replace(ctx)
		return changed, err
	}
	err := cache.UpdateCached(ctx, r.cache, descriptorCacheKey(d.ID), replace)
	return changed, err
}

// GetByID loads one descriptor through the cache.
func (r *MySQLDescriptorRepository) GetByID(ctx context.Context, id string) (*status.Descriptor, error) {
	if id == "" {
		return nil, errors.New("descriptor id is required")
	}
	if r.cache == nil {
		return r.getByIDFromDB(ctx, r.db, id)
	}
	d, err := cache.GetWithCached[*status.Descriptor](
		ctx,
		r.cache,
		descriptorCacheKey(id),
		cache.JitterTTL(r.ttl),
		cache.JitterTTL(r.emptyTTL),
		func(d *status.Descriptor) bool { return d == nil },
		marshalDescriptor,
		unmarshalDescriptor,
		func(ctx context.Context) (*status.Descriptor, error) {
			d, err := r.getByIDFromDB(ctx, r.db, id)
			if errors.Is(err, ErrDescriptorNotFound) {
				return nil, nil
			}
			return d, err
		},
	)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDescriptorNotFound
	}
	return d, nil
}

// List returns descriptors ordered by end time, latest first.
func (r *MySQLDescriptorRepository) List(ctx context.Context, filter ListFilter) ([]status.Descriptor, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString("SELECT " + descriptorColumns + " FROM competitions")
	if filter.DAO != "" {
		sb.WriteString(" WHERE dao = ?")
		args = append(args, filter.DAO)
	}
	sb.WriteString(" ORDER BY end_time DESC, id ASC")

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []status.Descriptor
	for rows.Next() {
		var d status.Descriptor
		if err := scanDescriptor(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a descriptor and its cache entry.
func (r *MySQLDescriptorRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("descriptor id is required")
	}
	result, err := r.db.Exec(ctx, "DELETE FROM competitions WHERE id = ?", id)
	if err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, descriptorCacheKey(id))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDescriptorNotFound
	}
	return nil
}

// getByIDFromDB reads one row. Inside a transaction the row is locked.
func (r *MySQLDescriptorRepository) getByIDFromDB(ctx context.Context, q db.Querier, id string) (*status.Descriptor, error) {
	query := "SELECT " + descriptorColumns + " FROM competitions WHERE id = ? LIMIT 1"
	if _, ok := q.(db.Transaction); ok {
		query += " FOR UPDATE"
	}
	row := q.QueryRow(ctx, query, id)
	var d status.Descriptor
	if err := scanDescriptor(row, &d); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrDescriptorNotFound
		}
		return nil, err
	}
	return &d, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDescriptor(s scanner, d *status.Descriptor) error {
	var title *string
	if err := s.Scan(
		&d.ID,
		&d.DAO,
		&title,
		&d.StartTime,
		&d.SuggestionsEndTime,
		&d.VotingStartTime,
		&d.EndTime,
		&d.TotalSubmissions,
		&d.NumberOfWinningSubmissions,
	); err != nil {
		return err
	}
	if title != nil {
		d.Title = *title
	}
	d.StartTime = d.StartTime.UTC()
	d.SuggestionsEndTime = d.SuggestionsEndTime.UTC()
	d.VotingStartTime = d.VotingStartTime.UTC()
	d.EndTime = d.EndTime.UTC()
	return nil
}

func sameDescriptor(a, b status.Descriptor) bool {
	return a.ID == b.ID &&
		a.DAO == b.DAO &&
		a.Title == b.Title &&
		a.StartTime.Equal(b.StartTime) &&
		a.SuggestionsEndTime.Equal(b.SuggestionsEndTime) &&
		a.VotingStartTime.Equal(b.VotingStartTime) &&
		a.EndTime.Equal(b.EndTime) &&
		a.TotalSubmissions == b.TotalSubmissions &&
		a.NumberOfWinningSubmissions == b.NumberOfWinningSubmissions
}

func descriptorCacheKey(id string) string {
	return descriptorCacheKeyPrefix + id
}

func marshalDescriptor(d *status.Descriptor) string {
	if d == nil {
		return ""
	}
	data, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalDescriptor(data string) (*status.Descriptor, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var d status.Descriptor
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, err
	}
	return &d, nil
}
