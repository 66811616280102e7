package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"alchemy/internal/common/cache"
	"alchemy/internal/common/db"
	"alchemy/internal/competition/status"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var descriptorColumnNames = []string{
	"id", "dao", "title", "start_time", "suggestions_end_time", "voting_start_time", "end_time", "total_submissions", "winning_submissions",
}

func sampleDescriptor(id string) status.Descriptor {
	return status.Descriptor{
		ID:                         id,
		DAO:                        "alchemy",
		Title:                      "Logo contest",
		StartTime:                  t0,
		SuggestionsEndTime:         t0.Add(time.Hour),
		VotingStartTime:            t0.Add(2 * time.Hour),
		EndTime:                    t0.Add(3 * time.Hour),
		TotalSubmissions:           4,
		NumberOfWinningSubmissions: 1,
	}
}

func descriptorRow(rows *sqlmock.Rows, d status.Descriptor) *sqlmock.Rows {
	return rows.AddRow(d.ID, d.DAO, d.Title, d.StartTime, d.SuggestionsEndTime, d.VotingStartTime, d.EndTime, d.TotalSubmissions, d.NumberOfWinningSubmissions)
}

func newDescriptorRepo(t *testing.T, withCache bool) (*MySQLDescriptorRepository, sqlmock.Sqlmock, *cache.RedisCache) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	database, err := db.NewMySQLWithDB(raw)
	require.NoError(t, err)

	if !withCache {
		return NewDescriptorRepository(database, nil), mock, nil
	}
	c, _ := newTestCache(t)
	return NewDescriptorRepository(database, c), mock, c
}

func TestDescriptorGetByIDUsesCache(t *testing.T) {
	repo, mock, _ := newDescriptorRepo(t, true)
	d := sampleDescriptor("c-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM competitions WHERE id = ? LIMIT 1")).
		WithArgs("c-1").
		WillReturnRows(descriptorRow(sqlmock.NewRows(descriptorColumnNames), d))

	ctx := context.Background()
	got, err := repo.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, d, *got)

	// Second read is served from Redis; no further query is expected.
	got, err = repo.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, d.EndTime.Equal(got.EndTime))
	assert.Equal(t, d.TotalSubmissions, got.TotalSubmissions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDescriptorGetByIDCachesMiss(t *testing.T) {
	repo, mock, c := newDescriptorRepo(t, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM competitions WHERE id = ? LIMIT 1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	_, err := repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrDescriptorNotFound)

	cached, err := c.Get(ctx, descriptorCacheKey("nope"))
	require.NoError(t, err)
	assert.Equal(t, cache.NullCacheValue, cached)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrDescriptorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectReplaceLookup(mock sqlmock.Sqlmock, id string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta("FROM competitions WHERE id = ? LIMIT 1 FOR UPDATE")).WithArgs(id)
}

func expectReplaceWrite(mock sqlmock.Sqlmock, d status.Descriptor) *sqlmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO competitions").
		WithArgs(d.ID, d.DAO, d.Title, d.StartTime, d.SuggestionsEndTime, d.VotingStartTime, d.EndTime, d.TotalSubmissions, d.NumberOfWinningSubmissions)
}

func TestDescriptorReplaceInsertsAndInvalidatesCache(t *testing.T) {
	repo, mock, c := newDescriptorRepo(t, true)
	ctx := context.Background()
	d := sampleDescriptor("c-1")
	require.NoError(t, c.Set(ctx, descriptorCacheKey("c-1"), "stale", time.Hour))

	mock.ExpectBegin()
	expectReplaceLookup(mock, "c-1").WillReturnError(sql.ErrNoRows)
	expectReplaceWrite(mock, d).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := repo.Replace(ctx, d)
	require.NoError(t, err)
	assert.True(t, changed)
	cached, err := c.Get(ctx, descriptorCacheKey("c-1"))
	require.NoError(t, err)
	assert.Empty(t, cached)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDescriptorReplaceSkipsIdenticalDescriptor(t *testing.T) {
	repo, mock, _ := newDescriptorRepo(t, false)
	d := sampleDescriptor("c-1")

	mock.ExpectBegin()
	expectReplaceLookup(mock, "c-1").WillReturnRows(descriptorRow(sqlmock.NewRows(descriptorColumnNames), d))
	mock.ExpectCommit()

	changed, err := repo.Replace(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, changed)

	updated := d
	updated.TotalSubmissions = 5
	mock.ExpectBegin()
	expectReplaceLookup(mock, "c-1").WillReturnRows(descriptorRow(sqlmock.NewRows(descriptorColumnNames), d))
	expectReplaceWrite(mock, updated).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	changed, err = repo.Replace(context.Background(), updated)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDescriptorReplaceRollsBackOnWriteError(t *testing.T) {
	repo, mock, c := newDescriptorRepo(t, true)
	ctx := context.Background()
	d := sampleDescriptor("c-1")
	require.NoError(t, c.Set(ctx, descriptorCacheKey("c-1"), "kept", time.Hour))

	mock.ExpectBegin()
	expectReplaceLookup(mock, "c-1").WillReturnError(sql.ErrNoRows)
	expectReplaceWrite(mock, d).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	changed, err := repo.Replace(ctx, d)
	require.Error(t, err)
	assert.False(t, changed)
	cached, err := c.Get(ctx, descriptorCacheKey("c-1"))
	require.NoError(t, err)
	assert.Equal(t, "kept", cached)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDescriptorList(t *testing.T) {
	repo, mock, _ := newDescriptorRepo(t, false)
	a, b := sampleDescriptor("a"), sampleDescriptor("b")
	b.Title = ""

	rows := sqlmock.NewRows(descriptorColumnNames)
	descriptorRow(rows, a)
	rows.AddRow(b.ID, b.DAO, nil, b.StartTime, b.SuggestionsEndTime, b.VotingStartTime, b.EndTime, b.TotalSubmissions, b.NumberOfWinningSubmissions)
	mock.ExpectQuery(regexp.QuoteMeta("FROM competitions WHERE dao = ? ORDER BY end_time DESC, id ASC")).
		WithArgs("alchemy").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), ListFilter{DAO: "alchemy"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0])
	assert.Equal(t, b, got[1])

	mock.ExpectQuery(regexp.QuoteMeta("FROM competitions ORDER BY end_time DESC, id ASC")).
		WillReturnRows(sqlmock.NewRows(descriptorColumnNames))
	got, err = repo.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDescriptorDelete(t *testing.T) {
	repo, mock, _ := newDescriptorRepo(t, true)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM competitions WHERE id = ?")).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, "c-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM competitions WHERE id = ?")).
		WithArgs("c-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(ctx, "c-2"), ErrDescriptorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
