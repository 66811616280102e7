package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	database, err := NewMySQLWithDB(raw)
	require.NoError(t, err)
	return database, mock
}

func TestQueryRowNoRowsIsDetectable(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id FROM competitions").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var id string
	err := database.QueryRow(context.Background(), "SELECT id FROM competitions WHERE id = ?", "missing").Scan(&id)
	require.Error(t, err)
	assert.True(t, IsNoRows(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCommitsAndRollsBack(t *testing.T) {
	database, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM competitions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	err := database.Transaction(ctx, func(tx Transaction) error {
		_, err := tx.Exec(ctx, "DELETE FROM competitions WHERE id = ?", "c-1")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = database.Transaction(ctx, func(tx Transaction) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionQueryRowKeepsNoRows(t *testing.T) {
	database, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM competitions").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()
	err := database.Transaction(ctx, func(tx Transaction) error {
		var id string
		err := tx.QueryRow(ctx, "SELECT id FROM competitions WHERE id = ? FOR UPDATE", "c-1").Scan(&id)
		assert.True(t, IsNoRows(err))
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
