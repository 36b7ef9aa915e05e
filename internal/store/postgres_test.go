package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T, policy Policy) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgres(mock, policy), mock
}

func TestPostgresStore_PutFirstVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t, PolicySkipUnchanged)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content_hash, body FROM interpretations WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO interpretations`).
		WithArgs(pgxmock.AnyArg(), "e1", 1, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := s.Put(context.Background(), "e1", interp("e1", 0.8))
	require.NoError(t, err)
	assert.True(t, res.Appended)
	assert.Equal(t, 1, res.Interpretation.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutUnchangedSkips(t *testing.T) {
	s, mock := newMockPostgresStore(t, PolicySkipUnchanged)

	existing := interp("e1", 0.8)
	existing.Version = 4
	body, err := json.Marshal(existing)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content_hash, body FROM interpretations`).
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows([]string{"content_hash", "body"}).AddRow(existing.ContentHash(), body))
	mock.ExpectRollback()

	res, err := s.Put(context.Background(), "e1", interp("e1", 0.8))
	require.NoError(t, err)
	assert.False(t, res.Appended)
	assert.Equal(t, 4, res.Interpretation.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutNextVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t, PolicySkipUnchanged)

	existing := interp("e1", 0.8)
	existing.Version = 2
	body, err := json.Marshal(existing)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content_hash, body FROM interpretations`).
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows([]string{"content_hash", "body"}).AddRow(existing.ContentHash(), body))
	mock.ExpectExec(`INSERT INTO interpretations`).
		WithArgs(pgxmock.AnyArg(), "e1", 3, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := s.Put(context.Background(), "e1", interp("e1", 0.6))
	require.NoError(t, err)
	assert.True(t, res.Appended)
	assert.Equal(t, 3, res.Interpretation.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t, PolicySkipUnchanged)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content_hash, body FROM interpretations`).
		WithArgs("e1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO interpretations`).
		WithArgs(pgxmock.AnyArg(), "e1", 1, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	_, err := s.Put(context.Background(), "e1", interp("e1", 0.8))
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCurrent_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t, PolicySkipUnchanged)

	mock.ExpectQuery(`SELECT content_hash, body FROM interpretations`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCurrent(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t, PolicySkipUnchanged)

	rows := pgxmock.NewRows([]string{"body"})
	for v := 1; v <= 3; v++ {
		rec := interp("e1", float64(v)/10)
		rec.Version = v
		body, err := json.Marshal(rec)
		require.NoError(t, err)
		rows.AddRow(body)
	}
	mock.ExpectQuery(`SELECT body FROM interpretations WHERE event_id = \$1 ORDER BY version ASC`).
		WithArgs("e1").
		WillReturnRows(rows)

	hist, err := s.GetHistory(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	for i, h := range hist {
		assert.Equal(t, i+1, h.Version)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t, "")

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS interpretations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
