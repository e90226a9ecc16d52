package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "yapi2zod.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_Cookies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTemp(t)

	got, err := s.LoadCookie(ctx, "https://yapi.example.com")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.SaveCookie(ctx, "https://yapi.example.com", "_yapi_token=a"))
	require.NoError(t, s.SaveCookie(ctx, "https://yapi.example.com", "_yapi_token=b"))
	require.NoError(t, s.SaveCookie(ctx, "https://other.example.com", "_yapi_token=c"))

	got, err = s.LoadCookie(ctx, "https://yapi.example.com")
	require.NoError(t, err)
	assert.Equal(t, "_yapi_token=b", got)
}

func TestSQLite_History(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTemp(t)

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	runID, err := s.RecordRun(ctx, "yapi")
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err)

	for i, status := range []string{StatusWritten, StatusSkipped, StatusFailed} {
		require.NoError(t, s.RecordEntry(ctx, Entry{
			RunID:       runID,
			InterfaceID: int64(100 + i),
			Path:        "/user/get_info",
			File:        "get-info.ts",
			Status:      status,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(102), recent[0].InterfaceID)
	assert.Equal(t, StatusFailed, recent[0].Status)
	assert.Equal(t, base.Add(2*time.Minute), recent[0].CreatedAt)
	assert.Equal(t, int64(101), recent[1].InterfaceID)
	assert.Equal(t, runID, recent[1].RunID)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveCookie(ctx, "srv", "k=v"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadCookie(ctx, "srv")
	require.NoError(t, err)
	assert.Equal(t, "k=v", got)
}

func newMock(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newWithDB(db), mock
}

func TestSQLite_ErrorsAreWrapped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO sessions").WillReturnError(boom)
	err := s.SaveCookie(ctx, "srv", "k=v")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "store: save cookie")

	mock.ExpectQuery("SELECT cookie FROM sessions").WillReturnError(boom)
	_, err = s.LoadCookie(ctx, "srv")
	require.ErrorIs(t, err, boom)

	mock.ExpectExec("INSERT INTO runs").WillReturnError(boom)
	_, err = s.RecordRun(ctx, "yapi")
	require.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT run_id").WillReturnRows(
		sqlmock.NewRows([]string{"run_id", "interface_id", "path", "file", "status", "error", "created_at"}).
			AddRow("r", "not-a-number", "/p", "p.ts", StatusWritten, "", int64(0)))
	_, err = s.Recent(ctx, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: recent")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_InitFailure(t *testing.T) {
	t.Parallel()
	s, mock := newMock(t)
	mock.ExpectExec("PRAGMA journal_mode").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").WillReturnError(errors.New("read-only"))

	err := s.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: init")
	require.NoError(t, mock.ExpectationsWereMet())
}
