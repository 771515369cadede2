package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMysqlStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return NewMysqlStoreFromDB(sqlx.NewDb(db, "mysql")), mock
}

func TestMysqlStore_Finish(t *testing.T) {
	t.Parallel()
	s, mock := fakeMysqlStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE playback_entries SET is_active = ?, finished_at = ? WHERE item_id = ? AND is_active = ?")).
		WithArgs(false, int64(2000), "abc", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.Finish(context.Background(), "abc", 2000))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMysqlStore_ActiveWhenIdle(t *testing.T) {
	t.Parallel()
	s, mock := fakeMysqlStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM playback_entries WHERE is_active = ? ORDER BY started_at DESC LIMIT 1")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"playback_id", "id"}))

	active, err := s.Active(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMysqlStore_History(t *testing.T) {
	t.Parallel()
	s, mock := fakeMysqlStore(t)

	rows := sqlmock.NewRows([]string{"playback_id", "id", "source_ref", "url", "title", "thumbnail_url", "dominant_colours", "votes", "created_at", "started_at", "finished_at", "is_active"}).
		AddRow(2, "b", "youtube:bbbbbbbbbbb", "https://youtu.be/bbbbbbbbbbb", "bleh", "", "", 2, 2, 3000, 4000, false).
		AddRow(1, "a", "youtube:aaaaaaaaaaa", "https://youtu.be/aaaaaaaaaaa", "blah", "", "", 0, 1, 1000, 2000, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM playback_entries WHERE is_active = ? ORDER BY finished_at DESC, id DESC LIMIT ?")).
		WithArgs(false, int64(7)).
		WillReturnRows(rows)

	history, err := s.History(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "b", history[0].ID)
	assert.Equal(t, int64(2), history[0].PlaybackID)
	assert.Equal(t, int64(4000), history[0].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
