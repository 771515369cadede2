package db

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

var sqlitePragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
}

func NewSqliteStore(dsn string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, err
	}
	// Writes are serialised through a single connection so concurrent votes
	// queue up instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return NewSqliteStoreFromDB(db), nil
}

// NewSqliteStoreFromDB wraps an existing sqlite connection, such as an
// in-memory database opened by a test.
func NewSqliteStoreFromDB(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		DB:      db,
		dialect: goose.DialectSQLite3,
	}
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(sqlitePragmas, "&")
}
