package db

import (
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

func NewMysqlStore(dsn string) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	// goose needs multi statement support for its migration files
	cfg.MultiStatements = true
	db, err := sqlx.Connect("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	return NewMysqlStoreFromDB(db), nil
}

func NewMysqlStoreFromDB(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		DB:      db,
		dialect: goose.DialectMySQL,
	}
}
