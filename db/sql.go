package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/marcus-crane/crowdqueue/models"
)

const itemColumns = "id, source_ref, url, title, thumbnail_url, dominant_colours, votes, created_at"

// SQLStore keeps candidates in queue_items and promotions in
// playback_entries. Queries are written with ? placeholders and rebound for
// the connected driver.
type SQLStore struct {
	DB *sqlx.DB
	// dialect selects the goose dialect and migration directory
	dialect goose.Dialect
}

func (s *SQLStore) ApplyMigrations(migrations embed.FS) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect(string(s.dialect)); err != nil {
		return err
	}

	if err := goose.Up(s.DB.DB, migrationDir(s.dialect)); err != nil {
		return err
	}

	return nil
}

func migrationDir(dialect goose.Dialect) string {
	switch dialect {
	case goose.DialectPostgres:
		return "postgres"
	case goose.DialectMySQL:
		return "mysql"
	}
	return "sqlite"
}

func (s *SQLStore) Insert(ctx context.Context, item models.Item) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(
		"INSERT INTO queue_items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		item.ID,
		item.SourceRef,
		item.URL,
		item.Title,
		item.Thumbnail,
		item.DominantColours,
		item.Votes,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (s *SQLStore) Increment(ctx context.Context, id string) (int, error) {
	var votes int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE queue_items SET votes = votes + 1 WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("failed to increment votes: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return tx.GetContext(ctx, &votes, tx.Rebind("SELECT votes FROM queue_items WHERE id = ?"), id)
	})
	return votes, err
}

func (s *SQLStore) Remove(ctx context.Context, id string) (models.Item, error) {
	var item models.Item
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = deleteItem(ctx, tx, id)
		return err
	})
	return item, err
}

func (s *SQLStore) Scan(ctx context.Context) ([]models.Item, error) {
	items := []models.Item{}
	if err := s.DB.SelectContext(ctx, &items, "SELECT "+itemColumns+" FROM queue_items"); err != nil {
		return items, fmt.Errorf("failed to scan items: %w", err)
	}
	return items, nil
}

func (s *SQLStore) UpdateMetadata(ctx context.Context, id string, meta models.Metadata) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(
			"UPDATE queue_items SET title = ?, thumbnail_url = ?, dominant_colours = ? WHERE id = ?"),
			meta.Title, meta.Thumbnail, meta.DominantColours, id)
		if err != nil {
			return fmt.Errorf("failed to update item metadata: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		// The item may already be playing
		res, err = tx.ExecContext(ctx, tx.Rebind(
			"UPDATE playback_entries SET title = ?, thumbnail_url = ?, dominant_colours = ? WHERE item_id = ? AND is_active = ?"),
			meta.Title, meta.Thumbnail, meta.DominantColours, id, true)
		if err != nil {
			return fmt.Errorf("failed to update playback metadata: %w", err)
		}
		return requireRow(res)
	})
}

func (s *SQLStore) Promote(ctx context.Context, id string, startedAt int64) (models.Item, error) {
	var item models.Item
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = deleteItem(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
		  INSERT INTO playback_entries
		  (item_id, source_ref, url, title, thumbnail_url, dominant_colours, votes, created_at, started_at, finished_at, is_active)
		  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			item.ID, item.SourceRef, item.URL, item.Title, item.Thumbnail, item.DominantColours,
			item.Votes, item.CreatedAt, startedAt, 0, true)
		if err != nil {
			return fmt.Errorf("failed to insert playback entry: %w", err)
		}
		return nil
	})
	return item, err
}

func (s *SQLStore) Finish(ctx context.Context, id string, finishedAt int64) error {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(
		"UPDATE playback_entries SET is_active = ?, finished_at = ? WHERE item_id = ? AND is_active = ?"),
		false, finishedAt, id, true)
	if err != nil {
		return fmt.Errorf("failed to finish playback entry: %w", err)
	}
	return requireRow(res)
}

const playbackColumns = "id AS playback_id, item_id AS id, source_ref, url, title, thumbnail_url, dominant_colours, votes, created_at, started_at, finished_at, is_active"

func (s *SQLStore) Active(ctx context.Context) (*models.PlaybackEntry, error) {
	var entry models.PlaybackEntry
	err := s.DB.GetContext(ctx, &entry, s.DB.Rebind(
		"SELECT "+playbackColumns+" FROM playback_entries WHERE is_active = ? ORDER BY started_at DESC LIMIT 1"), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active playback: %w", err)
	}
	return &entry, nil
}

func (s *SQLStore) History(ctx context.Context, limit int) ([]models.PlaybackEntry, error) {
	results := []models.PlaybackEntry{}

	if limit <= 0 {
		return results, fmt.Errorf("must request at least one historical item")
	}

	err := s.DB.SelectContext(ctx, &results, s.DB.Rebind(
		"SELECT "+playbackColumns+" FROM playback_entries WHERE is_active = ? ORDER BY finished_at DESC, id DESC LIMIT ?"), false, limit)
	return results, err
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	var committed bool
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func deleteItem(ctx context.Context, tx *sqlx.Tx, id string) (models.Item, error) {
	var item models.Item
	err := tx.GetContext(ctx, &item, tx.Rebind("SELECT "+itemColumns+" FROM queue_items WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return item, ErrNotFound
	}
	if err != nil {
		return item, fmt.Errorf("failed to load item: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM queue_items WHERE id = ?"), id)
	if err != nil {
		return item, fmt.Errorf("failed to delete item: %w", err)
	}
	// A concurrent remover may have won between the read and the delete
	if err := requireRow(res); err != nil {
		return models.Item{}, err
	}
	return item, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
