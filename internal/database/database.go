package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"prokat/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB stores full-fidelity snapshots of the catalog in SQLite.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	// Создаем директорию для БД, если её нет
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// один писатель, и :memory: остается одной базой
	db.SetMaxOpenConns(1)

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Catalog database initialized")
	return &DB{DB: db, path: path, logger: logger}, nil
}

func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rental_items (
            position INTEGER PRIMARY KEY,
            item_type TEXT NOT NULL,
            name TEXT NOT NULL,
            price REAL NOT NULL,
            details TEXT NOT NULL,
            availability BOOLEAN NOT NULL DEFAULT 1,
            return_date TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS item_annotations (
            item_position INTEGER NOT NULL REFERENCES rental_items(position) ON DELETE CASCADE,
            seq INTEGER NOT NULL,
            kind TEXT NOT NULL,
            text TEXT NOT NULL,
            PRIMARY KEY (item_position, seq)
        )`,
		`CREATE TABLE IF NOT EXISTS snapshot_meta (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            saved_at DATETIME NOT NULL,
            item_count INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_rental_items_name ON rental_items(name COLLATE NOCASE)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SaveSnapshot replaces the stored catalog with items in one transaction.
func (db *DB) SaveSnapshot(ctx context.Context, items []models.RentalItem) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_annotations`); err != nil {
		return fmt.Errorf("clear annotations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rental_items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx, `
        INSERT INTO rental_items (position, item_type, name, price, details, availability, return_date)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer itemStmt.Close()

	noteStmt, err := tx.PrepareContext(ctx, `
        INSERT INTO item_annotations (item_position, seq, kind, text)
        VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer noteStmt.Close()

	for pos := range items {
		item := &items[pos]

		var returnDate sql.NullString
		if item.ReturnDate != nil {
			returnDate = sql.NullString{String: item.ReturnDate.Format(time.RFC3339Nano), Valid: true}
		}

		if _, err := itemStmt.ExecContext(ctx, pos, item.ItemType, item.Name, item.Price, item.Details, item.Availability, returnDate); err != nil {
			return fmt.Errorf("insert item %q: %w", item.Name, err)
		}

		for seq, note := range item.Annotations {
			if _, err := noteStmt.ExecContext(ctx, pos, seq, note.Kind, note.Text); err != nil {
				return fmt.Errorf("insert annotation for %q: %w", item.Name, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO snapshot_meta (id, saved_at, item_count) VALUES (1, ?, ?)
        ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at, item_count = excluded.item_count`,
		time.Now(), len(items),
	); err != nil {
		return fmt.Errorf("update snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	db.logger.Info().Int("count", len(items)).Msg("Catalog snapshot saved")
	return nil
}

// LoadSnapshot returns the stored catalog in its saved order.
func (db *DB) LoadSnapshot(ctx context.Context) ([]models.RentalItem, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT position, item_type, name, price, details, availability, return_date
        FROM rental_items
        ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make([]models.RentalItem, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var (
			pos        int64
			item       models.RentalItem
			returnDate sql.NullString
		)
		if err := rows.Scan(&pos, &item.ItemType, &item.Name, &item.Price, &item.Details, &item.Availability, &returnDate); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if returnDate.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, returnDate.String)
			if err != nil {
				return nil, fmt.Errorf("item %q return date: %w", item.Name, err)
			}
			local := parsed.In(time.Local)
			item.ReturnDate = &local
		}
		index[pos] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	notes, err := db.QueryContext(ctx, `
        SELECT item_position, kind, text
        FROM item_annotations
        ORDER BY item_position, seq`)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer notes.Close()

	for notes.Next() {
		var (
			pos  int64
			note models.Annotation
		)
		if err := notes.Scan(&pos, &note.Kind, &note.Text); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		if i, ok := index[pos]; ok {
			items[i].Annotations = append(items[i].Annotations, note)
		}
	}
	if err := notes.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// LastSnapshot reports when the stored snapshot was written.
func (db *DB) LastSnapshot(ctx context.Context) (time.Time, int, bool, error) {
	var (
		savedAt time.Time
		count   int
	)
	err := db.QueryRowContext(ctx, `SELECT saved_at, item_count FROM snapshot_meta WHERE id = 1`).Scan(&savedAt, &count)
	if err == sql.ErrNoRows {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, err
	}
	return savedAt, count, true, nil
}
