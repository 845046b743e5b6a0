// sqlite предоставляет встраиваемую реализацию storage.UsersStorage
// на базе modernc.org/sqlite (без cgo). Подходит для локального запуска и тестов.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pribylovaa/users-directory/internal/storage"

	_ "modernc.org/sqlite" // sqlite driver
)

// schema создаётся при открытии. AUTOINCREMENT гарантирует,
// что id удалённых пользователей не выдаются повторно.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		name      TEXT    NOT NULL CHECK (name <> ''),
		age       INTEGER NOT NULL CHECK (age >= 0),
		gender    TEXT    NOT NULL,
		email     TEXT    NOT NULL UNIQUE,
		city      TEXT    NOT NULL,
		interests TEXT    NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS users_city_idx ON users (city, id)`,
}

var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
}

type UsersStorage struct {
	db *sql.DB
}

// New открывает (или создаёт) файл БД по path и применяет схему.
func New(ctx context.Context, path string) (*UsersStorage, error) {
	const op = "storage/sqlite/New"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Одно соединение на файл БД.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	for _, q := range append(append([]string{}, pragmas...), schema...) {
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &UsersStorage{db: db}, nil
}

// Close закрывает соединение с файлом БД.
func (s *UsersStorage) Close() error {
	return s.db.Close()
}

var _ storage.UsersStorage = (*UsersStorage)(nil)
