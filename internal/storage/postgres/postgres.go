// postgres предоставляет реализацию storage.UsersStorage на базе PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pribylovaa/users-directory/internal/storage"
	"github.com/pribylovaa/users-directory/migrations"
)

type UsersStorage struct {
	db *pgxpool.Pool
}

// New создает и инициализирует пул соединений к PostgreSQL.
func New(ctx context.Context, dbURL string) (*UsersStorage, error) {
	const op = "storage/postgres/New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &UsersStorage{db: db}, nil
}

// Migrate применяет встроенную схему. Схема идемпотентна (IF NOT EXISTS).
func (s *UsersStorage) Migrate(ctx context.Context) error {
	const op = "storage/postgres/Migrate"

	schema, err := migrations.FS.ReadFile(migrations.InitUsersUp)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.db.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает пул соединений.
// Должен вызываться при остановке приложения.
func (s *UsersStorage) Close() error {
	s.db.Close()
	return nil
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.UsersStorage = (*UsersStorage)(nil)
