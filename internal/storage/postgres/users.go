package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/storage"
)

// userColumns — единый список колонок таблицы users,
// используемый в SELECT/RETURNING, чтобы гарантировать одинаковый порядок сканирования.
const userColumns = `id, name, age, gender, email, city, interests`

// scanUser сканирует одну строку в доменную модель.
// interests никогда не возвращается как nil.
func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User

	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Age,
		&user.Gender,
		&user.Email,
		&user.City,
		&user.Interests,
	); err != nil {
		return nil, err
	}

	if user.Interests == nil {
		user.Interests = []string{}
	}

	return &user, nil
}

// isUniqueViolation сообщает, что err — конфликт UNIQUE (email).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// queryUsers выполняет запрос, возвращающий набор строк users.
func (s *UsersStorage) queryUsers(ctx context.Context, op, q string, args ...any) ([]models.User, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return users, nil
}

// CreateUser вставляет нового пользователя, id выдаёт BIGSERIAL.
// Ошибки: storage.ErrAlreadyExists при конфликте email, иные — как есть.
func (s *UsersStorage) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage/postgres/users/CreateUser"

	q := `
	INSERT INTO users (name, age, gender, email, city, interests)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + userColumns

	interests := user.Interests
	if interests == nil {
		interests = []string{}
	}

	row := s.db.QueryRow(ctx, q,
		user.Name,
		user.Age,
		user.Gender,
		user.Email,
		user.City,
		interests,
	)

	result, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// UserByID возвращает пользователя по id.
// Ошибки: storage.ErrNotFound, либо ошибка выполнения запроса.
func (s *UsersStorage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage/postgres/users/UserByID"

	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	result, err := scanUser(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// UserByEmail возвращает пользователя по email (точное совпадение).
func (s *UsersStorage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage/postgres/users/UserByEmail"

	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	result, err := scanUser(s.db.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// ListUsers возвращает страницу пользователей, упорядоченную по id.
func (s *UsersStorage) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	const op = "storage/postgres/users/ListUsers"

	q := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	return s.queryUsers(ctx, op, q, limit, offset)
}

// UpdateUser выполняет частичный апдейт одним UPDATE ... RETURNING,
// поэтому запись не может остаться обновлённой наполовину.
// Пустой апдейт возвращает текущее состояние записи.
// Ошибки: storage.ErrNotFound, storage.ErrAlreadyExists (email занят).
func (s *UsersStorage) UpdateUser(ctx context.Context, id int64, update storage.UserUpdate) (*models.User, error) {
	const op = "storage/postgres/users/UpdateUser"

	if update.Empty() {
		return s.UserByID(ctx, id)
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		add("name", *update.Name)
	}

	if update.Age != nil {
		add("age", *update.Age)
	}

	if update.Gender != nil {
		add("gender", *update.Gender)
	}

	if update.Email != nil {
		add("email", *update.Email)
	}

	if update.City != nil {
		add("city", *update.City)
	}

	if update.Interests != nil {
		interests := *update.Interests
		if interests == nil {
			interests = []string{}
		}

		add("interests", interests)
	}

	args = append(args, id)

	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	result, err := scanUser(s.db.QueryRow(ctx, q, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		case isUniqueViolation(err):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return result, nil
}

// DeleteUser удаляет пользователя и возвращает удалённую строку.
// Ошибки: storage.ErrNotFound при отсутствии записи.
func (s *UsersStorage) DeleteUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage/postgres/users/DeleteUser"

	q := `DELETE FROM users WHERE id = $1 RETURNING ` + userColumns

	result, err := scanUser(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// UsersByCity возвращает всех пользователей из city, кроме excludeID.
func (s *UsersStorage) UsersByCity(ctx context.Context, city string, excludeID int64) ([]models.User, error) {
	const op = "storage/postgres/users/UsersByCity"

	q := `SELECT ` + userColumns + ` FROM users WHERE city = $1 AND id <> $2 ORDER BY id`

	return s.queryUsers(ctx, op, q, city, excludeID)
}
