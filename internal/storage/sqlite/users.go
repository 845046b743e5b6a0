package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/storage"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const userColumns = `id, name, age, gender, email, city, interests`

type scannable interface {
	Scan(dest ...any) error
}

// scanUser читает строку users; interests хранится как JSON-массив.
func scanUser(row scannable) (*models.User, error) {
	var (
		user      models.User
		interests string
	)

	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Age,
		&user.Gender,
		&user.Email,
		&user.City,
		&interests,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(interests), &user.Interests); err != nil {
		return nil, fmt.Errorf("decode interests: %w", err)
	}

	if user.Interests == nil {
		user.Interests = []string{}
	}

	return &user, nil
}

func encodeInterests(interests []string) (string, error) {
	if interests == nil {
		interests = []string{}
	}

	b, err := json.Marshal(interests)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// isUniqueViolation распознаёт нарушение UNIQUE(email).
func isUniqueViolation(err error) bool {
	var sErr *msqlite.Error
	if !errors.As(err, &sErr) {
		return false
	}

	if sErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}

	return sErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sErr.Error(), "UNIQUE")
}

func (s *UsersStorage) queryUsers(ctx context.Context, op, q string, args ...any) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
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

// queryUser выполняет запрос, возвращающий не более одной строки users.
func (s *UsersStorage) queryUser(ctx context.Context, op, q string, args ...any) (*models.User, error) {
	result, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		case isUniqueViolation(err):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return result, nil
}

// CreateUser вставляет пользователя; id выдаёт AUTOINCREMENT.
func (s *UsersStorage) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage/sqlite/users/CreateUser"

	interests, err := encodeInterests(user.Interests)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q := `
	INSERT INTO users (name, age, gender, email, city, interests)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING ` + userColumns

	return s.queryUser(ctx, op, q, user.Name, user.Age, user.Gender, user.Email, user.City, interests)
}

func (s *UsersStorage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage/sqlite/users/UserByID"

	return s.queryUser(ctx, op, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *UsersStorage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage/sqlite/users/UserByEmail"

	return s.queryUser(ctx, op, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *UsersStorage) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	const op = "storage/sqlite/users/ListUsers"

	return s.queryUsers(ctx, op, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

// UpdateUser применяет апдейт одним UPDATE ... RETURNING.
func (s *UsersStorage) UpdateUser(ctx context.Context, id int64, update storage.UserUpdate) (*models.User, error) {
	const op = "storage/sqlite/users/UpdateUser"

	if update.Empty() {
		return s.UserByID(ctx, id)
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
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
		interests, err := encodeInterests(*update.Interests)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		add("interests", interests)
	}

	args = append(args, id)

	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ? RETURNING ` + userColumns

	return s.queryUser(ctx, op, q, args...)
}

func (s *UsersStorage) DeleteUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage/sqlite/users/DeleteUser"

	return s.queryUser(ctx, op, `DELETE FROM users WHERE id = ? RETURNING `+userColumns, id)
}

func (s *UsersStorage) UsersByCity(ctx context.Context, city string, excludeID int64) ([]models.User, error) {
	const op = "storage/sqlite/users/UsersByCity"

	q := `SELECT ` + userColumns + ` FROM users WHERE city = ? AND id <> ? ORDER BY id`

	return s.queryUsers(ctx, op, q, city, excludeID)
}
