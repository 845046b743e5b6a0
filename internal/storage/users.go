// storage содержит контракты слоя хранилищ сервиса пользователей.
//
// Реализации:
//   - postgres — основное хранилище (pgxpool);
//   - sqlite — встраиваемое хранилище для локального запуска и тестов;
//   - mongo — документное хранилище;
//   - cache.Users — read-through кэш в Redis поверх любой из них.
package storage

import (
	"context"
	"errors"

	"github.com/pribylovaa/users-directory/internal/models"
)

var (
	// ErrNotFound — пользователь не найден.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности email.
	ErrAlreadyExists = errors.New("already exists")
)

// UserUpdate — частичный апдейт пользователя.
// Только непустые указатели попадают в БД.
type UserUpdate struct {
	Name      *string
	Age       *int
	Gender    *string
	Email     *string
	City      *string
	Interests *[]string
}

// Empty сообщает, что апдейт не содержит ни одного поля.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Age == nil && u.Gender == nil &&
		u.Email == nil && u.City == nil && u.Interests == nil
}

// Users — контракт репозитория пользователей.
type Users interface {
	// CreateUser вставляет пользователя, ID назначает хранилище.
	// При занятом email возвращает ErrAlreadyExists.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	// UserByID возвращает пользователя по ID или ErrNotFound.
	UserByID(ctx context.Context, id int64) (*models.User, error)
	// UserByEmail возвращает пользователя по email или ErrNotFound.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// ListUsers возвращает страницу пользователей в порядке возрастания ID.
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, error)
	// UpdateUser атомарно применяет update. Пустой update возвращает текущую запись.
	// Ошибки: ErrNotFound, ErrAlreadyExists (email занят другим пользователем).
	UpdateUser(ctx context.Context, id int64, update UserUpdate) (*models.User, error)
	// DeleteUser удаляет пользователя и возвращает его последнее состояние.
	DeleteUser(ctx context.Context, id int64) (*models.User, error)
	// UsersByCity возвращает пользователей из city, кроме excludeID, по возрастанию ID.
	UsersByCity(ctx context.Context, city string, excludeID int64) ([]models.User, error)
}

// UsersStorage — верхнеуровневый интерфейс хранилища пользователей.
type UsersStorage interface {
	Users
	Close() error
}
