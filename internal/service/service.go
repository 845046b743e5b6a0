// service содержит бизнес-логику справочника пользователей:
// - валидация входов и уникальность email;
// - CRUD поверх storage.UsersStorage;
// - поиск совпадений по городу.
package service

import (
	"errors"

	"github.com/pribylovaa/users-directory/internal/config"
	"github.com/pribylovaa/users-directory/internal/storage"
)

var (
	// ErrInvalidArgument — некорректные входные данные.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound — пользователь не найден.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — email уже занят.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInternal — внутренняя ошибка сервиса (сбой хранилища).
	ErrInternal = errors.New("internal")
)

const defaultPageLimit = 10

// Error — ошибка сервиса с безопасным сообщением для клиента.
// Kind — один из sentinel-ов выше, доступен через errors.Is.
type Error struct {
	Kind    error
	Message string
}

// NewError собирает ошибку заданного вида с сообщением для клиента.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Service — описывает бизнес-логику справочника пользователей.
type Service struct {
	cfg          *config.Config
	usersStorage storage.UsersStorage
}

// New создает новый экземпляр Service.
func New(usersStorage storage.UsersStorage, cfg *config.Config) *Service {
	return &Service{
		usersStorage: usersStorage,
		cfg:          cfg,
	}
}

// pageLimits возвращает размер страницы по умолчанию и верхнюю границу.
// maxLimit == 0 — без ограничения.
func (s *Service) pageLimits() (int, int) {
	defLimit, maxLimit := defaultPageLimit, 0

	if s.cfg != nil {
		if s.cfg.Limits.Default > 0 {
			defLimit = s.cfg.Limits.Default
		}

		if s.cfg.Limits.Max > 0 {
			maxLimit = s.cfg.Limits.Max
		}
	}

	if maxLimit > 0 && defLimit > maxLimit {
		defLimit = maxLimit
	}

	return defLimit, maxLimit
}
