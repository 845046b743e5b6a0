package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/storage"
	"github.com/pribylovaa/users-directory/internal/validation"
	"github.com/pribylovaa/users-directory/pkg/log"
	"github.com/pribylovaa/users-directory/pkg/redact"
)

// Сообщения для клиента.
const (
	msgMissingKeys    = "missing or empty keys"
	msgInvalidEmail   = "invalid email format"
	msgNegativeAge    = "age must be non-negative"
	msgAgeOutOfRange  = "age is out of range"
	msgEmptyInterest  = "interests must not contain empty values"
	msgNotFound       = "user not found"
	msgInternal       = "internal error"
	msgNoCriterion    = "based_on is required"
	msgInvalidOffset  = "offset must be >= 0"
	msgInvalidLimit   = "limit must be >= 1"
	fmtLimitTooLarge  = "limit must be <= %d"
	fmtAlreadyExists  = "user with email %s already exists"
	fmtBadCriterion   = "unsupported criterion %q"
	fmtEmptyUpdateKey = "field %q must not be empty"
)

// CriterionCity — единственный поддерживаемый критерий FindMatches.
const CriterionCity = "city"

// Входные структуры сервисного слоя.
type CreateUserInput struct {
	Name      string
	Age       int
	Gender    string
	Email     string
	City      string
	Interests []string
}

// ListUsersInput — параметры страницы. Limit == 0 означает размер по умолчанию.
type ListUsersInput struct {
	Offset int
	Limit  int
}

// UpdateUserInput — частичный апдейт: nil-поля не меняются.
type UpdateUserInput struct {
	ID        int64
	Name      *string
	Age       *int
	Gender    *string
	Email     *string
	City      *string
	Interests *[]string
}

func invalid(op, msg string) error {
	return fmt.Errorf("%s: %w", op, NewError(ErrInvalidArgument, msg))
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, NewError(ErrNotFound, msgNotFound))
}

func alreadyExists(op, email string) error {
	return fmt.Errorf("%s: %w", op, NewError(ErrAlreadyExists, fmt.Sprintf(fmtAlreadyExists, email)))
}

// internal скрывает причину от клиента, но сохраняет отмену/дедлайн
// контекста в цепочке, чтобы транспорт мог ответить 499/504.
func internal(op string, cause error) error {
	e := NewError(ErrInternal, msgInternal)

	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, e, context.DeadlineExceeded)
	case errors.Is(cause, context.Canceled):
		return fmt.Errorf("%s: %w: %w", op, e, context.Canceled)
	default:
		return fmt.Errorf("%s: %w", op, e)
	}
}

// ageError возвращает сообщение для недопустимого возраста или "".
// Верхняя граница — int32 (колонка age в postgres — INTEGER), одинаково для всех хранилищ.
func ageError(age int) string {
	switch {
	case age < 0:
		return msgNegativeAge
	case age > math.MaxInt32:
		return msgAgeOutOfRange
	default:
		return ""
	}
}

// normalizeInterests обрезает пробелы и запрещает пустые элементы.
func normalizeInterests(in []string) ([]string, bool) {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, false
		}

		out = append(out, v)
	}

	return out, true
}

// CreateUser создаёт нового пользователя.
//
// Валидация:
//   - name, gender, email, city обязательны (после TrimSpace), interests — непустой список;
//   - 0 <= age <= MaxInt32;
//   - email синтаксически корректен (validation.Email).
//
// Поведение:
//   - email занят (предпроверка или уникальный индекс хранилища) -> ErrAlreadyExists;
//   - иные ошибки стораджа, включая саму предпроверку -> ErrInternal.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	const op = "service/users/CreateUser"

	input.Name = strings.TrimSpace(input.Name)
	input.Gender = strings.TrimSpace(input.Gender)
	input.Email = strings.TrimSpace(input.Email)
	input.City = strings.TrimSpace(input.City)

	lg := log.From(ctx).With("op", op, "email", redact.Email(input.Email))

	if input.Name == "" || input.Gender == "" || input.Email == "" || input.City == "" || len(input.Interests) == 0 {
		lg.Warn("invalid argument: missing or empty keys")

		return nil, invalid(op, msgMissingKeys)
	}

	interests, ok := normalizeInterests(input.Interests)
	if !ok {
		lg.Warn("invalid argument: empty interest")

		return nil, invalid(op, msgEmptyInterest)
	}

	if msg := ageError(input.Age); msg != "" {
		lg.Warn("invalid argument: bad age", "age", input.Age)

		return nil, invalid(op, msg)
	}

	if !validation.Email(input.Email) {
		lg.Warn("invalid argument: bad email")

		return nil, invalid(op, msgInvalidEmail)
	}

	_, err := s.usersStorage.UserByEmail(ctx, input.Email)
	switch {
	case err == nil:
		lg.Warn("user already exists")

		return nil, alreadyExists(op, input.Email)
	case !errors.Is(err, storage.ErrNotFound):
		lg.Error("storage error on UserByEmail", "err", err)

		return nil, internal(op, err)
	}

	user := &models.User{
		Name:      input.Name,
		Age:       input.Age,
		Gender:    input.Gender,
		Email:     input.Email,
		City:      input.City,
		Interests: interests,
	}

	result, err := s.usersStorage.CreateUser(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			lg.Warn("user already exists (unique index)")

			return nil, alreadyExists(op, input.Email)
		default:
			lg.Error("storage error", "err", err)

			return nil, internal(op, err)
		}
	}

	lg.Info("user created", "user_id", result.ID)

	return result, nil
}

// UserByID возвращает пользователя по идентификатору.
//
// Поведение:
//   - при отсутствии записи (в том числе id <= 0, такие id не выдаются) возвращает ErrNotFound;
//   - ошибки стораджа/БД/контекста маппятся в ErrInternal.
func (s *Service) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "service/users/UserByID"

	lg := log.From(ctx).With("op", op, "user_id", id)

	if id <= 0 {
		lg.Warn("user not found: non-positive user_id")

		return nil, notFound(op)
	}

	result, err := s.usersStorage.UserByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("user not found")

			return nil, notFound(op)
		default:
			lg.Error("storage error on UserByID", "err", err)

			return nil, internal(op, err)
		}
	}

	return result, nil
}

// ListUsers возвращает страницу пользователей по возрастанию id.
// Limit == 0 заменяется размером по умолчанию. Если задан limits.max,
// больший limit отклоняется: страница не обрезается молча.
func (s *Service) ListUsers(ctx context.Context, input ListUsersInput) ([]models.User, error) {
	const op = "service/users/ListUsers"

	lg := log.From(ctx).With("op", op, "offset", input.Offset, "limit", input.Limit)

	if input.Offset < 0 {
		lg.Warn("invalid argument: negative offset")

		return nil, invalid(op, msgInvalidOffset)
	}

	if input.Limit < 0 {
		lg.Warn("invalid argument: negative limit")

		return nil, invalid(op, msgInvalidLimit)
	}

	defLimit, maxLimit := s.pageLimits()
	limit := input.Limit
	if limit == 0 {
		limit = defLimit
	}

	if maxLimit > 0 && limit > maxLimit {
		lg.Warn("invalid argument: limit above max", "max", maxLimit)

		return nil, invalid(op, fmt.Sprintf(fmtLimitTooLarge, maxLimit))
	}

	users, err := s.usersStorage.ListUsers(ctx, input.Offset, limit)
	if err != nil {
		lg.Error("storage error on ListUsers", "err", err)

		return nil, internal(op, err)
	}

	if users == nil {
		users = []models.User{}
	}

	return users, nil
}

// UpdateUser выполняет частичное обновление пользователя.
//
// Правила:
//   - обновляются только переданные (non-nil) поля;
//   - каждое значение проверяется так же, как при создании;
//   - новый email, занятый другим пользователем -> ErrAlreadyExists;
//   - пустой апдейт возвращает текущее состояние записи.
//
// Хранилище применяет апдейт атомарно, ошибка не оставляет запись изменённой наполовину.
func (s *Service) UpdateUser(ctx context.Context, input UpdateUserInput) (*models.User, error) {
	const op = "service/users/UpdateUser"

	lg := log.From(ctx).With("op", op, "user_id", input.ID)

	if input.ID <= 0 {
		lg.Warn("user not found: non-positive user_id")

		return nil, notFound(op)
	}

	upd := storage.UserUpdate{}

	text := func(name string, v *string) (*string, error) {
		if v == nil {
			return nil, nil
		}

		t := strings.TrimSpace(*v)
		if t == "" {
			lg.Warn("invalid argument: empty field", "field", name)

			return nil, invalid(op, fmt.Sprintf(fmtEmptyUpdateKey, name))
		}

		return &t, nil
	}

	var err error
	if upd.Name, err = text("name", input.Name); err != nil {
		return nil, err
	}

	if upd.Gender, err = text("gender", input.Gender); err != nil {
		return nil, err
	}

	if upd.City, err = text("city", input.City); err != nil {
		return nil, err
	}

	if upd.Email, err = text("email", input.Email); err != nil {
		return nil, err
	}

	if input.Age != nil {
		if msg := ageError(*input.Age); msg != "" {
			lg.Warn("invalid argument: bad age", "age", *input.Age)

			return nil, invalid(op, msg)
		}

		age := *input.Age
		upd.Age = &age
	}

	if input.Interests != nil {
		if len(*input.Interests) == 0 {
			lg.Warn("invalid argument: empty interests")

			return nil, invalid(op, fmt.Sprintf(fmtEmptyUpdateKey, "interests"))
		}

		interests, ok := normalizeInterests(*input.Interests)
		if !ok {
			lg.Warn("invalid argument: empty interest")

			return nil, invalid(op, msgEmptyInterest)
		}

		upd.Interests = &interests
	}

	if upd.Email != nil {
		email := *upd.Email
		lg = lg.With("email", redact.Email(email))

		if !validation.Email(email) {
			lg.Warn("invalid argument: bad email")

			return nil, invalid(op, msgInvalidEmail)
		}

		owner, err := s.usersStorage.UserByEmail(ctx, email)
		switch {
		case err == nil && owner.ID != input.ID:
			lg.Warn("email is taken", "owner_id", owner.ID)

			return nil, alreadyExists(op, email)
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			lg.Error("storage error on UserByEmail", "err", err)

			return nil, internal(op, err)
		}
	}

	result, err := s.usersStorage.UpdateUser(ctx, input.ID, upd)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("user not found")

			return nil, notFound(op)
		case errors.Is(err, storage.ErrAlreadyExists):
			lg.Warn("email is taken (unique index)")

			email := ""
			if upd.Email != nil {
				email = *upd.Email
			}

			return nil, alreadyExists(op, email)
		default:
			lg.Error("storage error on UpdateUser", "err", err)

			return nil, internal(op, err)
		}
	}

	return result, nil
}

// DeleteUser удаляет пользователя и возвращает его последнее состояние.
func (s *Service) DeleteUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "service/users/DeleteUser"

	lg := log.From(ctx).With("op", op, "user_id", id)

	if id <= 0 {
		lg.Warn("user not found: non-positive user_id")

		return nil, notFound(op)
	}

	result, err := s.usersStorage.DeleteUser(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("user not found")

			return nil, notFound(op)
		default:
			lg.Error("storage error on DeleteUser", "err", err)

			return nil, internal(op, err)
		}
	}

	lg.Info("user deleted")

	return result, nil
}

// FindMatches возвращает других пользователей, совпадающих с id по критерию.
//
// Поддерживается только criterion "city" (без учёта регистра и пробелов):
// все пользователи того же города, кроме самого id, по возрастанию id.
// Иной критерий -> ErrInvalidArgument, неизвестный id -> ErrNotFound.
func (s *Service) FindMatches(ctx context.Context, id int64, criterion string) ([]models.User, error) {
	const op = "service/users/FindMatches"

	criterion = strings.ToLower(strings.TrimSpace(criterion))
	lg := log.From(ctx).With("op", op, "user_id", id, "criterion", criterion)

	if id <= 0 {
		lg.Warn("user not found: non-positive user_id")

		return nil, notFound(op)
	}

	switch criterion {
	case "":
		lg.Warn("invalid argument: empty criterion")

		return nil, invalid(op, msgNoCriterion)
	case CriterionCity:
	default:
		lg.Warn("invalid argument: unsupported criterion")

		return nil, invalid(op, fmt.Sprintf(fmtBadCriterion, criterion))
	}

	user, err := s.usersStorage.UserByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("user not found")

			return nil, notFound(op)
		default:
			lg.Error("storage error on UserByID", "err", err)

			return nil, internal(op, err)
		}
	}

	matches, err := s.usersStorage.UsersByCity(ctx, user.City, user.ID)
	if err != nil {
		lg.Error("storage error on UsersByCity", "err", err)

		return nil, internal(op, err)
	}

	if matches == nil {
		matches = []models.User{}
	}

	return matches, nil
}
