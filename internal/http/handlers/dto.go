package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/service"
)

// Поля пользователя в JSON.
const (
	fieldID        = "id"
	fieldName      = "name"
	fieldAge       = "age"
	fieldGender    = "gender"
	fieldEmail     = "email"
	fieldCity      = "city"
	fieldInterests = "interests"
)

// requiredKeys — ключи, обязательные при создании.
var requiredKeys = []string{fieldName, fieldAge, fieldGender, fieldEmail, fieldCity, fieldInterests}

// userResponse — представление пользователя в ответах.
type userResponse struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Age       int      `json:"age"`
	Gender    string   `json:"gender"`
	Email     string   `json:"email"`
	City      string   `json:"city"`
	Interests []string `json:"interests"`
}

func userFromModel(u *models.User) userResponse {
	interests := u.Interests
	if interests == nil {
		interests = []string{}
	}

	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Age:       u.Age,
		Gender:    u.Gender,
		Email:     u.Email,
		City:      u.City,
		Interests: interests,
	}
}

func usersFromModels(users []models.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, userFromModel(&users[i]))
	}

	return out
}

// createUserRequest — тело POST /v1/users/.
type createUserRequest struct {
	Name      string   `json:"name"`
	Age       int      `json:"age"`
	Gender    string   `json:"gender"`
	Email     string   `json:"email"`
	City      string   `json:"city"`
	Interests []string `json:"interests"`
}

// parseCreateUser проверяет наличие всех ключей (null считается отсутствием)
// и строго декодирует тело.
func parseCreateUser(body []byte, fields map[string]json.RawMessage) (service.CreateUserInput, error) {
	for _, key := range requiredKeys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			return service.CreateUserInput{}, invalidArgument("missing or empty keys")
		}
	}

	var req createUserRequest
	if err := decodeStrict(body, &req); err != nil {
		return service.CreateUserInput{}, err
	}

	return service.CreateUserInput{
		Name:      req.Name,
		Age:       req.Age,
		Gender:    req.Gender,
		Email:     req.Email,
		City:      req.City,
		Interests: req.Interests,
	}, nil
}

// parseUpdateUser разбирает тело PUT как набор поле -> новое значение.
// Неизвестные поля, id, null и значения неверного типа -> 400.
func parseUpdateUser(id int64, fields map[string]json.RawMessage) (service.UpdateUserInput, error) {
	in := service.UpdateUserInput{ID: id}

	for key, raw := range fields {
		if key == fieldID {
			return in, invalidArgument(`field "id" is immutable`)
		}

		if isNull(raw) {
			return in, invalidArgument(fmt.Sprintf("field %q must not be null", key))
		}

		var err error
		switch key {
		case fieldName:
			in.Name, err = decodeField[string](key, raw)
		case fieldAge:
			in.Age, err = decodeField[int](key, raw)
		case fieldGender:
			in.Gender, err = decodeField[string](key, raw)
		case fieldEmail:
			in.Email, err = decodeField[string](key, raw)
		case fieldCity:
			in.City, err = decodeField[string](key, raw)
		case fieldInterests:
			in.Interests, err = decodeField[[]string](key, raw)
		default:
			return in, invalidArgument(fmt.Sprintf("unknown field %q", key))
		}

		if err != nil {
			return in, err
		}
	}

	return in, nil
}

func decodeField[T any](key string, raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, invalidArgument(fmt.Sprintf("invalid type for field %q", key))
	}

	return &v, nil
}
