// handlers переводит HTTP-запросы /v1/users в вызовы сервисного слоя,
// а результаты и ошибки — в JSON-конверт internal/errors.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/service"
)

// maxBodyBytes — предел размера тела запроса.
const maxBodyBytes = 1 << 20

// UsersService — то, что хендлерам нужно от сервисного слоя.
type UsersService interface {
	CreateUser(ctx context.Context, input service.CreateUserInput) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, input service.ListUsersInput) ([]models.User, error)
	UpdateUser(ctx context.Context, input service.UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) (*models.User, error)
	FindMatches(ctx context.Context, id int64, criterion string) ([]models.User, error)
}

// Handlers агрегирует зависимости.
type Handlers struct {
	Users UsersService
}

func New(users UsersService) *Handlers {
	return &Handlers{Users: users}
}

// invalidArgument — локальная ошибка разбора запроса -> 400 с сообщением.
func invalidArgument(msg string) error {
	return service.NewError(service.ErrInvalidArgument, msg)
}

// userID читает {id} из пути. Нецелое значение -> 400; несуществующий
// (в том числе неположительный) id решает сервисный слой -> 404.
func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, invalidArgument("invalid user id")
	}

	return id, nil
}

// queryInt читает необязательный целочисленный query-параметр.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidArgument(fmt.Sprintf("%s must be an integer", name))
	}

	return v, nil
}

// readObject читает тело (с ограничением размера) как JSON-объект.
// Возвращает сырые байты и значения по ключам.
func readObject(w http.ResponseWriter, r *http.Request) ([]byte, map[string]json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, invalidArgument("request body too large")
		}

		return nil, nil, invalidArgument("failed to read request body")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, nil, invalidArgument("malformed JSON body")
	}

	return body, fields, nil
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(body []byte, value any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return decodeError(err)
	}

	return nil
}

// decodeError переводит ошибку encoding/json в сообщение для клиента.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return invalidArgument(fmt.Sprintf("invalid type for field %q", typeErr.Field))
	}

	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		return invalidArgument(strings.TrimPrefix(msg, "json: "))
	}

	return invalidArgument("malformed JSON body")
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
