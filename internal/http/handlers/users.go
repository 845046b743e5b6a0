package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/users-directory/internal/errors"
	"github.com/pribylovaa/users-directory/internal/service"
)

// CreateUser — POST /v1/users/.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	body, fields, err := readObject(w, r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	in, err := parseCreateUser(body, fields)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.Users.CreateUser(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusCreated, userFromModel(user))
}

// ListUsers — GET /v1/users/?offset=&limit=.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	// 0 — размер страницы по умолчанию из конфигурации сервиса.
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if r.URL.Query().Has("limit") && limit < 1 {
		apierrors.WriteError(w, r, invalidArgument("limit must be >= 1"))
		return
	}

	users, err := h.Users.ListUsers(r.Context(), service.ListUsersInput{Offset: offset, Limit: limit})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, usersFromModels(users))
}

// GetUser — GET /v1/users/{id}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.Users.UserByID(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, userFromModel(user))
}

// UpdateUser — PUT /v1/users/{id}, тело: поле -> новое значение.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	_, fields, err := readObject(w, r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	in, err := parseUpdateUser(id, fields)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.Users.UpdateUser(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, userFromModel(user))
}

// DeleteUser — DELETE /v1/users/{id}, в ответе последнее состояние записи.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.Users.DeleteUser(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, userFromModel(user))
}

// FindMatches — GET /v1/users/{id}/matches?based_on=.
func (h *Handlers) FindMatches(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	matches, err := h.Users.FindMatches(r.Context(), id, r.URL.Query().Get("based_on"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, usersFromModels(matches))
}
