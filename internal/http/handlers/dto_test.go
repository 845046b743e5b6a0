package handlers

import (
	"encoding/json"
	"testing"

	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/service"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &fields))
	return fields
}

func TestParseUpdateUser_AllFields(t *testing.T) {
	body := `{"name":"B","age":0,"gender":"M","email":"b@x.com","city":"Lyon","interests":["a","b"]}`

	in, err := parseUpdateUser(7, fieldsOf(t, body))
	require.NoError(t, err)

	require.Equal(t, int64(7), in.ID)
	require.Equal(t, "B", *in.Name)
	require.Equal(t, 0, *in.Age)
	require.Equal(t, "M", *in.Gender)
	require.Equal(t, "b@x.com", *in.Email)
	require.Equal(t, "Lyon", *in.City)
	require.Equal(t, []string{"a", "b"}, *in.Interests)
}

func TestParseUpdateUser_EmptyObject(t *testing.T) {
	in, err := parseUpdateUser(7, fieldsOf(t, `{}`))
	require.NoError(t, err)
	require.Equal(t, service.UpdateUserInput{ID: 7}, in)
}

func TestParseUpdateUser_Errors(t *testing.T) {
	tests := map[string]string{
		`{"id":1}`:            `field "id" is immutable`,
		`{"foo":1}`:           `unknown field "foo"`,
		`{"interests":"run"}`: `invalid type for field "interests"`,
		`{"age":1.5}`:         `invalid type for field "age"`,
		`{"email":null}`:      `field "email" must not be null`,
	}

	for body, msg := range tests {
		t.Run(body, func(t *testing.T) {
			_, err := parseUpdateUser(1, fieldsOf(t, body))
			require.ErrorIs(t, err, service.ErrInvalidArgument)
			require.EqualError(t, err, msg)
		})
	}
}

func TestParseCreateUser_RequiresAllKeys(t *testing.T) {
	body := `{"name":"A","age":1,"gender":"F","email":"a@x.com","city":"P","interests":["x"]}`

	in, err := parseCreateUser([]byte(body), fieldsOf(t, body))
	require.NoError(t, err)
	require.Equal(t, service.CreateUserInput{
		Name: "A", Age: 1, Gender: "F", Email: "a@x.com", City: "P", Interests: []string{"x"},
	}, in)

	for _, key := range requiredKeys {
		t.Run("without_"+key, func(t *testing.T) {
			fields := fieldsOf(t, body)
			delete(fields, key)

			_, err := parseCreateUser([]byte(body), fields)
			require.EqualError(t, err, "missing or empty keys")
		})
	}
}

func TestUserFromModel_NilInterestsBecomeEmptyArray(t *testing.T) {
	raw, err := json.Marshal(userFromModel(&models.User{ID: 1, Name: "A"}))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"interests":[]`)
}

func TestUsersFromModels_EmptyIsArray(t *testing.T) {
	raw, err := json.Marshal(usersFromModels(nil))
	require.NoError(t, err)
	require.Equal(t, `[]`, string(raw))
}
