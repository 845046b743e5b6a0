// storagetest содержит общий набор проверок контракта storage.UsersStorage.
// Каждая реализация (postgres, sqlite, mongo) прогоняет его в своих тестах.
package storagetest

import (
	"context"
	"testing"

	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/storage"
	"github.com/stretchr/testify/require"
)

// Factory возвращает пустое хранилище для одного подтеста.
// Освобождение ресурсов — через t.Cleanup внутри фабрики.
type Factory func(t *testing.T) storage.UsersStorage

// NewUser — быстрый хелпер для сборки пользователя.
func NewUser(name, email, city string) *models.User {
	return &models.User{
		Name:      name,
		Age:       30,
		Gender:    "F",
		Email:     email,
		City:      city,
		Interests: []string{"run", "chess"},
	}
}

// Run прогоняет все проверки контракта.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, st storage.UsersStorage)
	}{
		{"CreateUser_And_Read_OK", testCreateAndRead},
		{"CreateUser_DuplicateEmail", testCreateDuplicate},
		{"CreateUser_IDsNotReused", testIDsNotReused},
		{"Read_NotFound", testReadNotFound},
		{"ListUsers_Pagination", testListPagination},
		{"UpdateUser_Partial_OK", testUpdatePartial},
		{"UpdateUser_Empty_ReturnsCurrent", testUpdateEmpty},
		{"UpdateUser_NotFound", testUpdateNotFound},
		{"UpdateUser_EmailConflict_LeavesRecordIntact", testUpdateEmailConflict},
		{"DeleteUser_ReturnsLastState", testDelete},
		{"UsersByCity_ExcludesSelf", testUsersByCity},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.fn(t, factory(t))
		})
	}
}

func requireSameFields(t *testing.T, want, got *models.User) {
	t.Helper()

	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Age, got.Age)
	require.Equal(t, want.Gender, got.Gender)
	require.Equal(t, want.Email, got.Email)
	require.Equal(t, want.City, got.City)
	require.Equal(t, want.Interests, got.Interests)
}

func mustCreate(t *testing.T, st storage.UsersStorage, u *models.User) *models.User {
	t.Helper()

	created, err := st.CreateUser(context.Background(), u)
	require.NoError(t, err)
	require.Positive(t, created.ID)

	return created
}

func ids(users []models.User) []int64 {
	out := make([]int64, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}

	return out
}

func testCreateAndRead(t *testing.T, st storage.UsersStorage) {
	ctx := context.Background()
	in := NewUser("Alice", "alice@x.com", "Paris")

	created := mustCreate(t, st, in)
	requireSameFields(t, in, created)

	got, err := st.UserByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	byEmail, err := st.UserByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	require.Equal(t, created, byEmail)
}

func testCreateDuplicate(t *testing.T, st storage.UsersStorage) {
	mustCreate(t, st, NewUser("Alice", "dup@x.com", "Paris"))

	_, err := st.CreateUser(context.Background(), NewUser("Other", "dup@x.com", "Lyon"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func testIDsNotReused(t *testing.T, st storage.UsersStorage) {
	ctx := context.Background()

	first := mustCreate(t, st, NewUser("A", "a@x.com", "Paris"))
	_, err := st.DeleteUser(ctx, first.ID)
	require.NoError(t, err)

	second := mustCreate(t, st, NewUser("B", "b@x.com", "Paris"))
	require.Greater(t, second.ID, first.ID)
}

func testReadNotFound(t *testing.T, st storage.UsersStorage) {
	ctx := context.Background()

	_, err := st.UserByID(ctx, 424242)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByEmail(ctx, "nobody@x.com")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testListPagination(t *testing.T, st storage.UsersStorage) {
	ctx := context.Background()

	for _, e := range []string{"u1@x.com", "u2@x.com", "u3@x.com", "u4@x.com", "u5@x.com"} {
		mustCreate(t, st, NewUser("U", e, "Paris"))
	}

	page1, err := st.ListUsers(ctx, 0, 2)
	require.NoError(t, err)
	page2, err := st.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	both, err := st.ListUsers(ctx, 0, 4)
	require.NoError(t, err)

	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	require.Equal(t, ids(both), append(ids(page1), ids(page2)...))
	require.IsIncreasing(t, ids(both))

	tail, err := st.ListUsers(ctx, 4, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)

	empty, err := st.ListUsers(ctx, 100, 10)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func testUpdatePartial(t *testing.T, st storage.UsersStorage) {
	ctx := context.Background()
	orig := mustCreate(t, st, NewUser("Alice", "alice@x.com", "Paris"))

	city := "X"
	interests := []string{"swim"}
	got, err := st.UpdateUser(ctx, orig.ID, storage.UserUpdate{City: &city, Interests: &interests})
	require.NoError(t, err)
	require.Equal(t, "X", got.City)
	require.Equal(t, []string{"swim"}, got.Interests)

	require.Equal(t, orig.ID, got.ID)
	require.Equal(t, orig.Name, got.Name)
	require.Equal(t, orig.Age, got.Age)
	require.Equal(t, orig.Gender, got.Gender)
	require.Equal(t, orig.Email, got.Email)

	reread, err := st.UserByID(ctx, orig.ID)
	require.NoError(t, err)
	require.Equal(t, got, reread)
}

func testUpdateEmpty(t *testing.T, st storage.UsersStorage) {
	orig := mustCreate(t, st, NewUser("Alice", "alice@x.com", "Paris"))

	got, err := st.UpdateUser(context.Background(), orig.ID, storage.UserUpdate{})
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func testUpdateNotFound(t *testing.T, st storage.UsersStorage) {
	name := "x"
	_, err := st.UpdateUser(context.Background(), 424242, storage.UserUpdate{Name: &name})
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UpdateUser(context.Background(), 424242, storage.UserUpdate{})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpdateEmailConflict(t *testing.T, st storage.UsersStorage) {
	ctx := context.Background()
	mustCreate(t, st, NewUser("A", "a@x.com", "Paris"))
	b := mustCreate(t, st, NewUser("B", "b@x.com", "Lyon"))

	email := "a@x.com"
	city := "Nice"
	_, err := st.UpdateUser(ctx, b.ID, storage.UserUpdate{Email: &email, City: &city})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	reread, err := st.UserByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, b, reread, "failed update must not leave partial changes")
}

func testDelete(t *testing.T, st storage.UsersStorage) {
	ctx := context.Background()
	orig := mustCreate(t, st, NewUser("Alice", "alice@x.com", "Paris"))

	deleted, err := st.DeleteUser(ctx, orig.ID)
	require.NoError(t, err)
	require.Equal(t, orig, deleted)

	_, err = st.UserByID(ctx, orig.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.DeleteUser(ctx, orig.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testUsersByCity(t *testing.T, st storage.UsersStorage) {
	ctx := context.Background()
	a := mustCreate(t, st, NewUser("A", "a@x.com", "Paris"))
	b := mustCreate(t, st, NewUser("B", "b@x.com", "Paris"))
	mustCreate(t, st, NewUser("C", "c@x.com", "Lyon"))
	d := mustCreate(t, st, NewUser("D", "d@x.com", "Paris"))

	got, err := st.UsersByCity(ctx, "Paris", a.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID, d.ID}, ids(got))

	none, err := st.UsersByCity(ctx, "Berlin", a.ID)
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}
