package cache

// Тесты read-through кэша (internal/cache/users.go).
//
//  Проверяем:
//  - промах -> чтение из хранилища и заполнение ключа;
//  - попадание -> хранилище не вызывается;
//  - update перезаписывает ключ, delete ставит надгробие;
//  - заполнение после промаха не перетирает запись, сделанную во время чтения;
//  - недоступный Redis не ломает чтение.
//
// Redis поднимается через testcontainers-go (образ redis:7-alpine):
//   GO_TEST_INTEGRATION=1 go test ./internal/cache -v -race -count=1

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/storage"
	"github.com/pribylovaa/users-directory/mocks"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis поднимает Redis и возвращает URL подключения.
func startRedis(t *testing.T) string {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func alice() *models.User {
	return &models.User{
		ID:        7,
		Name:      "Alice",
		Age:       30,
		Gender:    "F",
		Email:     "alice@x.com",
		City:      "Paris",
		Interests: []string{"run"},
	}
}

func newCacheWithMock(t *testing.T) (*Users, *mocks.MockUsersStorage) {
	t.Helper()

	url := startRedis(t)
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockUsersStorage(ctrl)

	c, err := NewUsers(context.Background(), ms, url, "test:", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.rdb.Close() })

	return c, ms
}

func TestIntegration_UserByID_MissThenHit(t *testing.T) {
	c, ms := newCacheWithMock(t)
	ctx := context.Background()

	ms.EXPECT().UserByID(gomock.Any(), int64(7)).Return(alice(), nil).Times(1)

	got, err := c.UserByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, alice(), got)

	ttl, err := c.rdb.TTL(ctx, "test:7").Result()
	require.NoError(t, err)
	require.Positive(t, ttl)

	// Второе чтение обслуживается кэшем.
	got, err = c.UserByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, alice(), got)
}

func TestIntegration_UserByID_NotFoundIsNotCached(t *testing.T) {
	c, ms := newCacheWithMock(t)
	ctx := context.Background()

	ms.EXPECT().UserByID(gomock.Any(), int64(9)).Return(nil, storage.ErrNotFound).Times(2)

	_, err := c.UserByID(ctx, 9)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = c.UserByID(ctx, 9)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_UpdateUser_RefreshesKey(t *testing.T) {
	c, ms := newCacheWithMock(t)
	ctx := context.Background()

	ms.EXPECT().UserByID(gomock.Any(), int64(7)).Return(alice(), nil).Times(1)
	_, err := c.UserByID(ctx, 7)
	require.NoError(t, err)

	moved := alice()
	moved.City = "Lyon"
	city := "Lyon"
	ms.EXPECT().UpdateUser(gomock.Any(), int64(7), storage.UserUpdate{City: &city}).Return(moved, nil)

	_, err = c.UpdateUser(ctx, 7, storage.UserUpdate{City: &city})
	require.NoError(t, err)

	got, err := c.UserByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "Lyon", got.City)
}

func TestIntegration_UpdateUser_ErrorBuriesKey(t *testing.T) {
	c, ms := newCacheWithMock(t)
	ctx := context.Background()

	ms.EXPECT().UserByID(gomock.Any(), int64(7)).Return(alice(), nil).Times(2)
	_, err := c.UserByID(ctx, 7)
	require.NoError(t, err)

	ms.EXPECT().UpdateUser(gomock.Any(), int64(7), gomock.Any()).Return(nil, storage.ErrAlreadyExists)
	email := "bob@x.com"
	_, err = c.UpdateUser(ctx, 7, storage.UserUpdate{Email: &email})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	raw, err := c.rdb.Get(ctx, "test:7").Result()
	require.NoError(t, err)
	require.Equal(t, tombstone, raw)

	// Надгробие — промах: чтение уходит в хранилище.
	_, err = c.UserByID(ctx, 7)
	require.NoError(t, err)
}

func TestIntegration_DeleteUser_BuriesKey(t *testing.T) {
	c, ms := newCacheWithMock(t)
	ctx := context.Background()

	ms.EXPECT().UserByID(gomock.Any(), int64(7)).Return(alice(), nil).Times(1)
	_, err := c.UserByID(ctx, 7)
	require.NoError(t, err)

	ms.EXPECT().DeleteUser(gomock.Any(), int64(7)).Return(alice(), nil)
	deleted, err := c.DeleteUser(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, alice(), deleted)

	ms.EXPECT().UserByID(gomock.Any(), int64(7)).Return(nil, storage.ErrNotFound)
	_, err = c.UserByID(ctx, 7)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_BrokenEntry_FallsBackToStorage(t *testing.T) {
	c, ms := newCacheWithMock(t)
	ctx := context.Background()

	require.NoError(t, c.rdb.Set(ctx, "test:7", "{not json", time.Minute).Err())
	ms.EXPECT().UserByID(gomock.Any(), int64(7)).Return(alice(), nil)

	got, err := c.UserByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, alice(), got)
}

// Delete успевает между промахом и заполнением: удалённая запись не попадает в кэш.
func TestIntegration_DeleteDuringMiss_NotResurrected(t *testing.T) {
	c, ms := newCacheWithMock(t)
	ctx := context.Background()

	ms.EXPECT().DeleteUser(gomock.Any(), int64(7)).Return(alice(), nil)
	first := ms.EXPECT().UserByID(gomock.Any(), int64(7)).
		DoAndReturn(func(ctx context.Context, id int64) (*models.User, error) {
			_, err := c.DeleteUser(ctx, id)
			require.NoError(t, err)

			return alice(), nil
		})
	ms.EXPECT().UserByID(gomock.Any(), int64(7)).Return(nil, storage.ErrNotFound).After(first)

	got, err := c.UserByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, alice(), got)

	_, err = c.UserByID(ctx, 7)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// Update успевает между промахом и заполнением: в кэше остаётся новое состояние.
func TestIntegration_UpdateDuringMiss_KeepsNewState(t *testing.T) {
	c, ms := newCacheWithMock(t)
	ctx := context.Background()

	moved := alice()
	moved.City = "Lyon"
	city := "Lyon"

	ms.EXPECT().UpdateUser(gomock.Any(), int64(7), storage.UserUpdate{City: &city}).Return(moved, nil)
	ms.EXPECT().UserByID(gomock.Any(), int64(7)).
		DoAndReturn(func(ctx context.Context, id int64) (*models.User, error) {
			_, err := c.UpdateUser(ctx, id, storage.UserUpdate{City: &city})
			require.NoError(t, err)

			return alice(), nil
		})

	_, err := c.UserByID(ctx, 7)
	require.NoError(t, err)

	got, err := c.UserByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "Lyon", got.City)
}

// Redis недоступен: ошибки кэша логируются, чтение уходит в хранилище.
func TestUserByID_RedisDown_FallsBackToStorage(t *testing.T) {
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockUsersStorage(ctrl)

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := newUsers(ms, rdb, "", time.Minute)
	require.Equal(t, defaultPrefix, c.prefix)

	ms.EXPECT().UserByID(gomock.Any(), int64(7)).Return(alice(), nil)

	got, err := c.UserByID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, alice(), got)

	ms.EXPECT().Close().Return(errors.New("store close failed"))
	err = c.Close()
	require.Error(t, err)
	require.Contains(t, err.Error(), "store close failed")
}

func TestNewUsers_InvalidURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockUsersStorage(ctrl)

	_, err := NewUsers(context.Background(), ms, "://bad", "", time.Minute)
	require.Error(t, err)
}
