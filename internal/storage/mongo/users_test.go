package mongo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/users-directory/internal/storage"
	"github.com/pribylovaa/users-directory/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testTimeout — общий дедлайн на операции с БД в тестах.
const testTimeout = 10 * time.Second

// TestMain запускает MongoDB в контейнере один раз на весь пакет тестов.
// Адрес контейнера прокидывается в ENV DATABASE_URL, каждый подтест
// получает свою БД с уникальным именем (см. newTestStorage).
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7.0",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
	}

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("DATABASE_URL", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

// newTestStorage подключается к отдельной БД и удаляет её по завершении подтеста.
func newTestStorage(t *testing.T) *Mongo {
	t.Helper()

	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	base := os.Getenv("DATABASE_URL")
	require.NotEmpty(t, base)

	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	m, err := New(ctx, base+"/"+dbName)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		_ = m.db.Drop(ctx)
		_ = m.Close()
	})

	return m
}

func TestIntegration_UsersContract(t *testing.T) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	storagetest.Run(t, func(t *testing.T) storage.UsersStorage {
		return newTestStorage(t)
	})
}

func TestIntegration_EnsureIndexes_Idempotent(t *testing.T) {
	m := newTestStorage(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	require.NoError(t, m.ensureIndexes(ctx))
}

func TestIntegration_FailedInsert_DoesNotReuseID(t *testing.T) {
	m := newTestStorage(t)
	ctx := context.Background()

	first, err := m.CreateUser(ctx, storagetest.NewUser("A", "a@x.com", "Paris"))
	require.NoError(t, err)

	_, err = m.CreateUser(ctx, storagetest.NewUser("B", "a@x.com", "Paris"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	next, err := m.CreateUser(ctx, storagetest.NewUser("C", "c@x.com", "Paris"))
	require.NoError(t, err)
	require.Greater(t, next.ID, first.ID)
}

func TestNew_EmptyURI(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)
}

func TestDatabaseFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"mongodb://localhost:27017/users_dir", "users_dir"},
		{"mongodb://localhost:27017/users_dir?authSource=admin", "users_dir"},
		{"mongodb://localhost:27017", defaultDBName},
		{"mongodb://localhost:27017/", defaultDBName},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			require.Equal(t, tt.want, databaseFromURI(tt.uri))
		})
	}
}
