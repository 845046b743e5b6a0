// mongo предоставляет реализацию storage.UsersStorage на базе MongoDB.
//
// Числовые id выдаются из коллекции counters через атомарный $inc,
// поэтому они монотонны и не переиспользуются после удаления.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pribylovaa/users-directory/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection    = "users"
	countersCollection = "counters"
	defaultDBName      = "users"
	closeTimeout       = 5 * time.Second
)

// Mongo - тонкий адаптер для подключения и коллекций MongoDB.
type Mongo struct {
	client   *mongodriver.Client
	db       *mongodriver.Database
	users    *mongodriver.Collection
	counters *mongodriver.Collection
}

// New подключается к MongoDB, проверяет соединение и создаёт индексы.
// Имя БД берётся из пути URI (mongodb://host:27017/<db>).
func New(ctx context.Context, uri string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(uri))

	m := &Mongo{
		client:   cli,
		db:       db,
		users:    db.Collection(usersCollection),
		counters: db.Collection(countersCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}

	return m, nil
}

// Close отключает клиента.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	return m.client.Disconnect(ctx)
}

// ensureIndexes создает индексы коллекции users:
// - уникальность email;
// - выборка совпадений: city + _id.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	models := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "city", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("city_id"),
		},
	}

	if _, err := m.users.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

var _ storage.UsersStorage = (*Mongo)(nil)
