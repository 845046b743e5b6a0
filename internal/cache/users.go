// cache содержит read-through кэш пользователей поверх storage.UsersStorage.
//
// Кэшируется только чтение по id. Промах заполняет ключ только если он
// ещё пуст (SET NX). Update перезаписывает ключ новым состоянием, а delete
// и неудачный update ставят надгробие на TTL: заполнение, начатое до записи,
// не вернёт в кэш устаревшую запись. Ошибки Redis не ломают запрос:
// они логируются, а чтение уходит в основное хранилище.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/storage"
	"github.com/pribylovaa/users-directory/pkg/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

const defaultPrefix = "users:"

// tombstone — значение ключа после delete/неудачного update.
const tombstone = "-"

// Users — декоратор хранилища с кэшем UserByID в Redis.
type Users struct {
	next   storage.UsersStorage
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewUsers создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и оборачивает next. Если prefix пустой — используется "users:".
func NewUsers(ctx context.Context, next storage.UsersStorage, redisURL, prefix string, ttl time.Duration) (*Users, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return newUsers(next, rdb, prefix, ttl), nil
}

func newUsers(next storage.UsersStorage, rdb *redis.Client, prefix string, ttl time.Duration) *Users {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Users{next: next, rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Users) key(id int64) string { return c.prefix + strconv.FormatInt(id, 10) }

func (c *Users) get(ctx context.Context, id int64) (*models.User, bool) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.From(ctx).Warn("cache get failed", "user_id", id, "err", err)
		}

		return nil, false
	}

	if string(raw) == tombstone {
		return nil, false
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		log.From(ctx).Warn("cache entry is broken", "user_id", id, "err", err)
		c.drop(ctx, id)

		return nil, false
	}

	if user.Interests == nil {
		user.Interests = []string{}
	}

	return &user, true
}

// set перезаписывает ключ состоянием после записи в хранилище.
func (c *Users) set(ctx context.Context, user *models.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		log.From(ctx).Warn("cache encode failed", "user_id", user.ID, "err", err)
		return
	}

	if err := c.rdb.Set(ctx, c.key(user.ID), raw, c.ttl).Err(); err != nil {
		log.From(ctx).Warn("cache set failed", "user_id", user.ID, "err", err)
	}
}

// fill кладёт прочитанную запись, только если ключ пуст:
// значение или надгробие, записанные после чтения, не перетираются.
func (c *Users) fill(ctx context.Context, user *models.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		log.From(ctx).Warn("cache encode failed", "user_id", user.ID, "err", err)
		return
	}

	if err := c.rdb.SetNX(ctx, c.key(user.ID), raw, c.ttl).Err(); err != nil {
		log.From(ctx).Warn("cache fill failed", "user_id", user.ID, "err", err)
	}
}

// bury ставит надгробие на TTL.
func (c *Users) bury(ctx context.Context, id int64) {
	if err := c.rdb.Set(ctx, c.key(id), tombstone, c.ttl).Err(); err != nil {
		log.From(ctx).Warn("cache tombstone failed", "user_id", id, "err", err)
	}
}

func (c *Users) drop(ctx context.Context, id int64) {
	if err := c.rdb.Del(ctx, c.key(id)).Err(); err != nil {
		log.From(ctx).Warn("cache delete failed", "user_id", id, "err", err)
	}
}

func (c *Users) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	return c.next.CreateUser(ctx, user)
}

// UserByID отдаёт запись из кэша, при промахе читает хранилище и заполняет пустой ключ с TTL.
func (c *Users) UserByID(ctx context.Context, id int64) (*models.User, error) {
	if user, ok := c.get(ctx, id); ok {
		return user, nil
	}

	user, err := c.next.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.fill(ctx, user)

	return user, nil
}

func (c *Users) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.next.UserByEmail(ctx, email)
}

func (c *Users) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	return c.next.ListUsers(ctx, offset, limit)
}

// UpdateUser перезаписывает ключ новым состоянием, при ошибке ставит надгробие.
func (c *Users) UpdateUser(ctx context.Context, id int64, update storage.UserUpdate) (*models.User, error) {
	user, err := c.next.UpdateUser(ctx, id, update)
	if err != nil {
		c.bury(ctx, id)
		return nil, err
	}

	c.set(ctx, user)

	return user, nil
}

func (c *Users) DeleteUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := c.next.DeleteUser(ctx, id)
	c.bury(ctx, id)

	return user, err
}

func (c *Users) UsersByCity(ctx context.Context, city string, excludeID int64) ([]models.User, error) {
	return c.next.UsersByCity(ctx, city, excludeID)
}

// Close закрывает клиент Redis и основное хранилище.
func (c *Users) Close() error {
	return multierr.Combine(c.rdb.Close(), c.next.Close())
}

var _ storage.UsersStorage = (*Users)(nil)
