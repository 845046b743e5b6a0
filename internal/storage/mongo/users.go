package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/users-directory/internal/models"
	"github.com/pribylovaa/users-directory/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDoc — представление пользователя в коллекции users.
type userDoc struct {
	ID        int64    `bson:"_id"`
	Name      string   `bson:"name"`
	Age       int      `bson:"age"`
	Gender    string   `bson:"gender"`
	Email     string   `bson:"email"`
	City      string   `bson:"city"`
	Interests []string `bson:"interests"`
}

func (d userDoc) toModel() *models.User {
	interests := d.Interests
	if interests == nil {
		interests = []string{}
	}

	return &models.User{
		ID:        d.ID,
		Name:      d.Name,
		Age:       d.Age,
		Gender:    d.Gender,
		Email:     d.Email,
		City:      d.City,
		Interests: interests,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

// nextID атомарно увеличивает счётчик users в коллекции counters.
func (m *Mongo) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := m.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: usersCollection}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}

	return counter.Seq, nil
}

func (m *Mongo) findUsers(ctx context.Context, op string, filter bson.D, opts *options.FindOptions) ([]models.User, error) {
	cur, err := m.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	users := make([]models.User, 0)
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		users = append(users, *doc.toModel())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return users, nil
}

func (m *Mongo) findOne(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

// CreateUser выдаёт новый id и вставляет документ.
// Нарушение уникального индекса email -> storage.ErrAlreadyExists.
func (m *Mongo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage/mongo/users/CreateUser"

	id, err := m.nextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: next id: %w", op, err)
	}

	doc := userDoc{
		ID:        id,
		Name:      user.Name,
		Age:       user.Age,
		Gender:    user.Gender,
		Email:     user.Email,
		City:      user.City,
		Interests: nonNil(user.Interests),
	}

	if _, err := m.users.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	return doc.toModel(), nil
}

func (m *Mongo) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage/mongo/users/UserByID"

	return m.findOne(ctx, op, bson.D{{Key: "_id", Value: id}})
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage/mongo/users/UserByEmail"

	return m.findOne(ctx, op, bson.D{{Key: "email", Value: email}})
}

func (m *Mongo) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	const op = "storage/mongo/users/ListUsers"

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	return m.findUsers(ctx, op, bson.D{}, opts)
}

// UpdateUser применяет $set одним FindOneAndUpdate (атомарно в пределах документа).
func (m *Mongo) UpdateUser(ctx context.Context, id int64, update storage.UserUpdate) (*models.User, error) {
	const op = "storage/mongo/users/UpdateUser"

	if update.Empty() {
		return m.UserByID(ctx, id)
	}

	set := bson.D{}
	if update.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *update.Name})
	}

	if update.Age != nil {
		set = append(set, bson.E{Key: "age", Value: *update.Age})
	}

	if update.Gender != nil {
		set = append(set, bson.E{Key: "gender", Value: *update.Gender})
	}

	if update.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *update.Email})
	}

	if update.City != nil {
		set = append(set, bson.E{Key: "city", Value: *update.City})
	}

	if update.Interests != nil {
		set = append(set, bson.E{Key: "interests", Value: nonNil(*update.Interests)})
	}

	var doc userDoc
	err := m.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongodriver.ErrNoDocuments):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		case mongodriver.IsDuplicateKeyError(err):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return doc.toModel(), nil
}

// DeleteUser удаляет документ и возвращает его последнее состояние.
func (m *Mongo) DeleteUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage/mongo/users/DeleteUser"

	var doc userDoc
	if err := m.users.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

func (m *Mongo) UsersByCity(ctx context.Context, city string, excludeID int64) ([]models.User, error) {
	const op = "storage/mongo/users/UsersByCity"

	filter := bson.D{
		{Key: "city", Value: city},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}},
	}

	return m.findUsers(ctx, op, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}
