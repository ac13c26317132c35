package repository

import (
	"context"
	"errors"

	"credit-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UserRepo reads the user directory synced from the forum platform.
type UserRepo struct {
	collection *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{
		collection: db.Collection("users"),
	}
}

// FindByID returns nil, nil when the user does not exist.
func (r *UserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// EnsureIndexes creates necessary indexes for the users collection
func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// MemoryUserRepo is the user directory used with the memory store driver.
type MemoryUserRepo struct {
	users map[int64]models.User
}

func NewMemoryUserRepo(users ...models.User) *MemoryUserRepo {
	r := &MemoryUserRepo{users: make(map[int64]models.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
