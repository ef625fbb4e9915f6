package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores profiles in the users collection. Unique indexes on email
// and supabaseId back the conflict errors Create returns.
type UserDB struct {
	conn *Connector
}

// Create inserts the profile. The duplicate-key message names the index
// that fired, which tells an email clash from an identity clash.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	coll, err := u.conn.collection(ctx, usersCollection)
	if err != nil {
		return err
	}

	user.ID = xid.New().String()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	if user.Favorites == nil {
		user.Favorites = []string{}
	}

	if _, err := coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "supabaseId") {
				return apperror.Conflict("User with this identity already exists")
			}
			return apperror.Conflict("User with this email already exists")
		}
		return fmt.Errorf("mongo: inserting user: %w", err)
	}
	return nil
}

// GetByID, GetByExternalID and GetByEmail look up one profile by field.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.findOne(ctx, "_id", id)
}

func (u *UserDB) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return u.findOne(ctx, "supabaseId", externalID)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.findOne(ctx, "email", email)
}

func (u *UserDB) findOne(ctx context.Context, field, value string) (*model.User, error) {
	coll, err := u.conn.collection(ctx, usersCollection)
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := coll.FindOne(ctx, bson.D{{Key: field, Value: value}}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("mongo: getting user by %s: %w", field, err)
	}
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	return &user, nil
}

// Update writes name, image and bio. Favorites are only changed through
// AddFavorite and RemoveFavorite.
func (u *UserDB) Update(ctx context.Context, user *model.User) error {
	coll, err := u.conn.collection(ctx, usersCollection)
	if err != nil {
		return err
	}

	user.UpdatedAt = time.Now().UTC()
	result, err := coll.UpdateByID(ctx, user.ID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: user.Name},
		{Key: "image", Value: user.Image},
		{Key: "bio", Value: user.Bio},
		{Key: "updatedAt", Value: user.UpdatedAt},
	}}})
	if err != nil {
		return fmt.Errorf("mongo: updating user %s: %w", user.ID, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// AddFavorite appends novelID with $addToSet, which only appends when the
// value is absent, so the array stays an ordered set under concurrency.
func (u *UserDB) AddFavorite(ctx context.Context, userID, novelID string) (*model.User, error) {
	return u.editFavorites(ctx, userID, favoriteUpdate("$addToSet", novelID, time.Now().UTC()))
}

// RemoveFavorite drops novelID with $pull; the other entries keep their order.
func (u *UserDB) RemoveFavorite(ctx context.Context, userID, novelID string) (*model.User, error) {
	return u.editFavorites(ctx, userID, favoriteUpdate("$pull", novelID, time.Now().UTC()))
}

// favoriteUpdate builds the single-document update for a favorites edit.
func favoriteUpdate(op, novelID string, now time.Time) bson.D {
	return bson.D{
		{Key: op, Value: bson.D{{Key: "favorites", Value: novelID}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now}}},
	}
}

func (u *UserDB) editFavorites(ctx context.Context, userID string, update bson.D) (*model.User, error) {
	coll, err := u.conn.collection(ctx, usersCollection)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user model.User
	err = coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: userID}}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("mongo: editing favorites of %s: %w", userID, err)
	}
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	return &user, nil
}
