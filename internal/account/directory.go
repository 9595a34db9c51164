package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UsersCollection is the Mongo collection holding user documents.
const UsersCollection = "users"

// ErrNotFound indicates no user matched the lookup.
var ErrNotFound = errors.New("user not found")

// Directory is the user store consumed by the account service.
type Directory interface {
	// FindByEmail looks a user up by email, case-insensitively.
	// Returns ErrNotFound when no user matches.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByVerificationToken looks a user up by an unexpired verification
	// token. Returns ErrNotFound when the token is unknown or expired.
	FindByVerificationToken(ctx context.Context, token string, now time.Time) (*User, error)

	// Insert stores a new user and fills in its ID.
	Insert(ctx context.Context, user *User) error

	// Update replaces the stored user document.
	Update(ctx context.Context, user *User) error
}

// MongoDirectory is the Directory implementation over Mongo.
type MongoDirectory struct {
	coll *mongo.Collection
}

// NewMongoDirectory creates a directory over the given database.
func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{coll: db.Collection(UsersCollection)}
}

// FindByEmail looks a user up by email with an anchored case-insensitive
// match.
func (d *MongoDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	filter := bson.M{"email": primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(email) + "$",
		Options: "i",
	}}

	var user User
	err := d.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: find user by email: %w", err)
	}
	return &user, nil
}

// FindByVerificationToken looks a user up by an unexpired token.
func (d *MongoDirectory) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*User, error) {
	filter := bson.M{
		"verificationToken":       token,
		"verificationTokenExpiry": bson.M{"$gt": now},
	}

	var user User
	err := d.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: find user by token: %w", err)
	}
	return &user, nil
}

// Insert stores a new user and fills in its ID.
func (d *MongoDirectory) Insert(ctx context.Context, user *User) error {
	res, err := d.coll.InsertOne(ctx, user)
	if err != nil {
		return fmt.Errorf("account: insert user: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return nil
}

// Update replaces the stored user document.
func (d *MongoDirectory) Update(ctx context.Context, user *User) error {
	_, err := d.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return fmt.Errorf("account: update user: %w", err)
	}
	return nil
}
