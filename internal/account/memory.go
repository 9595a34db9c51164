package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryDirectory is an in-memory Directory for local development and tests.
type MemoryDirectory struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*User
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[primitive.ObjectID]*User)}
}

func (d *MemoryDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDirectory) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.VerificationToken == token && user.VerificationTokenExpiry.After(now) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDirectory) Insert(ctx context.Context, user *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user.ID = primitive.NewObjectID()
	clone := *user
	d.users[user.ID] = &clone
	return nil
}

func (d *MemoryDirectory) Update(ctx context.Context, user *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.ID]; !ok {
		return ErrNotFound
	}
	clone := *user
	d.users[user.ID] = &clone
	return nil
}
