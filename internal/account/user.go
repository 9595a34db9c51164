// Package account implements the portal user directory and the signup,
// login, and email verification flows around the dispatch governor.
package account

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a portal account record.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	IsVerified   bool               `bson:"isVerified" json:"isVerified"`

	// Verification ticket. Token and expiry are cleared on successful
	// verification and regenerated when an expired ticket is re-requested.
	VerificationToken         string    `bson:"verificationToken,omitempty" json:"-"`
	VerificationTokenExpiry   time.Time `bson:"verificationTokenExpiry,omitempty" json:"-"`
	VerificationEmailCount    int       `bson:"verificationEmailCount" json:"-"`
	LastVerificationEmailSent time.Time `bson:"lastVerificationEmailSent,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasValidToken reports whether the user holds a not-yet-expired
// verification token at the given instant.
func (u *User) HasValidToken(now time.Time) bool {
	return u.VerificationToken != "" && u.VerificationTokenExpiry.After(now)
}
