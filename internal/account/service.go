package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hellouniversity/portal/internal/dispatch"
	"github.com/hellouniversity/portal/internal/quota"
)

const (
	// tokenTTL is how long a verification link stays valid.
	tokenTTL = 24 * time.Hour

	// tokenBytes is the entropy of a verification token (hex-encoded on the wire).
	tokenBytes = 32

	bcryptCost = 10

	minPasswordLength = 6
)

// Validation and flow errors surfaced to the HTTP layer.
var (
	ErrMissingFields       = errors.New("all fields are required")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrPasswordTooShort    = errors.New("password must be at least 6 characters")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrTokenInvalid        = errors.New("invalid or expired verification link")
	ErrVerificationSend    = errors.New("failed to send verification email")
	ErrCorruptedCredential = errors.New("account has no password credential")
)

// Dispatcher is the email dispatch capability the service consumes.
type Dispatcher interface {
	DispatchVerification(ctx context.Context, recipient, token string, useIdentityRotation bool) *dispatch.Result
}

// Service implements the signup, login, and verification flows.
type Service struct {
	directory  Directory
	dispatcher Dispatcher
	clock      quota.Clock
	logger     *slog.Logger
}

// NewService creates an account service.
func NewService(directory Directory, dispatcher Dispatcher, clock quota.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = quota.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory:  directory,
		dispatcher: dispatcher,
		clock:      clock,
		logger:     logger,
	}
}

// SignUpResult reports the outcome of a signup.
type SignUpResult struct {
	User *User

	// EmailSent is false when the account was created but the verification
	// email could not be dispatched; the caller should point the user at the
	// resend path.
	EmailSent bool
}

// SignUp registers a new account and dispatches the initial verification
// email. The initial send never uses identity rotation. Account creation
// succeeds even when dispatch fails.
func (s *Service) SignUp(ctx context.Context, email, password, confirmPassword string) (*SignUpResult, error) {
	if email == "" || password == "" || confirmPassword == "" {
		return nil, ErrMissingFields
	}
	if password != confirmPassword {
		return nil, ErrPasswordMismatch
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	normalized := normalizeEmail(email)

	_, err := s.directory.FindByEmail(ctx, normalized)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("account: hash password: %w", err)
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &User{
		Email:                     normalized,
		PasswordHash:              string(hash),
		IsVerified:                false,
		VerificationToken:         token,
		VerificationTokenExpiry:   now.Add(tokenTTL),
		VerificationEmailCount:    1,
		LastVerificationEmailSent: now,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	if err := s.directory.Insert(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", "email", normalized)

	result := s.dispatcher.DispatchVerification(ctx, normalized, token, false)
	if !result.Success {
		s.logger.Warn("signup verification email failed", "email", normalized, "reason", result.Reason)
	}

	return &SignUpResult{User: user, EmailSent: result.Success}, nil
}

// LogInResult reports the outcome of a login.
type LogInResult struct {
	User *User

	// NeedsVerification is true when the credentials were correct but the
	// account has not verified its email; no session should be issued.
	NeedsVerification bool
}

// LogIn checks credentials. Unverified accounts without a token (migrated
// users) get a fresh verification ticket so the resend path can work.
func (s *Service) LogIn(ctx context.Context, email, password string) (*LogInResult, error) {
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	user, err := s.directory.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrCorruptedCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		if user.VerificationToken == "" {
			token, err := newVerificationToken()
			if err != nil {
				return nil, err
			}
			user.VerificationToken = token
			user.VerificationTokenExpiry = s.clock.Now().Add(tokenTTL)
			user.UpdatedAt = s.clock.Now()
			if err := s.directory.Update(ctx, user); err != nil {
				return nil, err
			}
			s.logger.Info("generated verification token for migrated user", "email", user.Email)
		}
		return &LogInResult{User: user, NeedsVerification: true}, nil
	}

	return &LogInResult{User: user}, nil
}

// ResendStatus classifies the outcome of a verification resend request.
type ResendStatus int

const (
	// ResendSent means a fresh verification email went out.
	ResendSent ResendStatus = iota

	// ResendAlreadyVerified means the account needs no verification.
	ResendAlreadyVerified

	// ResendTokenStillValid means the previously sent link has not expired
	// yet and no new email was sent.
	ResendTokenStillValid
)

// ResendResult reports the outcome of RequestVerification.
type ResendResult struct {
	Status ResendStatus

	// MinutesRemaining is set for ResendTokenStillValid.
	MinutesRemaining int
}

// RequestVerification handles a user-initiated "resend verification email"
// request. Resends opt into sender identity rotation.
func (s *Service) RequestVerification(ctx context.Context, email string) (*ResendResult, error) {
	if email == "" {
		return nil, ErrMissingFields
	}

	user, err := s.directory.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	if user.IsVerified {
		return &ResendResult{Status: ResendAlreadyVerified}, nil
	}

	now := s.clock.Now()
	if user.HasValidToken(now) {
		remaining := int(user.VerificationTokenExpiry.Sub(now).Minutes()) + 1
		return &ResendResult{Status: ResendTokenStillValid, MinutesRemaining: remaining}, nil
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, err
	}
	user.VerificationToken = token
	user.VerificationTokenExpiry = now.Add(tokenTTL)
	user.VerificationEmailCount++
	user.LastVerificationEmailSent = now
	user.UpdatedAt = now
	if err := s.directory.Update(ctx, user); err != nil {
		return nil, err
	}

	result := s.dispatcher.DispatchVerification(ctx, user.Email, token, true)
	if !result.Success {
		s.logger.Warn("resend verification email failed", "email", user.Email, "reason", result.Reason)
		return nil, ErrVerificationSend
	}

	return &ResendResult{Status: ResendSent}, nil
}

// VerifyEmail redeems a verification token. Tokens are single-use: the
// ticket is cleared on success.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	user, err := s.directory.FindByVerificationToken(ctx, token, s.clock.Now())
	if errors.Is(err, ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	user.IsVerified = true
	user.VerificationToken = ""
	user.VerificationTokenExpiry = time.Time{}
	user.UpdatedAt = s.clock.Now()
	if err := s.directory.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user verified", "email", user.Email)

	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newVerificationToken returns a fresh random token, hex-encoded.
func newVerificationToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("account: generate verification token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
