// Package web exposes the portal's HTTP surface.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"github.com/hellouniversity/portal/internal/account"
	"github.com/hellouniversity/portal/internal/quota"
)

const sessionName = "portal_session"

// AccountService is the subset of account operations the handlers need.
type AccountService interface {
	SignUp(ctx context.Context, email, password, confirmPassword string) (*account.SignUpResult, error)
	LogIn(ctx context.Context, email, password string) (*account.LogInResult, error)
	RequestVerification(ctx context.Context, email string) (*account.ResendResult, error)
	VerifyEmail(ctx context.Context, token string) (*account.User, error)
}

// QuotaReporter serves the daily send ledger for the report endpoint.
type QuotaReporter interface {
	Report(ctx context.Context, date string) (*quota.Record, error)
}

// Server wires routes, sessions, and JSON encoding around the account service.
type Server struct {
	accounts AccountService
	quotas   QuotaReporter
	sessions sessions.Store
	clock    quota.Clock
	logger   *slog.Logger
}

// NewServer creates the HTTP layer. sessionSecret signs session cookies;
// secureCookies restricts them to HTTPS and is set in production.
func NewServer(accounts AccountService, quotas QuotaReporter, sessionSecret string, secureCookies bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return &Server{
		accounts: accounts,
		quotas:   quotas,
		sessions: store,
		clock:    quota.SystemClock{},
		logger:   logger,
	}
}

// Routes builds the router with request logging.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthcheck", s.handleHealthcheck).Methods(http.MethodGet)
	r.HandleFunc("/api/signup", s.handleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/api/login", s.handleLogIn).Methods(http.MethodPost)
	r.HandleFunc("/api/request-verification", s.handleRequestVerification).Methods(http.MethodPost)
	r.HandleFunc("/verify-email/{token}", s.handleVerifyEmail).Methods(http.MethodGet)
	r.HandleFunc("/api/quota/report", s.handleQuotaReport).Methods(http.MethodGet)
	return handlers.LoggingHandler(os.Stdout, r)
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type signUpResponse struct {
	Message   string `json:"message"`
	Email     string `json:"email"`
	EmailSent bool   `json:"emailSent"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.accounts.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		s.writeAccountError(w, err)
		return
	}

	message := "Account created. Check your email to verify your address."
	if !result.EmailSent {
		message = "Account created, but the verification email could not be sent. Use the resend option."
	}
	writeJSON(w, http.StatusCreated, signUpResponse{
		Message:   message,
		Email:     result.User.Email,
		EmailSent: result.EmailSent,
	})
}

type logInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logInResponse struct {
	Message           string `json:"message"`
	Email             string `json:"email"`
	NeedsVerification bool   `json:"needsVerification,omitempty"`
}

func (s *Server) handleLogIn(w http.ResponseWriter, r *http.Request) {
	var req logInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.accounts.LogIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAccountError(w, err)
		return
	}

	if result.NeedsVerification {
		writeJSON(w, http.StatusForbidden, logInResponse{
			Message:           "Please verify your email before logging in.",
			Email:             result.User.Email,
			NeedsVerification: true,
		})
		return
	}

	session, _ := s.sessions.Get(r, sessionName)
	session.Values["userID"] = result.User.ID.Hex()
	session.Values["email"] = result.User.Email
	if err := session.Save(r, w); err != nil {
		s.logger.Error("save session", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not establish session"})
		return
	}

	writeJSON(w, http.StatusOK, logInResponse{Message: "Logged in.", Email: result.User.Email})
}

type resendRequest struct {
	Email string `json:"email"`
}

type resendResponse struct {
	Message          string `json:"message"`
	MinutesRemaining int    `json:"minutesRemaining,omitempty"`
}

func (s *Server) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.accounts.RequestVerification(r.Context(), req.Email)
	if err != nil {
		s.writeAccountError(w, err)
		return
	}

	switch result.Status {
	case account.ResendAlreadyVerified:
		writeJSON(w, http.StatusOK, resendResponse{Message: "This email is already verified. You can log in."})
	case account.ResendTokenStillValid:
		writeJSON(w, http.StatusTooManyRequests, resendResponse{
			Message:          fmt.Sprintf("A verification link was already sent. It stays valid for another %d minutes.", result.MinutesRemaining),
			MinutesRemaining: result.MinutesRemaining,
		})
	default:
		writeJSON(w, http.StatusOK, resendResponse{Message: "Verification email sent. Check your inbox."})
	}
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	user, err := s.accounts.VerifyEmail(r.Context(), token)
	if err != nil {
		s.writeAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified. You can now log in.",
		"email":   user.Email,
	})
}

func (s *Server) handleQuotaReport(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = quota.DateKey(s.clock.Now())
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	record, err := s.quotas.Report(r.Context(), date)
	if err != nil {
		s.logger.Error("quota report", "date", date, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "quota ledger unavailable"})
		return
	}
	if record == nil {
		// A day with no traffic has no document; report it as all zeroes.
		record = &quota.Record{Date: date}
	}
	if record.Providers == nil {
		// A freshly upserted day has no providers field yet.
		record.Providers = map[string]quota.Counts{}
	}

	writeJSON(w, http.StatusOK, record)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeAccountError maps service errors onto HTTP statuses.
func (s *Server) writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrMissingFields),
		errors.Is(err, account.ErrPasswordMismatch),
		errors.Is(err, account.ErrPasswordTooShort):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, account.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, account.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: account.ErrInvalidCredentials.Error()})
	case errors.Is(err, account.ErrTokenInvalid):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, account.ErrVerificationSend):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("account operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
