package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellouniversity/portal/internal/account"
	"github.com/hellouniversity/portal/internal/quota"
)

type fakeAccounts struct {
	signUp              func(ctx context.Context, email, password, confirm string) (*account.SignUpResult, error)
	logIn               func(ctx context.Context, email, password string) (*account.LogInResult, error)
	requestVerification func(ctx context.Context, email string) (*account.ResendResult, error)
	verifyEmail         func(ctx context.Context, token string) (*account.User, error)
}

func (f *fakeAccounts) SignUp(ctx context.Context, email, password, confirm string) (*account.SignUpResult, error) {
	return f.signUp(ctx, email, password, confirm)
}

func (f *fakeAccounts) LogIn(ctx context.Context, email, password string) (*account.LogInResult, error) {
	return f.logIn(ctx, email, password)
}

func (f *fakeAccounts) RequestVerification(ctx context.Context, email string) (*account.ResendResult, error) {
	return f.requestVerification(ctx, email)
}

func (f *fakeAccounts) VerifyEmail(ctx context.Context, token string) (*account.User, error) {
	return f.verifyEmail(ctx, token)
}

type fakeReporter struct {
	report func(ctx context.Context, date string) (*quota.Record, error)
}

func (f *fakeReporter) Report(ctx context.Context, date string) (*quota.Record, error) {
	return f.report(ctx, date)
}

func newTestServer(accounts AccountService, quotas QuotaReporter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(accounts, quotas, "test-secret", false, logger).Routes()
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthcheck(t *testing.T) {
	handler := newTestServer(&fakeAccounts{}, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSignUpCreated(t *testing.T) {
	accounts := &fakeAccounts{
		signUp: func(ctx context.Context, email, password, confirm string) (*account.SignUpResult, error) {
			return &account.SignUpResult{User: &account.User{Email: email}, EmailSent: true}, nil
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/signup",
		`{"email":"student@hello.edu","password":"secret1","confirmPassword":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp signUpResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "student@hello.edu", resp.Email)
	assert.True(t, resp.EmailSent)
}

func TestSignUpEmailTaken(t *testing.T) {
	accounts := &fakeAccounts{
		signUp: func(ctx context.Context, email, password, confirm string) (*account.SignUpResult, error) {
			return nil, account.ErrEmailTaken
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/signup",
		`{"email":"taken@hello.edu","password":"secret1","confirmPassword":"secret1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignUpRejectsBadJSON(t *testing.T) {
	handler := newTestServer(&fakeAccounts{}, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/signup", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogInSetsSessionCookie(t *testing.T) {
	accounts := &fakeAccounts{
		logIn: func(ctx context.Context, email, password string) (*account.LogInResult, error) {
			return &account.LogInResult{User: &account.User{Email: email}}, nil
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/login",
		`{"email":"student@hello.edu","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, sessionName, cookies[0].Name)
}

func TestLogInSecureCookieInProduction(t *testing.T) {
	accounts := &fakeAccounts{
		logIn: func(ctx context.Context, email, password string) (*account.LogInResult, error) {
			return &account.LogInResult{User: &account.User{Email: email}}, nil
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewServer(accounts, &fakeReporter{}, "test-secret", true, logger).Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/login",
		`{"email":"student@hello.edu","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLogInUnverified(t *testing.T) {
	accounts := &fakeAccounts{
		logIn: func(ctx context.Context, email, password string) (*account.LogInResult, error) {
			return &account.LogInResult{User: &account.User{Email: email}, NeedsVerification: true}, nil
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/login",
		`{"email":"student@hello.edu","password":"secret1"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "no session for unverified accounts")

	var resp logInResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.NeedsVerification)
}

func TestLogInBadCredentials(t *testing.T) {
	accounts := &fakeAccounts{
		logIn: func(ctx context.Context, email, password string) (*account.LogInResult, error) {
			return nil, account.ErrInvalidCredentials
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/login",
		`{"email":"student@hello.edu","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogInUnknownEmailMasksReason(t *testing.T) {
	accounts := &fakeAccounts{
		logIn: func(ctx context.Context, email, password string) (*account.LogInResult, error) {
			return nil, account.ErrNotFound
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/login",
		`{"email":"ghost@hello.edu","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), account.ErrInvalidCredentials.Error())
}

func TestRequestVerificationTokenStillValid(t *testing.T) {
	accounts := &fakeAccounts{
		requestVerification: func(ctx context.Context, email string) (*account.ResendResult, error) {
			return &account.ResendResult{Status: account.ResendTokenStillValid, MinutesRemaining: 42}, nil
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/request-verification",
		`{"email":"student@hello.edu"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp resendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.MinutesRemaining)
}

func TestRequestVerificationSent(t *testing.T) {
	accounts := &fakeAccounts{
		requestVerification: func(ctx context.Context, email string) (*account.ResendResult, error) {
			return &account.ResendResult{Status: account.ResendSent}, nil
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodPost, "/api/request-verification",
		`{"email":"student@hello.edu"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyEmail(t *testing.T) {
	var gotToken string
	accounts := &fakeAccounts{
		verifyEmail: func(ctx context.Context, token string) (*account.User, error) {
			gotToken = token
			return &account.User{Email: "student@hello.edu", IsVerified: true}, nil
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodGet, "/verify-email/abc123", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", gotToken)
}

func TestVerifyEmailBadToken(t *testing.T) {
	accounts := &fakeAccounts{
		verifyEmail: func(ctx context.Context, token string) (*account.User, error) {
			return nil, account.ErrTokenInvalid
		},
	}
	handler := newTestServer(accounts, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodGet, "/verify-email/expired", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuotaReportDefaultsToToday(t *testing.T) {
	var gotDate string
	reporter := &fakeReporter{
		report: func(ctx context.Context, date string) (*quota.Record, error) {
			gotDate = date
			return &quota.Record{Date: date}, nil
		},
	}
	handler := newTestServer(&fakeAccounts{}, reporter)

	rec := doJSON(t, handler, http.MethodGet, "/api/quota/report", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, gotDate)
}

func TestQuotaReportExplicitDate(t *testing.T) {
	reporter := &fakeReporter{
		report: func(ctx context.Context, date string) (*quota.Record, error) {
			return &quota.Record{Date: date, TotalSuccess: 7}, nil
		},
	}
	handler := newTestServer(&fakeAccounts{}, reporter)

	rec := doJSON(t, handler, http.MethodGet, "/api/quota/report?date=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var record quota.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "2025-03-10", record.Date)
	assert.Equal(t, int64(7), record.TotalSuccess)
}

func TestQuotaReportEncodesNilProvidersAsEmptyObject(t *testing.T) {
	// A freshly upserted day document carries no providers field.
	reporter := &fakeReporter{
		report: func(ctx context.Context, date string) (*quota.Record, error) {
			return &quota.Record{Date: date}, nil
		},
	}
	handler := newTestServer(&fakeAccounts{}, reporter)

	rec := doJSON(t, handler, http.MethodGet, "/api/quota/report?date=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"providers":{}`)
	assert.NotContains(t, rec.Body.String(), `"providers":null`)
}

func TestQuotaReportMissingDayIsZeroRecord(t *testing.T) {
	reporter := &fakeReporter{
		report: func(ctx context.Context, date string) (*quota.Record, error) {
			return nil, nil
		},
	}
	handler := newTestServer(&fakeAccounts{}, reporter)

	rec := doJSON(t, handler, http.MethodGet, "/api/quota/report?date=1999-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"date":"1999-01-01"`)
	assert.Contains(t, rec.Body.String(), `"providers":{}`)
}

func TestQuotaReportRejectsBadDate(t *testing.T) {
	handler := newTestServer(&fakeAccounts{}, &fakeReporter{})

	rec := doJSON(t, handler, http.MethodGet, "/api/quota/report?date=March-10", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
