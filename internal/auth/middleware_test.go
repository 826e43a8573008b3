package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/banking-auth/internal/config"
	"github.com/spec-kit/banking-auth/internal/domain"
	"github.com/spec-kit/banking-auth/internal/keystore"
	"github.com/spec-kit/banking-auth/internal/token"
	apperrors "github.com/spec-kit/banking-auth/pkg/util/errorutil"
)

const testSecret = "middleware-test-secret-middleware-test"

type stubUsers struct {
	users map[string]*domain.User
	err   error
}

func (s *stubUsers) Create(context.Context, *domain.User) error { return nil }

func (s *stubUsers) GetByID(context.Context, int64) (*domain.User, error) { return nil, pgx.ErrNoRows }

func (s *stubUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (s *stubUsers) ExistsByUsername(context.Context, string) (bool, error) { return false, nil }

func (s *stubUsers) ExistsByEmail(context.Context, string) (bool, error) { return false, nil }

type panicLoader struct{}

func (panicLoader) LoadPrincipal(context.Context, *token.Claims) (*Principal, error) {
	panic("boom")
}

type failingKeys struct{}

func (failingKeys) VerificationKey(context.Context) (*mldsa65.PublicKey, error) {
	return nil, token.ErrKeyUnavailable
}

func testConfig() fiber.Config {
	return fiber.Config{
		ReadBufferSize: config.DefaultReadBufferSize,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	}
}

// newApp mounts the middleware in front of a handler that reports the principal.
func newApp(mw *AuthMiddleware, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(testConfig())
	app.Use(mw.Handle)
	handlers := append(guards, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendString("anonymous")
		}
		if fromCtx, ok := FromContext(c.UserContext()); !ok || fromCtx != p {
			return c.SendString("context mismatch")
		}
		return c.SendString(p.Username + "|" + string(p.Role))
	})
	app.Get("/", handlers...)
	return app
}

func call(t *testing.T, app *fiber.App, authorization string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func hmacService() *token.Service {
	return token.NewService(token.NewHMACProvider(testSecret, time.Hour), nil, nil)
}

func TestMiddlewareAttachesPrincipal(t *testing.T) {
	svc := hmacService()
	tok, _, err := svc.Issue("alice", 42)
	require.NoError(t, err)

	users := &stubUsers{users: map[string]*domain.User{
		"alice": {ID: 42, Username: "alice", Role: domain.RoleAdmin, Enabled: true},
	}}
	app := newApp(NewAuthMiddleware(svc, NewUserPrincipalLoader(users), nil))

	status, body := call(t, app, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice|ADMIN", body)

	status, body = call(t, app, tok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)

	status, body = call(t, app, "bearer "+tok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
}

func TestMiddlewareNeverRejects(t *testing.T) {
	svc := hmacService()
	tok, _, err := svc.Issue("alice", 42)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	cases := map[string]struct {
		loader PrincipalLoader
		header string
	}{
		"missing header":   {loader: ClaimsPrincipalLoader{}, header: ""},
		"garbage token":    {loader: ClaimsPrincipalLoader{}, header: "Bearer not.a.token"},
		"two segments":     {loader: ClaimsPrincipalLoader{}, header: "Bearer a.b"},
		"unknown user":     {loader: NewUserPrincipalLoader(&stubUsers{}), header: "Bearer " + tok},
		"user store down":  {loader: NewUserPrincipalLoader(&stubUsers{err: errors.New("db down")}), header: "Bearer " + tok},
		"loader panicking": {loader: panicLoader{}, header: "Bearer " + tok},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			app := newApp(NewAuthMiddleware(svc, tc.loader, logger))
			status, body := call(t, app, tc.header)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, "anonymous", body)
		})
	}

	assert.Equal(t, 2, logs.FilterMessage("continuing without principal").Len())
	assert.Equal(t, 2, logs.FilterMessage("principal lookup failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("authentication check panicked").Len())
}

func TestMiddlewareDisabledUserIsAnonymous(t *testing.T) {
	svc := hmacService()
	tok, _, err := svc.Issue("carol", 7)
	require.NoError(t, err)

	users := &stubUsers{users: map[string]*domain.User{
		"carol": {ID: 7, Username: "carol", Role: domain.RoleCustomer, Enabled: false},
	}}
	app := newApp(NewAuthMiddleware(svc, NewUserPrincipalLoader(users), nil), RequireAuthenticated())

	status, _ := call(t, app, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMiddlewareKeyUnavailableContinues(t *testing.T) {
	ks, err := keystore.New(nil)
	require.NoError(t, err)
	tok, _, err := token.NewPostQuantumProvider(ks, time.Hour).Issue("alice", 42)
	require.NoError(t, err)

	svc := token.NewService(token.NewPostQuantumVerifier(failingKeys{}), nil, nil)
	core, logs := observer.New(zap.DebugLevel)
	mw := NewAuthMiddleware(svc, ClaimsPrincipalLoader{}, zap.New(core))

	status, body := call(t, newApp(mw), "Bearer "+tok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
	require.Equal(t, 1, logs.FilterMessage("token could not be checked").Len())
	assert.Equal(t, "key_unavailable", logs.FilterMessage("token could not be checked").All()[0].ContextMap()["kind"])

	status, body = call(t, newApp(mw, RequireAuthenticated()), "Bearer "+tok)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body)

	status, body = call(t, newApp(mw, RequireRole(domain.RoleAdmin)), "Bearer "+tok)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body)

	status, body = call(t, newApp(mw, RequireAuthenticated()), "Bearer not.a.token")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body)
}

func TestMiddlewarePostQuantumPrincipal(t *testing.T) {
	ks, err := keystore.New(nil)
	require.NoError(t, err)
	svc := token.NewService(token.NewPostQuantumProvider(ks, time.Hour), nil, nil)
	tok, _, err := svc.Issue("alice", 42)
	require.NoError(t, err)

	var seen *Principal
	app := fiber.New(testConfig())
	app.Use(NewAuthMiddleware(svc, ClaimsPrincipalLoader{}, nil).Handle)
	app.Get("/", func(c *fiber.Ctx) error {
		seen, _ = PrincipalFromContext(c)
		return nil
	})

	status, _ := call(t, app, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, seen)
	assert.Equal(t, int64(42), seen.UserID)
	assert.Equal(t, domain.RoleCustomer, seen.Role)
	assert.True(t, seen.PostQuantum)
	assert.Equal(t, token.AlgorithmMLDSA65, seen.Algorithm)
}

func TestGuards(t *testing.T) {
	svc := hmacService()
	tok, _, err := svc.Issue("alice", 42)
	require.NoError(t, err)
	mw := NewAuthMiddleware(svc, ClaimsPrincipalLoader{}, nil)

	authed := newApp(mw, RequireAuthenticated())
	status, _ := call(t, authed, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, body := call(t, authed, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice|CUSTOMER", body)

	admins := newApp(mw, RequireRole(domain.RoleAdmin))
	status, _ = call(t, admins, "Bearer "+tok)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, admins, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	customers := newApp(mw, RequireRole(domain.RoleCustomer, domain.RoleAdmin))
	status, _ = call(t, customers, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, status)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("Bearer  abc "))
	assert.Equal(t, "", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("abc"))
	assert.Equal(t, "", BearerToken("Bearer"))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken(""))
}
