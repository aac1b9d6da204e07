package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gosched/internal/auth"
	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/logger"
)

type fakeUserStore struct {
	users     map[string]*domain.User
	passwords map[string]string
	lookupErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:     make(map[string]*domain.User),
		passwords: make(map[string]string),
	}
}

func (s *fakeUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.users[username], nil
}

func (s *fakeUserStore) VerifyPassword(ctx context.Context, username, password string) (*domain.User, error) {
	user := s.users[username]
	if user == nil || s.passwords[username] != password {
		return nil, nil
	}
	return user, nil
}

func newTestManager(t *testing.T, users *fakeUserStore) *auth.Manager {
	t.Helper()
	manager, err := auth.NewManager(&config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
	}, users, logger.NewNoOp())
	require.NoError(t, err)
	return manager
}

func seedUser(s *fakeUserStore, username, password string, admin bool) *domain.User {
	user := &domain.User{
		ID:         1,
		Username:   username,
		IsAdmin:    admin,
		CategoryID: 2,
	}
	s.users[username] = user
	s.passwords[username] = password
	return user
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	users := newFakeUserStore()
	seedUser(users, "alice", "s3cret", true)
	manager := newTestManager(t, users)

	token, user, err := manager.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)

	claims, err := manager.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, int64(2), claims.CategoryID)
	assert.True(t, claims.IsAdmin)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := newFakeUserStore()
	seedUser(users, "alice", "s3cret", false)
	manager := newTestManager(t, users)

	_, _, err := manager.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = manager.Login(context.Background(), "nobody", "s3cret")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	users := newFakeUserStore()
	seedUser(users, "alice", "s3cret", false)
	manager := newTestManager(t, users)

	token, _, err := manager.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	_, err = manager.Verify(context.Background(), token+"x")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyRejectsDeletedUser(t *testing.T) {
	users := newFakeUserStore()
	seedUser(users, "alice", "s3cret", false)
	manager := newTestManager(t, users)

	token, _, err := manager.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	delete(users.users, "alice")
	_, err = manager.Verify(context.Background(), token)
	require.ErrorIs(t, err, auth.ErrUnknownUser)
}

func TestVerifyTrustsClaimsOnStoreFailure(t *testing.T) {
	users := newFakeUserStore()
	seedUser(users, "alice", "s3cret", false)
	manager := newTestManager(t, users)

	token, _, err := manager.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	users.lookupErr = errors.New("connection refused")
	claims, err := manager.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func newTestRouter(manager *auth.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	protected := router.Group("/", manager.RequireAuth())
	protected.GET("/me", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"username": claims.Username})
	})
	protected.GET("/admin", manager.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequireAuthMiddleware(t *testing.T) {
	users := newFakeUserStore()
	seedUser(users, "alice", "s3cret", false)
	manager := newTestManager(t, users)
	router := newTestRouter(manager)

	token, _, err := manager.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	// No token.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bearer header.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")

	// Cookie fallback.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdminMiddleware(t *testing.T) {
	users := newFakeUserStore()
	seedUser(users, "alice", "s3cret", false)
	admin := seedUser(users, "root", "hunter2", true)
	admin.ID = 2
	manager := newTestManager(t, users)
	router := newTestRouter(manager)

	userToken, _, err := manager.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	adminToken, _, err := manager.Login(context.Background(), "root", "hunter2")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
