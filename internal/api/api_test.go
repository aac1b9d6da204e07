package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gosched/internal/api"
	"github.com/jonesrussell/gosched/internal/auth"
	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/metrics"
	"github.com/jonesrussell/gosched/internal/registry"
	"github.com/jonesrussell/gosched/internal/scheduler"
	"github.com/jonesrussell/gosched/internal/store"
)

// credentialStore backs the auth manager with fixed accounts.
type credentialStore struct {
	users map[string]*domain.User
}

func (s *credentialStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users[username], nil
}

func (s *credentialStore) VerifyPassword(ctx context.Context, username, password string) (*domain.User, error) {
	user := s.users[username]
	if user == nil || password != "pw" {
		return nil, nil
	}
	return user, nil
}

// fakeEngine records calls and serves jobs from a map.
type fakeEngine struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	addErr    error
	lastActor scheduler.Actor
	lastScope int64
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{jobs: make(map[string]*domain.Job)}
}

func (e *fakeEngine) AddJob(ctx context.Context, params scheduler.JobParams, actor scheduler.Actor) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.addErr != nil {
		return "", e.addErr
	}
	e.lastActor = actor
	id := "0123456789abcdef0123456789abcdef"
	e.jobs[id] = &domain.Job{
		ID:             id,
		Name:           params.Name,
		JobClassString: params.JobClassString,
		PubArgs:        params.PubArgs,
		Trigger:        params.Trigger,
	}
	return id, nil
}

func (e *fakeEngine) ModifyJob(ctx context.Context, jobID string, params scheduler.JobParams, actor scheduler.Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[jobID]
	if !ok {
		return scheduler.ErrJobNotFound
	}
	job.Name = params.Name
	return nil
}

func (e *fakeEngine) RemoveJob(ctx context.Context, jobID string, actor scheduler.Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.jobs[jobID]; !ok {
		return scheduler.ErrJobNotFound
	}
	delete(e.jobs, jobID)
	return nil
}

func (e *fakeEngine) PauseJob(ctx context.Context, jobID string, actor scheduler.Actor) error {
	return e.setPaused(jobID, true)
}

func (e *fakeEngine) ResumeJob(ctx context.Context, jobID string, actor scheduler.Actor) error {
	return e.setPaused(jobID, false)
}

func (e *fakeEngine) setPaused(jobID string, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[jobID]
	if !ok {
		return scheduler.ErrJobNotFound
	}
	job.Paused = paused
	return nil
}

func (e *fakeEngine) RunJob(ctx context.Context, jobID string, actor scheduler.Actor) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.jobs[jobID]; !ok {
		return "", scheduler.ErrJobNotFound
	}
	e.lastActor = actor
	return "fedcba9876543210fedcba9876543210", nil
}

func (e *fakeEngine) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[jobID]
	if !ok {
		return nil, scheduler.ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

func (e *fakeEngine) ListJobs(ctx context.Context, categoryID int64) ([]*domain.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastScope = categoryID
	var out []*domain.Job
	for _, job := range e.jobs {
		clone := *job
		out = append(out, &clone)
	}
	return out, nil
}

type fakeExecutions struct {
	mu        sync.Mutex
	rows      map[string]*domain.Execution
	lastStart time.Time
	lastEnd   time.Time
	lastScope int64
}

func (s *fakeExecutions) GetByID(ctx context.Context, id string) (*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id], nil
}

func (s *fakeExecutions) ListInRange(ctx context.Context, start, end time.Time, categoryID int64) ([]*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStart, s.lastEnd, s.lastScope = start, end, categoryID
	var out []*domain.Execution
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

type fakeAudits struct {
	rows []*domain.AuditLog
}

func (s *fakeAudits) ListInRange(ctx context.Context, start, end time.Time, categoryID int64) ([]*domain.AuditLog, error) {
	return s.rows, nil
}

type fakeCategories struct {
	mu   sync.Mutex
	rows map[int64]*domain.Category
	next int64
}

func (s *fakeCategories) Add(ctx context.Context, category *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.Name == category.Name {
			return store.ErrDuplicate
		}
	}
	s.next++
	category.ID = s.next
	s.rows[category.ID] = category
	return nil
}

func (s *fakeCategories) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id], nil
}

func (s *fakeCategories) List(ctx context.Context) ([]*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Category
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *fakeCategories) Update(ctx context.Context, category *domain.Category) error {
	if category.ID == domain.UnscopedCategoryID {
		return store.ErrReservedCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[category.ID]; !ok {
		return store.ErrNotFound
	}
	s.rows[category.ID] = category
	return nil
}

func (s *fakeCategories) Delete(ctx context.Context, id int64) error {
	if id == domain.UnscopedCategoryID {
		return store.ErrReservedCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

type fakeUsers struct {
	mu   sync.Mutex
	rows map[int64]*domain.User
	next int64
}

func (s *fakeUsers) Add(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.Username == user.Username {
			return store.ErrDuplicate
		}
	}
	s.next++
	user.ID = s.next
	s.rows[user.ID] = user
	return nil
}

func (s *fakeUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id], nil
}

func (s *fakeUsers) List(ctx context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.User
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *fakeUsers) Update(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[user.ID]; !ok {
		return store.ErrNotFound
	}
	s.rows[user.ID] = user
	return nil
}

func (s *fakeUsers) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

type apiFixture struct {
	router     *gin.Engine
	engine     *fakeEngine
	executions *fakeExecutions
	audits     *fakeAudits
	categories *fakeCategories
	users      *fakeUsers
	adminToken string
	aliceToken string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	admin := &domain.User{ID: 1, Username: "admin", IsAdmin: true}
	alice := &domain.User{ID: 2, Username: "alice", CategoryID: 7}
	creds := &credentialStore{users: map[string]*domain.User{
		"admin": admin,
		"alice": alice,
	}}

	manager, err := auth.NewManager(&config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
	}, creds, logger.NewNoOp())
	require.NoError(t, err)

	adminToken, _, err := manager.Login(context.Background(), "admin", "pw")
	require.NoError(t, err)
	aliceToken, _, err := manager.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)

	f := &apiFixture{
		engine:     newFakeEngine(),
		executions: &fakeExecutions{rows: make(map[string]*domain.Execution)},
		audits:     &fakeAudits{},
		categories: &fakeCategories{rows: make(map[int64]*domain.Category)},
		users: &fakeUsers{rows: map[int64]*domain.User{
			1: admin,
			2: alice,
		}, next: 2},
		adminToken: adminToken,
		aliceToken: aliceToken,
	}

	f.router = api.SetupRouter(api.Deps{
		Logger:     logger.NewNoOp(),
		Auth:       manager,
		Engine:     f.engine,
		Executions: f.executions,
		AuditLogs:  f.audits,
		Categories: f.categories,
		Users:      f.users,
		Registry:   registry.New(),
		Metrics:    metrics.New(),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestLoginAndVerify(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	token, _ := payload["token"].(string)
	require.NotEmpty(t, token)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"admin"`)
}

func TestLoginCookieMatchesConfiguredExpiry(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	var session *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == auth.CookieName {
			session = cookie
		}
	}
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Value)
	// The fixture configures a one hour expiry, not the 24h default.
	assert.Equal(t, int(time.Hour.Seconds()), session.MaxAge)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJobLifecycleRoutes(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/jobs", f.adminToken, gin.H{
		"name":             "t",
		"job_class_string": "jobs.echo",
		"pub_args":         []string{"hi"},
		"minute":           "*",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := decode(t, rec)["job_id"].(string)
	require.Len(t, id, 32)

	rec = f.do(t, http.MethodGet, "/api/v1/jobs", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobs"`)

	rec = f.do(t, http.MethodGet, "/api/v1/jobs/"+id, f.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/jobs/unknown", f.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/jobs/"+id, f.adminToken, gin.H{
		"name":             "renamed",
		"job_class_string": "jobs.echo",
		"minute":           "*",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/v1/jobs/"+id, f.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.engine.jobs[id].Paused)

	rec = f.do(t, http.MethodOptions, "/api/v1/jobs/"+id, f.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.engine.jobs[id].Paused)

	rec = f.do(t, http.MethodDelete, "/api/v1/jobs/"+id, f.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateJobValidationError(t *testing.T) {
	f := newAPIFixture(t)
	f.engine.addErr = scheduler.ErrValidation

	rec := f.do(t, http.MethodPost, "/api/v1/jobs", f.adminToken, gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobsScopedByCallerCategory(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/jobs", f.aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), f.engine.lastScope)

	rec = f.do(t, http.MethodGet, "/api/v1/jobs", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), f.engine.lastScope)
}

func TestManualRunRoute(t *testing.T) {
	f := newAPIFixture(t)
	id, err := f.engine.AddJob(context.Background(), scheduler.JobParams{Name: "t"}, scheduler.Actor{})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/executions/"+id, f.aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "execution_id")
	assert.Equal(t, scheduler.Actor{Username: "alice", CategoryID: 7}, f.engine.lastActor)

	rec = f.do(t, http.MethodPost, "/api/v1/executions/unknown", f.aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecutionListingDefaultsToLastTenMinutes(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/executions", f.aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), f.executions.lastScope)
	assert.InDelta(t, (10 * time.Minute).Seconds(), f.executions.lastEnd.Sub(f.executions.lastStart).Seconds(), 1)

	rec = f.do(t, http.MethodGet, "/api/v1/executions?time_range_start=not-a-time", f.aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet,
		"/api/v1/executions?time_range_start=2026-01-02T10:00:00Z&time_range_end=2026-01-02T11:00:00Z",
		f.aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), f.executions.lastStart)
}

func TestExecutionListingAttachesJobSummary(t *testing.T) {
	f := newAPIFixture(t)
	id, err := f.engine.AddJob(context.Background(), scheduler.JobParams{
		Name:           "t",
		JobClassString: "jobs.echo",
	}, scheduler.Actor{})
	require.NoError(t, err)

	f.executions.rows["e1"] = &domain.Execution{ID: "e1", JobID: id, State: domain.ExecutionSucceeded}

	rec := f.do(t, http.MethodGet, "/api/v1/executions/e1", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"job_class_string":"jobs.echo"`)
	assert.Contains(t, rec.Body.String(), `"state":"succeeded"`)

	rec = f.do(t, http.MethodGet, "/api/v1/executions/missing", f.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogsRoute(t *testing.T) {
	f := newAPIFixture(t)
	f.audits.rows = []*domain.AuditLog{
		{JobID: "j1", JobName: "t", Event: domain.AuditAdded, User: "admin"},
	}

	rec := f.do(t, http.MethodGet, "/api/v1/logs", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, float64(1), payload["total"])
}

func TestCategoryWritesAreAdminOnly(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/categories", f.aliceToken, gin.H{"name": "ops"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/categories", f.adminToken, gin.H{"name": "ops"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate name conflicts.
	rec = f.do(t, http.MethodPost, "/api/v1/categories", f.adminToken, gin.H{"name": "ops"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The reserved category rejects mutation.
	rec = f.do(t, http.MethodDelete, "/api/v1/categories/0", f.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Reads are open to any authenticated user.
	rec = f.do(t, http.MethodGet, "/api/v1/categories", f.aliceToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserManagement(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/users", f.aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/users/current", f.aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = f.do(t, http.MethodPost, "/api/v1/users", f.adminToken, gin.H{
		"username":    "bob",
		"password":    "s3cret",
		"category_id": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Stored hash must be bcrypt, never the raw password.
	created, err := f.users.GetByID(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEqual(t, "s3cret", created.PasswordHash)
	assert.NotEmpty(t, created.PasswordHash)

	rec = f.do(t, http.MethodPost, "/api/v1/users", f.adminToken, gin.H{
		"username": "bob",
		"password": "other",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/users/3", f.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/users/99", f.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
