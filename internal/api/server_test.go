package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-scraper/internal/models"
	"github.com/insight-scraper/internal/storage"
)

type fakeAccountReader struct {
	accounts map[string]*models.Account
	listErr  error
}

func (f *fakeAccountReader) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	if a, ok := f.accounts[accountID]; ok {
		return a, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeAccountReader) List(ctx context.Context, limit int) ([]*models.Account, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Account
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

type fakeJobReader struct {
	jobs map[string]*models.JobState
}

func (f *fakeJobReader) GetByID(ctx context.Context, jobID string) (*models.JobState, error) {
	if j, ok := f.jobs[jobID]; ok {
		return j, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeJobReader) ListRecent(ctx context.Context, limit int) ([]*models.JobState, error) {
	var out []*models.JobState
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

type fakeScraperReader struct {
	mappings []*models.ScraperMapping
	active   int
}

func (f *fakeScraperReader) List(ctx context.Context, limit int) ([]*models.ScraperMapping, error) {
	return f.mappings, nil
}

func (f *fakeScraperReader) ActiveCount(ctx context.Context) (int, error) {
	return f.active, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func newTestServer(accounts *fakeAccountReader, jobs *fakeJobReader, scrapers *fakeScraperReader, db, cache *fakePinger) *Server {
	var dbPinger, cachePinger Pinger
	if db != nil {
		dbPinger = db
	}
	if cache != nil {
		cachePinger = cache
	}
	return NewServer(
		&ServerConfig{Host: "127.0.0.1", Port: "0"},
		accounts, jobs, scrapers, dbPinger, cachePinger,
	)
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthHealthy(t *testing.T) {
	s := newTestServer(&fakeAccountReader{}, &fakeJobReader{}, &fakeScraperReader{}, &fakePinger{}, &fakePinger{})

	rec := doRequest(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHealthDegraded(t *testing.T) {
	s := newTestServer(&fakeAccountReader{}, &fakeJobReader{}, &fakeScraperReader{},
		&fakePinger{err: errors.New("connection refused")}, nil)

	rec := doRequest(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestListAccounts(t *testing.T) {
	accounts := &fakeAccountReader{accounts: map[string]*models.Account{
		"a1": {ID: "a1", Username: "alice", IsActive: true, CurrentStatus: models.AccountStatusIdle},
	}}
	s := newTestServer(accounts, &fakeJobReader{}, &fakeScraperReader{}, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/accounts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Accounts []*models.Account `json:"accounts"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Accounts, 1)
	assert.Equal(t, "alice", body.Accounts[0].Username)
}

func TestListAccountsInvalidLimit(t *testing.T) {
	s := newTestServer(&fakeAccountReader{}, &fakeJobReader{}, &fakeScraperReader{}, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/accounts?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/accounts?limit=banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAccountNotFound(t *testing.T) {
	s := newTestServer(&fakeAccountReader{}, &fakeJobReader{}, &fakeScraperReader{}, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/accounts/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeNotFound, body.Error.Code)
}

func TestGetJob(t *testing.T) {
	checkpoint := models.CheckpointTweetsFetched
	jobs := &fakeJobReader{jobs: map[string]*models.JobState{
		"job-1": {
			JobID:          "job-1",
			AccountID:      "a1",
			JobType:        "profile_scrape",
			LastCheckpoint: &checkpoint,
			Status:         models.JobStatusCompleted,
			StartedAt:      time.Now(),
		},
	}}
	s := newTestServer(&fakeAccountReader{}, jobs, &fakeScraperReader{}, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/jobs/job-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var job models.JobState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.LastCheckpoint)
	assert.Equal(t, models.CheckpointTweetsFetched, *job.LastCheckpoint)
}

func TestListScrapers(t *testing.T) {
	scrapers := &fakeScraperReader{
		mappings: []*models.ScraperMapping{
			{ScraperID: "s1", AccountID: "a1", Status: models.ScraperStatusActive},
			{ScraperID: "s2", AccountID: "a2", Status: models.ScraperStatusIdle},
		},
		active: 1,
	}
	s := newTestServer(&fakeAccountReader{}, &fakeJobReader{}, scrapers, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/scrapers")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count       int `json:"count"`
		ActiveCount int `json:"activeCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 1, body.ActiveCount)
}

func TestInternalErrorResponse(t *testing.T) {
	accounts := &fakeAccountReader{listErr: errors.New("connection refused")}
	s := newTestServer(accounts, &fakeJobReader{}, &fakeScraperReader{}, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/accounts")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeInternalError, body.Error.Code)
}
