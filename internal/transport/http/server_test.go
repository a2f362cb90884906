package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NepsyCrawler/internal/app"
	"github.com/NepsyCrawler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunOne(ctx context.Context, entity string, category domain.Category, opts domain.SyncOptions) app.Report {
	args := m.Called(entity, category, opts)
	return args.Get(0).(app.Report)
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(new(mockRunner), domain.SyncOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(new(mockRunner), domain.SyncOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Sync(t *testing.T) {
	runner := new(mockRunner)
	runner.On("RunOne", "NABIL", domain.CategoryPrices, domain.SyncOptions{FullRescan: true, MaxPages: 7}).Return(app.Report{
		Entity:   "NABIL",
		Category: domain.CategoryPrices,
		Result:   domain.SyncResult{Added: 3, Fetched: 4},
	})

	rec := httptest.NewRecorder()
	NewRouter(runner, domain.SyncOptions{MaxPages: 7}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/prices/nabil?full=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body syncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Added)
	assert.Equal(t, "NABIL prices: added 3", body.Report)
	runner.AssertExpectations(t)
}

func TestRouter_SyncErrors(t *testing.T) {
	runner := new(mockRunner)
	runner.On("RunOne", domain.FloorsheetEntity, domain.CategoryFloorsheet, domain.SyncOptions{}).Return(app.Report{
		Entity: domain.FloorsheetEntity, Category: domain.CategoryFloorsheet, Err: app.ErrAlreadyRunning,
	})
	runner.On("RunOne", "HBL", domain.CategoryDividends, domain.SyncOptions{}).Return(app.Report{
		Entity: "HBL", Category: domain.CategoryDividends, Err: errors.New("upstream 500"),
	})
	router := NewRouter(runner, domain.SyncOptions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/floorsheet/today", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/dividends/HBL", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/news/HBL", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync/prices/HBL", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_SyncRejectsInvalidFull(t *testing.T) {
	runner := new(mockRunner)

	rec := httptest.NewRecorder()
	NewRouter(runner, domain.SyncOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/prices/nabil?full=yes", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	runner.AssertNotCalled(t, "RunOne", mock.Anything, mock.Anything, mock.Anything)
}
