package catalogapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencga/catalog-core/internal/catalogconfig"
)

func TestHealthEndpoint_AlwaysUp(t *testing.T) {
	r := chi.NewRouter()
	cfg := &catalogconfig.Config{}
	AddHealthEndpoint(r, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}

func TestHealthEndpoint_HonorsContextPath(t *testing.T) {
	r := chi.NewRouter()
	cfg := &catalogconfig.Config{}
	cfg.Server.ContextPath = "/catalog"
	AddHealthEndpoint(r, cfg)

	req := httptest.NewRequest(http.MethodGet, "/catalog/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessEndpoint_UpWhenPingSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(nil)

	r := chi.NewRouter()
	cfg := &catalogconfig.Config{}
	AddReadinessEndpoint(r, cfg, db)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadinessEndpoint_DownWhenPingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(assertErr{})

	r := chi.NewRouter()
	cfg := &catalogconfig.Config{}
	AddReadinessEndpoint(r, cfg, db)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type assertErr struct{}

func (assertErr) Error() string { return "connection refused" }
