package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boothworks/prizebooth/internal/adaptive"
	"github.com/boothworks/prizebooth/internal/clock"
	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/engine"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/boothworks/prizebooth/internal/prize/repository"
	prizeservice "github.com/boothworks/prizebooth/internal/prize/service"
	"github.com/boothworks/prizebooth/internal/report"

	obsmetrics "github.com/boothworks/prizebooth/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAdminToken = "test-admin-token"

func newTestServer(t *testing.T) (*Server, *engine.PauseController) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Environment: "test",
		AdminToken:  testAdminToken,
	}

	holder, err := config.NewStaticSettingsHolder(config.DefaultSettings())
	require.NoError(t, err)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	repo := repository.Provide()
	dist := adaptive.New(holder, repo, log)
	pause := engine.NewPauseController(log)
	registry := prometheus.NewRegistry()

	loc, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, time.June, 15, 12, 0, 0, 0, loc))

	game := engine.New(engine.Params{
		DB:       db,
		Repo:     repo,
		Dist:     dist,
		Settings: holder,
		Pause:    pause,
		Clock:    fake,
		GenID:    node,
		Log:      log,
		Metrics:  obsmetrics.New(registry),
	})
	require.NoError(t, game.Initialize(context.Background()))

	svc := prizeservice.New(prizeservice.Params{
		DB:       db,
		Repo:     repo,
		Settings: holder,
		Clock:    fake,
		GenID:    node,
		Log:      log,
	})

	srv := NewServer(ServerParams{
		Gin:      NewEngine(cfg, log, registry),
		Cfg:      cfg,
		Settings: holder,
		Game:     game,
		Pause:    pause,
		Dist:     dist,
		PrizeSvc: svc,
		Reports:  report.NewGenerator(svc, holder, log),
		Clock:    fake,
		Log:      log,
	})
	return srv, pause
}

func doRequest(srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlayReturnsOutcome(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodPost, "/api/play", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type"`)
}

func TestPlayWhilePaused(t *testing.T) {
	srv, pause := newTestServer(t)
	pause.Pause("vouchers depleted")

	w := doRequest(srv, http.MethodPost, "/api/play", "", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "paused")
	assert.Contains(t, w.Body.String(), "vouchers depleted")
}

func TestAdminRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/admin/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(srv, http.MethodGet, "/admin/stats", "wrong-token", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(srv, http.MethodGet, "/admin/stats", testAdminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminPauseResume(t *testing.T) {
	srv, pause := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/admin/pause", testAdminToken, `{"reason":"lunch break"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, pause.IsPaused())
	assert.Equal(t, "lunch break", pause.Reason())

	w = doRequest(srv, http.MethodPost, "/admin/resume", testAdminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, pause.IsPaused())
}

func TestAdminCloseTimeOverride(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPut, "/admin/close-time", testAdminToken, `{"close_time":"18:00"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "18:00")

	w = doRequest(srv, http.MethodPut, "/admin/close-time", testAdminToken, `{"close_time":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminSetPlanUnknown(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodPut, "/admin/plan", testAdminToken, `{"plan":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodGet, "/api/status", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active_plan":"standard"`)
	assert.Contains(t, w.Body.String(), `"date":"2026-06-15"`)
}
