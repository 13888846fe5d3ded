// Package server is the HTTP surface: the single play endpoint the
// booth client calls, and the token-gated operator API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/boothworks/prizebooth/internal/adaptive"
	"github.com/boothworks/prizebooth/internal/clock"
	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/engine"
	obslogger "github.com/boothworks/prizebooth/internal/observability/logger"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/boothworks/prizebooth/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(cfg, log, registry)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	settings *config.SettingsHolder
	game     *engine.Engine
	pause    *engine.PauseController
	dist     *adaptive.Distribution
	prizeSvc domain.Service
	reports  *report.Generator
	clock    clock.Clock
	log      *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Settings *config.SettingsHolder
	Game     *engine.Engine
	Pause    *engine.PauseController
	Dist     *adaptive.Distribution
	PrizeSvc domain.Service
	Reports  *report.Generator
	Clock    clock.Clock
	Log      *zap.Logger
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		settings: p.Settings,
		game:     p.Game,
		pause:    p.Pause,
		dist:     p.Dist,
		prizeSvc: p.PrizeSvc,
		reports:  p.Reports,
		clock:    p.Clock,
		log:      p.Log.Named("server"),
	}

	s.registerAPIRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/play", s.Play)
	api.GET("/status", s.Status)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminRequired())

	admin.POST("/pause", s.PauseBooth)
	admin.POST("/resume", s.ResumeBooth)
	admin.PUT("/close-time", s.OverrideCloseTime)

	admin.GET("/prizes", s.ListPrizes)
	admin.POST("/prizes", s.CreatePrize)

	admin.PUT("/inventory", s.AdjustInventory)
	admin.POST("/reset", s.ResetDay)

	admin.GET("/plans", s.ListPlans)
	admin.PUT("/plan", s.SetActivePlan)

	admin.GET("/vouchers", s.VoucherCounts)
	admin.POST("/vouchers/import", s.ImportVouchers)
	admin.DELETE("/vouchers/:textureKey", s.DeleteUnusedVouchers)

	admin.GET("/scheduled", s.ListScheduledPrizes)
	admin.POST("/scheduled", s.CreateScheduledPrize)
	admin.DELETE("/scheduled/:id", s.DeleteScheduledPrize)
	admin.POST("/scheduled/award-due", s.AwardDueScheduledPrize)

	admin.GET("/stats", s.Stats)
	admin.GET("/report/daily", s.DailyReport)
	admin.PUT("/play-log/:id/print-status", s.MarkPrinted)
}
