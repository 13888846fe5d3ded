package observability

import (
	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/observability/logger"
	"github.com/boothworks/prizebooth/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		provideRegistry,
		provideRegisterer,
		metrics.New,
	),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName:   cfg.AppName,
		Environment:   cfg.Environment,
		Version:       cfg.AppVersion,
		Level:         cfg.LogLevel,
		Format:        cfg.LogFormat,
		IncludeCaller: true,
	}
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer {
	return reg
}
