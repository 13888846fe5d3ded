package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/boothworks/prizebooth/pkg/db"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds process-level configuration. Booth behavior (operating
// hours, prize catalog, algorithm parameters) lives in the settings file
// managed by SettingsHolder, not here.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	AdminToken  string

	SettingsPaths []string

	LogLevel  string
	LogFormat string

	DBType        string
	DBPath        string
	DBHost        string
	DBPort        string
	DBName        string
	DBUser        string
	DBPassword    string
	DBSSLMode     string
	DBMaxIdleConn int
	DBMaxOpenConn int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:       getenv("APP_SERVICE", "prizebooth"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		AdminToken:    strings.TrimSpace(getenv("ADMIN_TOKEN", "")),
		SettingsPaths: settingsPaths(),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "json"),
		DBType:        getenv("DATABASE_TYPE", "sqlite"),
		DBPath:        getenv("DATABASE_PATH", "content/prizebooth.db"),
		DBHost:        getenv("DATABASE_HOST", "localhost"),
		DBPort:        getenv("DATABASE_PORT", "5432"),
		DBName:        getenv("DATABASE_NAME", "prizebooth"),
		DBUser:        getenv("DATABASE_USER", "prizebooth"),
		DBPassword:    getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:     getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn: getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn: getenvInt("DATABASE_MAX_OPEN_CONN", 1),
	}
}

func settingsPaths() []string {
	if p := strings.TrimSpace(os.Getenv("SETTINGS_PATH")); p != "" {
		return []string{p}
	}
	return []string{"/var/lib/prizebooth/config", "/etc/prizebooth", "content", "."}
}

// DBConfig maps the env config onto the db package config.
func DBConfig(cfg Config) db.Config {
	return db.Config{
		Type:        cfg.DBType,
		Path:        cfg.DBPath,
		Host:        cfg.DBHost,
		Port:        cfg.DBPort,
		Name:        cfg.DBName,
		User:        cfg.DBUser,
		Password:    cfg.DBPassword,
		SSLMode:     cfg.DBSSLMode,
		MaxIdleConn: cfg.DBMaxIdleConn,
		MaxOpenConn: cfg.DBMaxOpenConn,
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(DBConfig),
	fx.Provide(NewSettingsHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
