package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Billing   BillingConfig
	Dashboard DashboardConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BillingConfig governs the monthly payment generation subsystem.
type BillingConfig struct {
	// TriggerEnabled starts the background cron trigger when true.
	TriggerEnabled bool
	// CronSpec schedules the periodic check for the current period.
	CronSpec string
	// MinTriggerInterval gates successive trigger checks.
	MinTriggerInterval time.Duration
	// RunLease is how long an in-progress claim blocks takeover before it
	// is considered stale.
	RunLease time.Duration
	// DueDay is the day of month payments fall due.
	DueDay int
	// GeneratedBy tags ledger rows written by the scheduler.
	GeneratedBy string
	// RecoveryWindow is the default number of trailing periods scanned.
	RecoveryWindow int
	// ProrationEnabled applies week-based proration to enrollments that
	// start inside the billed month.
	ProrationEnabled bool
}

// DashboardConfig governs cache tuning for the monitoring surface.
type DashboardConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	dueDay := v.GetInt("BILLING_DUE_DAY")
	if dueDay < 1 || dueDay > 28 {
		dueDay = 5
	}
	recoveryWindow := v.GetInt("BILLING_RECOVERY_WINDOW")
	if recoveryWindow < 1 {
		recoveryWindow = 3
	}
	cfg.Billing = BillingConfig{
		TriggerEnabled:     v.GetBool("BILLING_TRIGGER_ENABLED"),
		CronSpec:           v.GetString("BILLING_TRIGGER_CRON"),
		MinTriggerInterval: parseDuration(v.GetString("BILLING_TRIGGER_MIN_INTERVAL"), time.Hour),
		RunLease:           parseDuration(v.GetString("BILLING_RUN_LEASE"), 10*time.Minute),
		DueDay:             dueDay,
		GeneratedBy:        v.GetString("BILLING_GENERATED_BY"),
		RecoveryWindow:     recoveryWindow,
		ProrationEnabled:   v.GetBool("BILLING_PRORATION_ENABLED"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutor_center")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "tutor-center-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BILLING_TRIGGER_ENABLED", false)
	v.SetDefault("BILLING_TRIGGER_CRON", "0 * * * *")
	v.SetDefault("BILLING_TRIGGER_MIN_INTERVAL", "1h")
	v.SetDefault("BILLING_RUN_LEASE", "10m")
	v.SetDefault("BILLING_DUE_DAY", 5)
	v.SetDefault("BILLING_GENERATED_BY", "system")
	v.SetDefault("BILLING_RECOVERY_WINDOW", 3)
	v.SetDefault("BILLING_PRORATION_ENABLED", false)

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
