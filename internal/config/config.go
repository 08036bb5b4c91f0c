package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/segyhp/loan-engine/pkg/utils"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	RepayPolicyAny          = "any"
	RepayPolicyOwner        = "owner"
	RepayPolicyOwnerOrAdmin = "owner_or_admin"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Auth      AuthConfig      `mapstructure:",squash"`
	Loan      LoanConfig      `mapstructure:",squash"`
	Cache     CacheConfig     `mapstructure:",squash"`
	Lock      LockConfig      `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"STORE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	TxTimeout       time.Duration `mapstructure:"DB_TX_TIMEOUT"`
	AutoMigrate     bool          `mapstructure:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"REDIS_ENABLED"`
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	ReminderSpec   string        `mapstructure:"SCHEDULER_REMINDER_SPEC"`
	OverdueSpec    string        `mapstructure:"SCHEDULER_OVERDUE_SPEC"`
	ReminderWindow time.Duration `mapstructure:"REMINDER_WINDOW"`
	Timezone       string        `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"JWT_SECRET"`
}

type LoanConfig struct {
	AmountMin   string `mapstructure:"AMOUNT_MIN"`
	AmountMax   string `mapstructure:"AMOUNT_MAX"`
	TermMin     int    `mapstructure:"TERM_MIN"`
	TermMax     int    `mapstructure:"TERM_MAX"`
	RepayPolicy string `mapstructure:"REPAY_POLICY"`
}

type CacheConfig struct {
	LoanTTL time.Duration `mapstructure:"CACHE_LOAN_TTL"`
}

type LockConfig struct {
	Enabled    bool          `mapstructure:"LOCK_ENABLED"`
	Expiry     time.Duration `mapstructure:"LOCK_EXPIRY"`
	Tries      int           `mapstructure:"LOCK_TRIES"`
	RetryDelay time.Duration `mapstructure:"LOCK_RETRY_DELAY"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "loan_engine")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_TX_TIMEOUT", "5s")
	v.SetDefault("DATABASE_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SCHEDULER_REMINDER_SPEC", "0 0 9 * * *")
	v.SetDefault("SCHEDULER_OVERDUE_SPEC", "0 0 0 * * *")
	v.SetDefault("REMINDER_WINDOW", "72h")
	v.SetDefault("SCHEDULER_TIMEZONE", "UTC")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("AMOUNT_MIN", "1000")
	v.SetDefault("AMOUNT_MAX", "1000000")
	v.SetDefault("TERM_MIN", 1)
	v.SetDefault("TERM_MAX", 52)
	v.SetDefault("REPAY_POLICY", RepayPolicyOwnerOrAdmin)

	v.SetDefault("CACHE_LOAN_TTL", "10m")

	v.SetDefault("LOCK_ENABLED", false)
	v.SetDefault("LOCK_EXPIRY", "10s")
	v.SetDefault("LOCK_TRIES", 3)
	v.SetDefault("LOCK_RETRY_DELAY", "200ms")

	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case StoreDriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}

	if c.Database.TxTimeout <= 0 {
		return fmt.Errorf("DB_TX_TIMEOUT must be greater than 0")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	amountMin, err := decimal.NewFromString(c.Loan.AmountMin)
	if err != nil {
		return fmt.Errorf("AMOUNT_MIN must be a valid decimal: %w", err)
	}

	amountMax, err := decimal.NewFromString(c.Loan.AmountMax)
	if err != nil {
		return fmt.Errorf("AMOUNT_MAX must be a valid decimal: %w", err)
	}

	if !amountMin.IsPositive() || amountMax.LessThan(amountMin) {
		return fmt.Errorf("AMOUNT_MIN must be positive and not greater than AMOUNT_MAX")
	}

	if c.Loan.TermMin <= 0 || c.Loan.TermMax < c.Loan.TermMin {
		return fmt.Errorf("TERM_MIN must be positive and not greater than TERM_MAX")
	}

	if floor := utils.MinimumPrincipal(c.Loan.TermMax); amountMin.LessThan(floor) {
		return fmt.Errorf("AMOUNT_MIN must be at least %s so a %d week schedule has no installment below 0.01",
			floor.StringFixed(2), c.Loan.TermMax)
	}

	switch c.Loan.RepayPolicy {
	case RepayPolicyAny, RepayPolicyOwner, RepayPolicyOwnerOrAdmin:
	default:
		return fmt.Errorf("REPAY_POLICY must be one of %q, %q, %q",
			RepayPolicyAny, RepayPolicyOwner, RepayPolicyOwnerOrAdmin)
	}

	if c.Lock.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("LOCK_ENABLED requires REDIS_ENABLED")
	}

	if c.Lock.Tries < 1 {
		return fmt.Errorf("LOCK_TRIES must be at least 1")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// DSN returns the postgres connection string, preferring DATABASE_URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// Addr returns the redis host:port address.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// AmountBounds returns the inclusive loan amount range.
func (l LoanConfig) AmountBounds() (decimal.Decimal, decimal.Decimal) {
	amountMin, _ := decimal.NewFromString(l.AmountMin)
	amountMax, _ := decimal.NewFromString(l.AmountMax)
	return amountMin, amountMax
}

// Location returns the scheduler timezone.
func (s SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
