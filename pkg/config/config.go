package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Storage      StorageConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	driver, err := enums.ParseStorageDriver(c.Storage.Driver)
	if err != nil {
		return fmt.Errorf("%s: %w", EnvStorageDriver, err)
	}

	switch driver {
	case enums.StorageDriverSQL:
		if err := c.DB.ensureDSN(); err != nil {
			return err
		}
	case enums.StorageDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis store", EnvRedisURL, EnvRedisAddr)
		}
	}

	if c.Cart.DefaultTaxRate.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvCartDefaultTaxRate)
	}
	if c.Cart.ExpiryMinutes <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartExpiryMinutes)
	}
	if c.Cart.RetentionHours <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartRetentionHours)
	}
	return nil
}

type AppConfig struct {
	Env             string        `envconfig:"INTELLISALES_APP_ENV" required:"true"`
	Port            string        `envconfig:"INTELLISALES_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"INTELLISALES_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"INTELLISALES_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"INTELLISALES_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"INTELLISALES_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StorageConfig struct {
	Driver string `envconfig:"INTELLISALES_STORAGE_DRIVER" default:"memory"`
}

// StorageDriver returns the parsed driver. Load has already validated it.
func (s StorageConfig) StorageDriver() enums.StorageDriver {
	driver, err := enums.ParseStorageDriver(s.Driver)
	if err != nil {
		return enums.StorageDriverMemory
	}
	return driver
}

type DBConfig struct {
	DSN    string `envconfig:"INTELLISALES_DB_DSN"`
	Driver string `envconfig:"INTELLISALES_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"INTELLISALES_DB_HOST"`
	LegacyPort     int    `envconfig:"INTELLISALES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"INTELLISALES_DB_USER"`
	LegacyPassword string `envconfig:"INTELLISALES_DB_PASSWORD"`
	LegacyName     string `envconfig:"INTELLISALES_DB_NAME"`
	LegacySSLMode  string `envconfig:"INTELLISALES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INTELLISALES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"INTELLISALES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INTELLISALES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INTELLISALES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the store runs on an embedded sqlite file.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL           string        `envconfig:"INTELLISALES_REDIS_URL"`
	Address       string        `envconfig:"INTELLISALES_REDIS_ADDR"`
	Password      string        `envconfig:"INTELLISALES_REDIS_PASSWORD"`
	DB            int           `envconfig:"INTELLISALES_REDIS_DB" default:"0"`
	PoolSize      int           `envconfig:"INTELLISALES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns  int           `envconfig:"INTELLISALES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout   time.Duration `envconfig:"INTELLISALES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout   time.Duration `envconfig:"INTELLISALES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout  time.Duration `envconfig:"INTELLISALES_REDIS_WRITE_TIMEOUT" default:"5s"`
	ChannelBuffer int           `envconfig:"INTELLISALES_REDIS_CHANNEL_BUFFER" default:"100"`
}

type CartConfig struct {
	Namespace      string          `envconfig:"INTELLISALES_CART_NAMESPACE" default:"pos"`
	DefaultTaxRate decimal.Decimal `envconfig:"INTELLISALES_CART_DEFAULT_TAX_RATE" default:"0.08"`
	ExpiryMinutes  int             `envconfig:"INTELLISALES_CART_EXPIRY_MINUTES" default:"1440"`
	AllowBackorder bool            `envconfig:"INTELLISALES_CART_ALLOW_BACKORDER" default:"false"`
	CurrencySymbol string          `envconfig:"INTELLISALES_CART_CURRENCY_SYMBOL" default:"$"`
	RetentionHours int             `envconfig:"INTELLISALES_CART_RETENTION_HOURS" default:"168"`
}

// Expiry returns the maximum age of a stored cart.
func (c CartConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

// Retention is how long an untouched stored cart survives the sweep.
func (c CartConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

type CronConfig struct {
	Interval time.Duration `envconfig:"INTELLISALES_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"INTELLISALES_CRON_LOCK_TTL" default:"30m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"INTELLISALES_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
