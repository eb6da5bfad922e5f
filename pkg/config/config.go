package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Inventory    InventoryConfig
	HTTP         HTTPConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	} else if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Inventory.LowStockThreshold <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvLowStockThreshold)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`
	// SQLitePath is used when FeatureFlags.UseSQLite is on.
	SQLitePath string `envconfig:"STOREFRONT_DB_SQLITE_PATH" default:"storefront.db"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type InventoryConfig struct {
	LowStockThreshold int    `envconfig:"STOREFRONT_LOW_STOCK_THRESHOLD" default:"10"`
	LedgerDeadLetter  string `envconfig:"STOREFRONT_LEDGER_DEAD_LETTER_KEY" default:"ledger:dead_letter"`
	ReplayBatchSize   int    `envconfig:"STOREFRONT_LEDGER_REPLAY_BATCH_SIZE" default:"100"`
}

type HTTPConfig struct {
	IdempotencyTTL     time.Duration `envconfig:"STOREFRONT_IDEMPOTENCY_TTL" default:"24h"`
	CORSAllowedOrigins []string      `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"*"`
	ReadHeaderTimeout  time.Duration `envconfig:"STOREFRONT_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout    time.Duration `envconfig:"STOREFRONT_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_TOPIC" default:"sf-domain-events"`
	OrdersTopic string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"sf-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig sets the worker tick and the cadence of each scheduled job.
type CronConfig struct {
	Tick                time.Duration `envconfig:"STOREFRONT_CRON_TICK" default:"1m"`
	LockTTL             time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"10m"`
	LowStockScanEvery   time.Duration `envconfig:"STOREFRONT_CRON_LOW_STOCK_SCAN_EVERY" default:"1h"`
	ReconcileEvery      time.Duration `envconfig:"STOREFRONT_CRON_RECONCILE_EVERY" default:"24h"`
	OrderExpiryAfter    time.Duration `envconfig:"STOREFRONT_ORDER_EXPIRY_AFTER" default:"72h"`
	OutboxRetentionDays int           `envconfig:"STOREFRONT_OUTBOX_RETENTION_DAYS" default:"14"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
