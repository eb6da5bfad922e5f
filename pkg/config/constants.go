package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN      = "STOREFRONT_DB_DSN"
	EnvDBHost     = "STOREFRONT_DB_HOST"
	EnvDBUser     = "STOREFRONT_DB_USER"
	EnvDBName     = "STOREFRONT_DB_NAME"
	EnvDBPassword = "STOREFRONT_DB_PASSWORD"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvUseSQLite   = "STOREFRONT_USE_SQLITE"
	EnvAutoMigrate = "STOREFRONT_AUTO_MIGRATE"

	EnvLowStockThreshold = "STOREFRONT_LOW_STOCK_THRESHOLD"
	EnvLedgerDeadLetter  = "STOREFRONT_LEDGER_DEAD_LETTER_KEY"

	EnvGCPProjectID       = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "STOREFRONT_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubOrdersTopic  = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvOutboxMaxAttempts  = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	EnvCronTick           = "STOREFRONT_CRON_TICK"
	EnvCronReconcileEvery = "STOREFRONT_CRON_RECONCILE_EVERY"
	EnvIdempotencyTTL     = "STOREFRONT_IDEMPOTENCY_TTL"
	EnvCORSAllowedOrigins = "STOREFRONT_CORS_ALLOWED_ORIGINS"
)

// legacyDBEnvVars must all be present when no DSN is configured.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
