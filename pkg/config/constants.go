package config

const (
	EnvPrefix = "INTELLISALES"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "INTELLISALES_APP_ENV"
	EnvPort     = "INTELLISALES_APP_PORT"
	EnvLogLevel = "INTELLISALES_LOG_LEVEL"

	EnvStorageDriver = "INTELLISALES_STORAGE_DRIVER"

	EnvDBDSN    = "INTELLISALES_DB_DSN"
	EnvDBDriver = "INTELLISALES_DB_DRIVER"
	EnvDBHost   = "INTELLISALES_DB_HOST"
	EnvDBUser   = "INTELLISALES_DB_USER"
	EnvDBName   = "INTELLISALES_DB_NAME"

	EnvRedisURL  = "INTELLISALES_REDIS_URL"
	EnvRedisAddr = "INTELLISALES_REDIS_ADDR"

	EnvCartNamespace      = "INTELLISALES_CART_NAMESPACE"
	EnvCartDefaultTaxRate = "INTELLISALES_CART_DEFAULT_TAX_RATE"
	EnvCartExpiryMinutes  = "INTELLISALES_CART_EXPIRY_MINUTES"
	EnvCartAllowBackorder = "INTELLISALES_CART_ALLOW_BACKORDER"
	EnvCartRetentionHours = "INTELLISALES_CART_RETENTION_HOURS"

	EnvCronInterval = "INTELLISALES_CRON_INTERVAL"

	EnvAutoMigrate = "INTELLISALES_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
