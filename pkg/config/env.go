package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "COURTSIDE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	SessionBackendRedis = "redis"
	SessionBackendDB    = "db"
)

const (
	EnvAppEnv             = "COURTSIDE_APP_ENV"
	EnvPort               = "COURTSIDE_APP_PORT"
	EnvDBDSN              = "COURTSIDE_DB_DSN"
	EnvDBDriver           = "COURTSIDE_DB_DRIVER"
	EnvDBHost             = "COURTSIDE_DB_HOST"
	EnvDBUser             = "COURTSIDE_DB_USER"
	EnvDBName             = "COURTSIDE_DB_NAME"
	EnvRedisURL           = "COURTSIDE_REDIS_URL"
	EnvCommerceDomain     = "COURTSIDE_COMMERCE_STORE_DOMAIN"
	EnvCommerceToken      = "COURTSIDE_COMMERCE_ACCESS_TOKEN"
	EnvCommerceAttempts   = "COURTSIDE_COMMERCE_MAX_ATTEMPTS"
	EnvCatalogTTL         = "COURTSIDE_CATALOG_TTL"
	EnvSessionBackend     = "COURTSIDE_SESSION_BACKEND"
	EnvCommerceAPIVersion = "COURTSIDE_COMMERCE_API_VERSION"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
