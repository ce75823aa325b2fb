package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Commerce CommerceConfig
	Catalog  CatalogConfig
	Cart     CartConfig
	Session  SessionConfig
	Cron     CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Session.validate(); err != nil {
		return nil, err
	}
	if cfg.Session.UsesDB() {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COURTSIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"COURTSIDE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"COURTSIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COURTSIDE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"COURTSIDE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COURTSIDE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COURTSIDE_DB_DSN"`
	Driver string `envconfig:"COURTSIDE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"COURTSIDE_DB_HOST"`
	Port     int    `envconfig:"COURTSIDE_DB_PORT" default:"5432"`
	User     string `envconfig:"COURTSIDE_DB_USER"`
	Password string `envconfig:"COURTSIDE_DB_PASSWORD"`
	Name     string `envconfig:"COURTSIDE_DB_NAME"`
	SSLMode  string `envconfig:"COURTSIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COURTSIDE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"COURTSIDE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"COURTSIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURTSIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"COURTSIDE_REDIS_URL"`
	Address      string        `envconfig:"COURTSIDE_REDIS_ADDR"`
	Password     string        `envconfig:"COURTSIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURTSIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURTSIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURTSIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURTSIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURTSIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURTSIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// CommerceConfig points at the remote storefront API that owns carts and checkout.
type CommerceConfig struct {
	StoreDomain    string        `envconfig:"COURTSIDE_COMMERCE_STORE_DOMAIN" required:"true"`
	AccessToken    string        `envconfig:"COURTSIDE_COMMERCE_ACCESS_TOKEN" required:"true"`
	APIVersion     string        `envconfig:"COURTSIDE_COMMERCE_API_VERSION" default:"2024-10"`
	RequestTimeout time.Duration `envconfig:"COURTSIDE_COMMERCE_REQUEST_TIMEOUT" default:"12s"`
	MaxAttempts    int           `envconfig:"COURTSIDE_COMMERCE_MAX_ATTEMPTS" default:"2"`
	InitialBackoff time.Duration `envconfig:"COURTSIDE_COMMERCE_INITIAL_BACKOFF" default:"200ms"`
	MaxBackoff     time.Duration `envconfig:"COURTSIDE_COMMERCE_MAX_BACKOFF" default:"2s"`
}

// Endpoint returns the storefront GraphQL endpoint for the configured shop.
// A bare domain is assumed to be served over https.
func (c CommerceConfig) Endpoint() string {
	base := strings.TrimSuffix(strings.TrimSpace(c.StoreDomain), "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/api/%s/graphql.json", base, c.APIVersion)
}

type CatalogConfig struct {
	TTL         time.Duration `envconfig:"COURTSIDE_CATALOG_TTL" default:"5m"`
	PageSize    int           `envconfig:"COURTSIDE_CATALOG_PAGE_SIZE" default:"100"`
	SnapshotTTL time.Duration `envconfig:"COURTSIDE_CATALOG_SNAPSHOT_TTL" default:"15m"`
}

type CartConfig struct {
	// WaitTimeout bounds how long an HTTP intent waits for its own sync to settle.
	WaitTimeout time.Duration `envconfig:"COURTSIDE_CART_WAIT_TIMEOUT" default:"30s"`
	IdleTTL     time.Duration `envconfig:"COURTSIDE_CART_IDLE_TTL" default:"30m"`
	MaxQuantity int           `envconfig:"COURTSIDE_CART_MAX_QUANTITY" default:"99"`

	// IdempotencyTTL is how long a replayable cart response is kept per Idempotency-Key.
	IdempotencyTTL time.Duration `envconfig:"COURTSIDE_CART_IDEMPOTENCY_TTL" default:"24h"`
}

type SessionConfig struct {
	Backend    string        `envconfig:"COURTSIDE_SESSION_BACKEND" default:"redis"`
	Namespace  string        `envconfig:"COURTSIDE_SESSION_NAMESPACE" default:"storefront"`
	TTL        time.Duration `envconfig:"COURTSIDE_SESSION_TTL" default:"720h"`
	CookieName string        `envconfig:"COURTSIDE_SESSION_COOKIE" default:"cs_visitor"`
	CookieTTL  time.Duration `envconfig:"COURTSIDE_SESSION_COOKIE_TTL" default:"8760h"`
	Secure     bool          `envconfig:"COURTSIDE_SESSION_COOKIE_SECURE" default:"true"`
}

// UsesDB reports whether cart session handles are kept in the SQL store.
func (s SessionConfig) UsesDB() bool {
	return strings.EqualFold(s.Backend, SessionBackendDB)
}

func (s SessionConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case SessionBackendRedis, SessionBackendDB:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q", EnvSessionBackend, SessionBackendRedis, SessionBackendDB)
}

type CronConfig struct {
	Interval time.Duration `envconfig:"COURTSIDE_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"COURTSIDE_CRON_LOCK_TTL" default:"4m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
