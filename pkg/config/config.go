package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "BAANHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv             = "BAANHUB_APP_ENV"
	EnvPort               = "BAANHUB_APP_PORT"
	EnvDBDSN              = "BAANHUB_DB_DSN"
	EnvDBHost             = "BAANHUB_DB_HOST"
	EnvDBUser             = "BAANHUB_DB_USER"
	EnvDBName             = "BAANHUB_DB_NAME"
	EnvRedisURL           = "BAANHUB_REDIS_URL"
	EnvJWTSecret          = "BAANHUB_JWT_SECRET"
	EnvJWTIssuer          = "BAANHUB_JWT_ISSUER"
	EnvJWTExpMins         = "BAANHUB_JWT_EXPIRATION_MINUTES"
	EnvOmisePublicKey     = "BAANHUB_OMISE_PUBLIC_KEY"
	EnvOmiseSecretKey     = "BAANHUB_OMISE_SECRET_KEY"
	EnvOmiseWebhookKey    = "BAANHUB_OMISE_WEBHOOK_SECRET"
	EnvPaymentMinAmount   = "BAANHUB_PAYMENT_MINIMUM_AMOUNT"
	EnvPaymentMaxAmount   = "BAANHUB_PAYMENT_MAXIMUM_AMOUNT"
	EnvPaymentThreshold   = "BAANHUB_PAYMENT_PACKAGE_THRESHOLD"
	EnvPaymentCurrency    = "BAANHUB_PAYMENT_DEFAULT_CURRENCY"
	EnvWebhookDedupeTTL   = "BAANHUB_WEBHOOK_DEDUPE_TTL"
	EnvFeatureUseSQLite   = "BAANHUB_USE_SQLITE"
	EnvFeatureAutoMigrate = "BAANHUB_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Omise        OmiseConfig
	Payments     PaymentsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAANHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"BAANHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAANHUB_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BAANHUB_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BAANHUB_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"BAANHUB_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"BAANHUB_DB_DSN"`
	SQLitePath string `envconfig:"BAANHUB_SQLITE_PATH" default:"baanhub.db"`

	LegacyHost     string `envconfig:"BAANHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"BAANHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAANHUB_DB_USER"`
	LegacyPassword string `envconfig:"BAANHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAANHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAANHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAANHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAANHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAANHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAANHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAANHUB_REDIS_URL"`
	Address      string        `envconfig:"BAANHUB_REDIS_ADDR"`
	Password     string        `envconfig:"BAANHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAANHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAANHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAANHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAANHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAANHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAANHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAANHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAANHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BAANHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BAANHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BAANHUB_AUTO_MIGRATE" default:"false"`
}

// OmiseConfig holds the payment provider credentials. Keys are validated by the
// Omise client when it is constructed, not here.
type OmiseConfig struct {
	PublicKey     string        `envconfig:"BAANHUB_OMISE_PUBLIC_KEY"`
	SecretKey     string        `envconfig:"BAANHUB_OMISE_SECRET_KEY"`
	WebhookSecret string        `envconfig:"BAANHUB_OMISE_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"BAANHUB_OMISE_API_URL" default:"https://api.omise.co"`
	Timeout       time.Duration `envconfig:"BAANHUB_OMISE_TIMEOUT" default:"15s"`
}

// PaymentsConfig carries the pricing policy. MinimumAmount and PackageThreshold
// are independent: the first is a provider floor, the second splits customer
// contact reveals from agent package purchases.
type PaymentsConfig struct {
	MinimumAmount    decimal.Decimal `envconfig:"BAANHUB_PAYMENT_MINIMUM_AMOUNT" default:"20"`
	PackageThreshold decimal.Decimal `envconfig:"BAANHUB_PAYMENT_PACKAGE_THRESHOLD" default:"50"`
	MaximumAmount    decimal.Decimal `envconfig:"BAANHUB_PAYMENT_MAXIMUM_AMOUNT" default:"1000000"`
	DefaultCurrency  string          `envconfig:"BAANHUB_PAYMENT_DEFAULT_CURRENCY" default:"THB"`
	WebhookDedupeTTL time.Duration   `envconfig:"BAANHUB_WEBHOOK_DEDUPE_TTL" default:"72h"`

	// Fixed-window throttle on charge and source creation; zero limits disable it.
	RateLimitWindow  time.Duration `envconfig:"BAANHUB_PAYMENT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerUser int           `envconfig:"BAANHUB_PAYMENT_RATE_LIMIT_PER_USER" default:"10"`
	RateLimitPerIP   int           `envconfig:"BAANHUB_PAYMENT_RATE_LIMIT_PER_IP" default:"30"`
}

func (p PaymentsConfig) validate() error {
	if !p.MinimumAmount.IsPositive() {
		return fmt.Errorf("%s must be positive", EnvPaymentMinAmount)
	}
	if !p.PackageThreshold.IsPositive() {
		return fmt.Errorf("%s must be positive", EnvPaymentThreshold)
	}
	if !p.MaximumAmount.GreaterThan(p.PackageThreshold) {
		return fmt.Errorf("%s must be above %s", EnvPaymentMaxAmount, EnvPaymentThreshold)
	}
	if len(strings.TrimSpace(p.DefaultCurrency)) != 3 {
		return fmt.Errorf("%s must be a 3-letter currency code", EnvPaymentCurrency)
	}
	return nil
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
