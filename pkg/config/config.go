package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	PayPal       PayPalConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if err := cfg.PayPal.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `envconfig:"COMPUTERS_APP_ENV" required:"true"`
	Port           string   `envconfig:"COMPUTERS_APP_PORT" required:"true"`
	LogLevel       string   `envconfig:"COMPUTERS_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"COMPUTERS_LOG_WARN_STACK" default:"false"`
	FrontendURL    string   `envconfig:"COMPUTERS_FRONTEND_URL" default:"http://localhost:3000"`
	AllowedOrigins []string `envconfig:"COMPUTERS_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"COMPUTERS_DB_DSN"`
	Driver string `envconfig:"COMPUTERS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COMPUTERS_DB_HOST"`
	LegacyPort     int    `envconfig:"COMPUTERS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMPUTERS_DB_USER"`
	LegacyPassword string `envconfig:"COMPUTERS_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMPUTERS_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMPUTERS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMPUTERS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMPUTERS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMPUTERS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMPUTERS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn level; zero disables it.
	SlowQuery time.Duration `envconfig:"COMPUTERS_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMPUTERS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COMPUTERS_REDIS_ADDR"`
	Password     string        `envconfig:"COMPUTERS_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMPUTERS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMPUTERS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMPUTERS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMPUTERS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMPUTERS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMPUTERS_REDIS_WRITE_TIMEOUT" default:"5s"`

	OrderLockTTL     time.Duration `envconfig:"COMPUTERS_ORDER_LOCK_TTL" default:"30s"`
	IdempotencyTTL   time.Duration `envconfig:"COMPUTERS_IDEMPOTENCY_TTL" default:"24h"`
	CallbackGuardTTL time.Duration `envconfig:"COMPUTERS_PAYPAL_CALLBACK_GUARD_TTL" default:"720h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COMPUTERS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COMPUTERS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COMPUTERS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PayPalConfig struct {
	Mode         string        `envconfig:"COMPUTERS_PAYPAL_MODE" default:"sandbox"`
	ClientID     string        `envconfig:"COMPUTERS_PAYPAL_CLIENT_ID"`
	ClientSecret string        `envconfig:"COMPUTERS_PAYPAL_CLIENT_SECRET"`
	BaseURL      string        `envconfig:"COMPUTERS_PAYPAL_BASE_URL"`
	Timeout      time.Duration `envconfig:"COMPUTERS_PAYPAL_TIMEOUT" default:"15s"`
	// Return and cancel URLs carry a single %s placeholder for the order id.
	ReturnURLTemplate string `envconfig:"COMPUTERS_PAYPAL_RETURN_URL" default:"http://localhost:8080/payments/paypal/%s/capture"`
	CancelURLTemplate string `envconfig:"COMPUTERS_PAYPAL_CANCEL_URL" default:"http://localhost:8080/payments/paypal/%s/cancel"`
}

// Environment returns the normalized PayPal mode (sandbox/live).
func (p PayPalConfig) Environment() string {
	mode := strings.TrimSpace(strings.ToLower(p.Mode))
	if mode == "" {
		return PayPalModeSandbox
	}
	return mode
}

// APIBaseURL resolves the REST host for the configured mode unless explicitly overridden.
func (p PayPalConfig) APIBaseURL() string {
	if trimmed := strings.TrimSpace(p.BaseURL); trimmed != "" {
		return strings.TrimRight(trimmed, "/")
	}
	if p.Environment() == PayPalModeLive {
		return payPalLiveBaseURL
	}
	return payPalSandboxBaseURL
}

func (p PayPalConfig) validate() error {
	switch p.Environment() {
	case PayPalModeSandbox, PayPalModeLive:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPayPalMode, PayPalModeSandbox, PayPalModeLive)
	}
	for env, tmpl := range map[string]string{EnvPayPalReturnURL: p.ReturnURLTemplate, EnvPayPalCancelURL: p.CancelURLTemplate} {
		if strings.Count(tmpl, "%s") != 1 {
			return fmt.Errorf("%s must contain exactly one %%s placeholder", env)
		}
	}
	return nil
}

type CheckoutConfig struct {
	Currency string          `envconfig:"COMPUTERS_CURRENCY" default:"THB"`
	TaxRate  decimal.Decimal `envconfig:"COMPUTERS_TAX_RATE" default:"0.00"`
}

func (c CheckoutConfig) validate() error {
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return fmt.Errorf("%s must be a 3-letter currency code", EnvCurrency)
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1)", EnvTaxRate)
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COMPUTERS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COMPUTERS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"COMPUTERS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"COMPUTERS_PUBSUB_ORDERS_TOPIC" default:"computers-order-events"`
	// CreateTopic lets local and emulator runs provision the topic on startup.
	CreateTopic bool `envconfig:"COMPUTERS_PUBSUB_CREATE_TOPIC" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COMPUTERS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COMPUTERS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COMPUTERS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MaintenanceConfig struct {
	Interval        time.Duration `envconfig:"COMPUTERS_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"COMPUTERS_MAINTENANCE_LOCK_TTL" default:"10m"`
	OutboxRetention time.Duration `envconfig:"COMPUTERS_OUTBOX_RETENTION" default:"720h"`
	PaymentFollowUp time.Duration `envconfig:"COMPUTERS_PAYMENT_FOLLOW_UP" default:"72h"`
	MetricsAddr     string        `envconfig:"COMPUTERS_MAINTENANCE_METRICS_ADDR" default:":9102"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
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
