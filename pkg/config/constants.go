package config

const EnvPrefix = "COMPUTERS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	PayPalModeSandbox = "sandbox"
	PayPalModeLive    = "live"

	payPalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	payPalLiveBaseURL    = "https://api-m.paypal.com"

	defaultSQLiteDSN = "file:computers.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv          = "COMPUTERS_APP_ENV"
	EnvPort            = "COMPUTERS_APP_PORT"
	EnvFrontendURL     = "COMPUTERS_FRONTEND_URL"
	EnvDBDSN           = "COMPUTERS_DB_DSN"
	EnvDBHost          = "COMPUTERS_DB_HOST"
	EnvDBUser          = "COMPUTERS_DB_USER"
	EnvDBName          = "COMPUTERS_DB_NAME"
	EnvRedisURL        = "COMPUTERS_REDIS_URL"
	EnvJWTSecret       = "COMPUTERS_JWT_SECRET"
	EnvJWTIssuer       = "COMPUTERS_JWT_ISSUER"
	EnvPayPalMode      = "COMPUTERS_PAYPAL_MODE"
	EnvPayPalReturnURL = "COMPUTERS_PAYPAL_RETURN_URL"
	EnvPayPalCancelURL = "COMPUTERS_PAYPAL_CANCEL_URL"
	EnvCurrency        = "COMPUTERS_CURRENCY"
	EnvTaxRate         = "COMPUTERS_TAX_RATE"
	EnvUseSQLite       = "COMPUTERS_USE_SQLITE"
	EnvGCPProjectID    = "COMPUTERS_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
