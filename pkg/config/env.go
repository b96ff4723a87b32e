package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvLogLevel  = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat = "STOREFRONT_LOG_FORMAT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret  = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer  = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite            = "STOREFRONT_USE_SQLITE"
	EnvCheckoutFlatShipping = "STOREFRONT_CHECKOUT_FLAT_SHIPPING"
	EnvRabbitMQURL          = "STOREFRONT_RABBITMQ_URL"
	EnvCORSOrigins          = "STOREFRONT_CORS_ALLOWED_ORIGINS"

	defaultSQLiteDSN = "file:storefront.db?cache=shared&_foreign_keys=on"
)

var hostDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
