package config

// EnvPrefix scopes every envconfig binding for this service.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv       = "STOREFRONT_APP_ENV"
	EnvDBDSN        = "STOREFRONT_DB_DSN"
	EnvDBHost       = "STOREFRONT_DB_HOST"
	EnvDBUser       = "STOREFRONT_DB_USER"
	EnvDBName       = "STOREFRONT_DB_NAME"
	EnvGCPProjectID = "STOREFRONT_GCP_PROJECT_ID"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
