package config

const EnvPrefix = "ALLERGYSCAN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	LocalCacheSQLite = "sqlite"
	LocalCacheRedis  = "redis"
	LocalCacheMemory = "memory"
)

const (
	OCRProviderHTTP        = "http"
	OCRProviderRekognition = "rekognition"
)

const (
	EnvAppEnv = "ALLERGYSCAN_APP_ENV"
	EnvPort   = "ALLERGYSCAN_APP_PORT"

	EnvDBDSN  = "ALLERGYSCAN_DB_DSN"
	EnvDBHost = "ALLERGYSCAN_DB_HOST"
	EnvDBUser = "ALLERGYSCAN_DB_USER"
	EnvDBName = "ALLERGYSCAN_DB_NAME"

	EnvLocalCacheDriver     = "ALLERGYSCAN_LOCAL_CACHE_DRIVER"
	EnvLocalCacheSQLitePath = "ALLERGYSCAN_LOCAL_CACHE_SQLITE_PATH"

	EnvRedisURL  = "ALLERGYSCAN_REDIS_URL"
	EnvRedisAddr = "ALLERGYSCAN_REDIS_ADDR"

	EnvJWTSecret = "ALLERGYSCAN_JWT_SECRET"

	EnvOCRProvider = "ALLERGYSCAN_OCR_PROVIDER"
	EnvOCREndpoint = "ALLERGYSCAN_OCR_ENDPOINT"
	EnvOCRTimeout  = "ALLERGYSCAN_OCR_TIMEOUT"

	EnvEnrichmentAPIKey = "ALLERGYSCAN_ENRICHMENT_API_KEY"

	EnvScanHistoryCap = "ALLERGYSCAN_SCAN_HISTORY_CAP"
	EnvScanFeedCap    = "ALLERGYSCAN_SCAN_FEED_CAP"
	EnvScanDailyGoal  = "ALLERGYSCAN_SCAN_DAILY_GOAL"

	EnvScanDisplayNameMax = "ALLERGYSCAN_SCAN_DISPLAY_NAME_MAX"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
