package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	LocalCache   LocalCacheConfig
	Redis        RedisConfig
	JWT          JWTConfig
	OCR          OCRConfig
	AWS          AWSConfig
	Enrichment   EnrichmentConfig
	Scan         ScanConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.LocalCache.validate(cfg.Redis); err != nil {
		return nil, err
	}
	if err := cfg.OCR.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Scan.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"ALLERGYSCAN_APP_ENV" required:"true"`
	Port         string   `envconfig:"ALLERGYSCAN_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"ALLERGYSCAN_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"ALLERGYSCAN_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"ALLERGYSCAN_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig points at the remote relational store. Leaving both the DSN and the legacy host
// unset disables remote persistence; every scan is then written local-only.
type DBConfig struct {
	DSN string `envconfig:"ALLERGYSCAN_DB_DSN"`

	LegacyHost     string `envconfig:"ALLERGYSCAN_DB_HOST"`
	LegacyPort     int    `envconfig:"ALLERGYSCAN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ALLERGYSCAN_DB_USER"`
	LegacyPassword string `envconfig:"ALLERGYSCAN_DB_PASSWORD"`
	LegacyName     string `envconfig:"ALLERGYSCAN_DB_NAME"`
	LegacySSLMode  string `envconfig:"ALLERGYSCAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ALLERGYSCAN_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"ALLERGYSCAN_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"ALLERGYSCAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ALLERGYSCAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// Enabled reports whether a remote store is configured.
func (db DBConfig) Enabled() bool {
	return db.DSN != ""
}

type LocalCacheConfig struct {
	Driver     string `envconfig:"ALLERGYSCAN_LOCAL_CACHE_DRIVER" default:"sqlite"`
	SQLitePath string `envconfig:"ALLERGYSCAN_LOCAL_CACHE_SQLITE_PATH" default:"allergyscan-local.db"`
}

func (l LocalCacheConfig) validate(redis RedisConfig) error {
	switch strings.ToLower(strings.TrimSpace(l.Driver)) {
	case LocalCacheSQLite:
		if strings.TrimSpace(l.SQLitePath) == "" {
			return fmt.Errorf("%s is required for the sqlite local cache", EnvLocalCacheSQLitePath)
		}
	case LocalCacheRedis:
		if redis.URL == "" && redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis local cache", EnvRedisURL, EnvRedisAddr)
		}
	case LocalCacheMemory:
	default:
		return fmt.Errorf("unsupported local cache driver %q", l.Driver)
	}
	return nil
}

// DriverName returns the normalized local cache driver.
func (l LocalCacheConfig) DriverName() string {
	return strings.ToLower(strings.TrimSpace(l.Driver))
}

type RedisConfig struct {
	URL          string        `envconfig:"ALLERGYSCAN_REDIS_URL"`
	Address      string        `envconfig:"ALLERGYSCAN_REDIS_ADDR"`
	Password     string        `envconfig:"ALLERGYSCAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"ALLERGYSCAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ALLERGYSCAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ALLERGYSCAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ALLERGYSCAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ALLERGYSCAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ALLERGYSCAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies identity tokens minted by the external auth provider.
// An empty secret means every request is treated as anonymous.
type JWTConfig struct {
	Secret            string `envconfig:"ALLERGYSCAN_JWT_SECRET"`
	Issuer            string `envconfig:"ALLERGYSCAN_JWT_ISSUER" default:"allergyscan"`
	ExpirationMinutes int    `envconfig:"ALLERGYSCAN_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Enabled reports whether bearer tokens can be verified.
func (j JWTConfig) Enabled() bool {
	return j.Secret != ""
}

type OCRConfig struct {
	Provider string        `envconfig:"ALLERGYSCAN_OCR_PROVIDER" default:"http"`
	Endpoint string        `envconfig:"ALLERGYSCAN_OCR_ENDPOINT"`
	APIKey   string        `envconfig:"ALLERGYSCAN_OCR_API_KEY"`
	Timeout  time.Duration `envconfig:"ALLERGYSCAN_OCR_TIMEOUT" default:"15s"`
}

func (o OCRConfig) validate() error {
	switch o.ProviderName() {
	case OCRProviderHTTP:
		if strings.TrimSpace(o.Endpoint) == "" {
			return fmt.Errorf("%s is required for the http ocr provider", EnvOCREndpoint)
		}
	case OCRProviderRekognition:
	default:
		return fmt.Errorf("unsupported ocr provider %q", o.Provider)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvOCRTimeout)
	}
	return nil
}

// ProviderName returns the normalized OCR provider.
func (o OCRConfig) ProviderName() string {
	return strings.ToLower(strings.TrimSpace(o.Provider))
}

type AWSConfig struct {
	Region string `envconfig:"ALLERGYSCAN_AWS_REGION" default:"us-east-1"`
}

// EnrichmentConfig configures the LLM collaborator. An empty API key disables enrichment;
// scans then rely on the rule-based allergen match alone.
type EnrichmentConfig struct {
	APIKey  string        `envconfig:"ALLERGYSCAN_ENRICHMENT_API_KEY"`
	Model   string        `envconfig:"ALLERGYSCAN_ENRICHMENT_MODEL" default:"gemini-2.0-flash"`
	BaseURL string        `envconfig:"ALLERGYSCAN_ENRICHMENT_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	Timeout time.Duration `envconfig:"ALLERGYSCAN_ENRICHMENT_TIMEOUT" default:"15s"`
}

// Enabled reports whether the enrichment collaborator is configured.
func (e EnrichmentConfig) Enabled() bool {
	return strings.TrimSpace(e.APIKey) != ""
}

type ScanConfig struct {
	HistoryCap         int           `envconfig:"ALLERGYSCAN_SCAN_HISTORY_CAP" default:"10"`
	FeedCap            int           `envconfig:"ALLERGYSCAN_SCAN_FEED_CAP" default:"20"`
	DailyGoal          int           `envconfig:"ALLERGYSCAN_SCAN_DAILY_GOAL" default:"5"`
	RemoteWriteTimeout time.Duration `envconfig:"ALLERGYSCAN_SCAN_REMOTE_WRITE_TIMEOUT" default:"15s"`
	DisplayNameMax     int           `envconfig:"ALLERGYSCAN_SCAN_DISPLAY_NAME_MAX" default:"70"`
}

// RateLimitConfig throttles scan submissions per device and per client IP. Limits only
// apply when redis is configured.
type RateLimitConfig struct {
	ScanWindow      time.Duration `envconfig:"ALLERGYSCAN_RATE_LIMIT_SCAN_WINDOW" default:"1m"`
	ScanDeviceLimit int           `envconfig:"ALLERGYSCAN_RATE_LIMIT_SCAN_DEVICE" default:"20"`
	ScanIPLimit     int           `envconfig:"ALLERGYSCAN_RATE_LIMIT_SCAN_IP" default:"60"`
}

func (s ScanConfig) validate() error {
	if s.HistoryCap <= 0 {
		return fmt.Errorf("%s must be positive", EnvScanHistoryCap)
	}
	if s.FeedCap <= 0 {
		return fmt.Errorf("%s must be positive", EnvScanFeedCap)
	}
	if s.DailyGoal <= 0 {
		return fmt.Errorf("%s must be positive", EnvScanDailyGoal)
	}
	if s.DisplayNameMax < 2 {
		return fmt.Errorf("%s must be at least 2", EnvScanDisplayNameMax)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ALLERGYSCAN_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.LegacyHost == "" && db.LegacyUser == "" && db.LegacyName == "" {
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
