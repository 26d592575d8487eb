package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	POS        POSConfig
	Storefront StorefrontConfig
	Store      StoreConfig
	Sync       SyncConfig
	Redis      RedisConfig
}

// POSConfig configures the session client talking to the POS back office.
type POSConfig struct {
	BaseURL       string
	Username      string
	Password      string
	UserID        string
	UserPassword  string
	WarehouseCode string
	TimeZone      string
	Timeout       time.Duration
	MaxRedirects  int
}

// StorefrontConfig configures the storefront admin API client and webhook checks.
type StorefrontConfig struct {
	ShopURL           string
	AccessToken       string
	APIVersion        string
	LegacyAPIVersion  string
	WebhookSecret     string
	WebhookTestSecret string
	Timeout           time.Duration
	MaxRedirects      int
}

// StoreConfig carries the fixed POS codes stamped on every translated sale.
type StoreConfig struct {
	SalesmanCode       string `mapstructure:"salesmanCode"`
	ShopCode           string `mapstructure:"shopCode"`
	Cashier            string `mapstructure:"cashier"`
	CashierNo          string `mapstructure:"cashierNo"`
	OrderNoPrefix      string `mapstructure:"orderNoPrefix"`
	HandlingChargeCode string `mapstructure:"handlingChargeCode"`
}

// SyncConfig controls the background synchronization jobs.
type SyncConfig struct {
	Enabled            bool
	RecoveryInterval   time.Duration
	CatalogRefreshAt   []string
	InventorySyncAt    []string
	PushInterval       time.Duration
	JobLockTTL         time.Duration
	StoreConfigFile    string
	InventoryPageLimit int
}

// RedisConfig configures the optional redis client used for job locks and throttling.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "posbridge"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "posbridge"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "posbridge.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		POS: POSConfig{
			BaseURL:       strings.TrimRight(getenv("POS_BASE_URL", "http://localhost:9000/api"), "/"),
			Username:      getenv("POS_LOGIN_USERNAME", ""),
			Password:      getenv("POS_LOGIN_PASSWORD", ""),
			UserID:        getenv("POS_USER_ID", ""),
			UserPassword:  getenv("POS_USER_PASSWORD", ""),
			WarehouseCode: getenv("POS_WAREHOUSE_CODE", "SW004"),
			TimeZone:      getenv("POS_TIMEZONE", "Asia/Hong_Kong"),
			Timeout:       getenvDuration("POS_HTTP_TIMEOUT", 5*time.Second),
			MaxRedirects:  int(getenvInt64("POS_HTTP_MAX_REDIRECTS", 5)),
		},
		Storefront: StorefrontConfig{
			ShopURL:           strings.TrimRight(getenv("STOREFRONT_SHOP_URL", ""), "/"),
			AccessToken:       getenv("STOREFRONT_ACCESS_TOKEN", ""),
			APIVersion:        getenv("STOREFRONT_API_VERSION", "2022-01"),
			LegacyAPIVersion:  getenv("STOREFRONT_LEGACY_API_VERSION", "2021-07"),
			WebhookSecret:     getenv("STOREFRONT_WEBHOOK_SECRET", ""),
			WebhookTestSecret: getenv("STOREFRONT_WEBHOOK_TEST_SECRET", ""),
			Timeout:           getenvDuration("STOREFRONT_HTTP_TIMEOUT", 5*time.Second),
			MaxRedirects:      int(getenvInt64("STOREFRONT_HTTP_MAX_REDIRECTS", 5)),
		},
		Store: StoreConfig{
			SalesmanCode:       getenv("STORE_SALESMAN_CODE", "D155"),
			ShopCode:           getenv("STORE_SHOP_CODE", "SW004"),
			Cashier:            getenv("STORE_CASHIER", "BOSS"),
			CashierNo:          getenv("STORE_CASHIER_NO", "SW00403"),
			OrderNoPrefix:      getenv("STORE_ORDER_NO_PREFIX", "SW04W"),
			HandlingChargeCode: getenv("STORE_HANDLING_CHARGE_CODE", "HANDLING"),
		},
		Sync: SyncConfig{
			Enabled:            getenvBool("SYNC_ENABLED", true),
			RecoveryInterval:   getenvDuration("SYNC_RECOVERY_INTERVAL", 10*time.Minute),
			CatalogRefreshAt:   parseList(getenv("SYNC_CATALOG_REFRESH_AT", "00:00")),
			InventorySyncAt:    parseList(getenv("SYNC_INVENTORY_AT", "00:00,06:00,12:00,18:00")),
			PushInterval:       getenvDuration("SYNC_PUSH_INTERVAL", 501*time.Millisecond),
			JobLockTTL:         getenvDuration("SYNC_JOB_LOCK_TTL", 30*time.Minute),
			StoreConfigFile:    getenv("SYNC_STORE_CONFIG_FILE", ""),
			InventoryPageLimit: int(getenvInt64("SYNC_INVENTORY_PAGE_LIMIT", 250)),
		},
		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
	}

	return cfg
}

// IsProduction reports whether the deployment runs against live systems.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Location resolves the POS time zone, falling back to UTC.
func (c POSConfig) Location() *time.Location {
	name := strings.TrimSpace(c.TimeZone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AllowedAPIVersions returns the webhook API versions accepted by the ingest endpoint.
func (c StorefrontConfig) AllowedAPIVersions() []string {
	out := make([]string, 0, 2)
	for _, v := range []string{c.APIVersion, c.LegacyAPIVersion} {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
