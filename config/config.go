package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Redis             RedisConfig
	RabbitMQ          RabbitMQConfig
	SMTP              SMTPConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Identity          IdentityConfig
	Memberships       MembershipConfig
	PayPal            PayPalConfig
	Wire              WireConfig
	Stripe            StripeConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	LockTTL  time.Duration
	LockWait time.Duration
}

type RabbitMQConfig struct {
	URL string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type IdentityConfig struct {
	JWTSecret string
	NonceTTL  time.Duration
}

// MembershipConfig replaces the basic settings page of the plugin.
type MembershipConfig struct {
	Enabled               bool
	AdjustmentEnabled     bool
	AdjustmentOffset      decimal.Decimal
	ClampAdjustmentAtZero bool
	RecurringEnabled      bool
	CurrencyCode          string
	CurrencySymbol        string
	CurrencyPosition      string
	MembershipPageURL     string
	CatalogCacheTTL       time.Duration
	PendingOrderTimeout   time.Duration
	// RecurringGrace keeps a recurring membership past its due date while
	// the gateway retries the renewal charge.
	RecurringGrace time.Duration
}

type PayPalConfig struct {
	Enabled        bool
	Sandbox        bool
	ClientID       string
	ClientSecret   string
	APIBaseURL     string
	IPNVerifyURL   string
	IPNTokenParam  string
	IPNToken       string
	RequestTimeout time.Duration
	MaxRetries     uint64
}

type WireConfig struct {
	Enabled bool
}

type StripeConfig struct {
	Enabled        bool
	PublishableKey string
	SecretKey      string
}

type JobsConfig struct {
	ExpirySchedule       string
	PendingOrderSchedule string
	ExpiryBatchSize      int
}

const (
	CurrencyPositionBefore = "before"
	CurrencyPositionAfter  = "after"

	paypalLiveAPI         = "https://api-m.paypal.com"
	paypalSandboxAPI      = "https://api-m.sandbox.paypal.com"
	paypalLiveIPN         = "https://ipnpb.paypal.com/cgi-bin/webscr"
	paypalSandboxIPN      = "https://ipnpb.sandbox.paypal.com/cgi-bin/webscr"
	defaultIPNParam       = "ims_paypal"
	defaultCurrency       = "USD"
	defaultSymbol         = "$"
	defaultPendingTTL     = 30 * time.Minute
	defaultRecurringGrace = 72 * time.Hour
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	position := strings.ToLower(getEnv("MEMBERSHIP_CURRENCY_POSITION", CurrencyPositionBefore))
	if position != CurrencyPositionBefore && position != CurrencyPositionAfter {
		return nil, errors.New("MEMBERSHIP_CURRENCY_POSITION must be before or after")
	}

	paypalSandbox := getBoolEnv("PAYPAL_SANDBOX", false)
	apiBase, ipnURL := paypalLiveAPI, paypalLiveIPN
	if paypalSandbox {
		apiBase, ipnURL = paypalSandboxAPI, paypalSandboxIPN
	}

	cfg := &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "memberships-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			LockTTL:  getSecondsEnv("REDIS_LOCK_TTL_SECONDS", 30*time.Second),
			LockWait: getSecondsEnv("REDIS_LOCK_WAIT_SECONDS", 5*time.Second),
		},
		RabbitMQ: RabbitMQConfig{URL: getEnv("RABBITMQ_URL", "")},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getIntEnv("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", "no-reply@localhost"),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
		},
		Log: LogConfig{Level: getEnv("LOG_LEVEL", "info")},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Identity: IdentityConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			NonceTTL:  getDurationEnv("NONCE_TTL_MINUTES", 12*time.Hour),
		},
		Memberships: MembershipConfig{
			Enabled:               getBoolEnv("MEMBERSHIP_ENABLED", true),
			AdjustmentEnabled:     getBoolEnv("MEMBERSHIP_ADJUSTMENT_ENABLED", false),
			AdjustmentOffset:      getDecimalEnv("MEMBERSHIP_ADJUSTMENT_OFFSET", decimal.Zero),
			ClampAdjustmentAtZero: getBoolEnv("MEMBERSHIP_ADJUSTMENT_CLAMP", true),
			RecurringEnabled:      getBoolEnv("MEMBERSHIP_RECURRING_ENABLED", false),
			CurrencyCode:          strings.ToUpper(getEnv("MEMBERSHIP_CURRENCY_CODE", defaultCurrency)),
			CurrencySymbol:        getEnv("MEMBERSHIP_CURRENCY_SYMBOL", defaultSymbol),
			CurrencyPosition:      position,
			MembershipPageURL:     getEnv("MEMBERSHIP_PAGE_URL", "/"),
			CatalogCacheTTL:       getDurationEnv("CATALOG_CACHE_TTL_MINUTES", 5*time.Minute),
			PendingOrderTimeout:   getDurationEnv("PENDING_ORDER_TIMEOUT_MINUTES", defaultPendingTTL),
			RecurringGrace:        getDurationEnv("MEMBERSHIP_RECURRING_GRACE_MINUTES", defaultRecurringGrace),
		},
		PayPal: PayPalConfig{
			Enabled:        getBoolEnv("PAYPAL_ENABLED", false),
			Sandbox:        paypalSandbox,
			ClientID:       getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret:   getEnv("PAYPAL_CLIENT_SECRET", ""),
			APIBaseURL:     getEnv("PAYPAL_API_BASE_URL", apiBase),
			IPNVerifyURL:   getEnv("PAYPAL_IPN_VERIFY_URL", ipnURL),
			IPNTokenParam:  getEnv("PAYPAL_IPN_TOKEN_PARAM", defaultIPNParam),
			IPNToken:       getEnv("PAYPAL_IPN_TOKEN", ""),
			RequestTimeout: getSecondsEnv("PAYPAL_REQUEST_TIMEOUT_SECONDS", 15*time.Second),
			MaxRetries:     uint64(getIntEnv("PAYPAL_MAX_RETRIES", 3)),
		},
		Wire: WireConfig{Enabled: getBoolEnv("WIRE_ENABLED", false)},
		Stripe: StripeConfig{
			Enabled:        getBoolEnv("STRIPE_ENABLED", false),
			PublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			SecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		},
		Jobs: JobsConfig{
			ExpirySchedule:       getEnv("EXPIRY_SCHEDULE", "@every 1m"),
			PendingOrderSchedule: getEnv("PENDING_ORDER_SCHEDULE", "@every 10m"),
			ExpiryBatchSize:      getIntEnv("EXPIRY_BATCH_SIZE", 100),
		},
	}

	if cfg.PayPal.Enabled && (cfg.PayPal.ClientID == "" || cfg.PayPal.ClientSecret == "") {
		return nil, errors.New("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required when PayPal is enabled")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(strings.ToLower(os.Getenv(key))); value != "" {
		if value == "on" {
			return true
		}
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
