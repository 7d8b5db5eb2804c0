package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For env key names
	"time"    // For durations

	"inspection_system/internal/domain" // Fee policy types

	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // Fee amounts
	"github.com/sirupsen/logrus"    // Warn on malformed values
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	PaystackSecretKey   string        // Gateway secret, also the webhook HMAC key
	PaystackBaseURL     string        // Gateway API base URL
	PaystackCallbackURL string        // Redirect target after checkout
	GatewayTimeout      time.Duration // Per-call timeout for gateway requests
	GatewayMaxRetries   int           // Retries for transient gateway failures
	Currency            string        // Platform currency

	PaymentExpiry         time.Duration    // Unpaid inspections expire after this
	ArchiveAfter          time.Duration    // Signed inspections are archived after this
	SweepInterval         time.Duration    // How often the sweeper runs
	WalletPaymentsEnabled bool             // Allow paying inspection fees from the wallet
	Fees                  domain.FeePolicy // Fee per inspection type
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),     // Application port
		DBUser:     os.Getenv("DB_USER"),           // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:     getEnv("DB_HOST", "127.0.0.1"), // Database host
		DBPort:     getEnv("DB_PORT", "3306"),      // Database port
		DBName:     os.Getenv("DB_NAME"),           // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),        // JWT secret key
		RedisAddr:  os.Getenv("REDIS_ADDR"),        // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),        // Redis password
		RedisDB:    redisDB,                        // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true", // Is production environment

		PaystackSecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackCallbackURL: os.Getenv("PAYSTACK_CALLBACK_URL"),
		GatewayTimeout:      getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		GatewayMaxRetries:   getInt("GATEWAY_MAX_RETRIES", 2),
		Currency:            getEnv("CURRENCY", "NGN"),

		PaymentExpiry:         getDuration("PAYMENT_EXPIRY", 48*time.Hour),
		ArchiveAfter:          getDuration("ARCHIVE_AFTER", 90*24*time.Hour),
		SweepInterval:         getDuration("SWEEP_INTERVAL", 5*time.Minute),
		WalletPaymentsEnabled: os.Getenv("WALLET_PAYMENTS_ENABLED") == "true",
		Fees:                  loadFees(),
	}
}

// loadFees overrides the default fee policy with INSPECTION_FEE_<TYPE> values
func loadFees() domain.FeePolicy {
	fees := domain.DefaultFeePolicy()
	for _, t := range domain.InspectionTypes {
		key := "INSPECTION_FEE_" + strings.ToUpper(string(t))
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		fee, err := decimal.NewFromString(raw)
		if err != nil || !fee.IsPositive() {
			logrus.WithField("key", key).Warn("ignoring invalid inspection fee")
			continue
		}
		fees[t] = fee
	}
	return fees
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "value": raw}).Warn("invalid duration, using default")
		return fallback
	}
	return d
}
