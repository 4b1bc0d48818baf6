package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// AppURL is the public frontend origin used in checkout redirect URLs.
	AppURL string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (user notifications)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Payment processor configuration
	ProcessorProvider string
	ProcessorConfig   ProcessorConfig

	// Booking configuration
	DraftTTL            time.Duration
	CreditCostPerTicket int

	// Reconciliation configuration
	PollInterval    time.Duration
	MaxPollAttempts int

	// Rate limiting
	BookingRateMax    int
	BookingRateWindow time.Duration

	// Development payment simulation (bcrypt hash of the shared secret)
	SimulateSecretHash string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

// ProcessorConfig carries the external payment processor credentials.
type ProcessorConfig struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	AccountID string `json:"accountId" mapstructure:"account_id"`
	APIKey    string `json:"apiKey" mapstructure:"api_key"`
	HMACKey   string `json:"hmacKey" mapstructure:"hmac_key"`

	// PubNub channel the processor pushes transaction notifications on.
	PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
	PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
	PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
	PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
	PNCipherKey string `json:"pn_cipherKey" mapstructure:"pn_cipherkey"`
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		AppURL:      getEnv("APP_URL", "http://localhost:3000"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Payment processor
		ProcessorProvider: getEnv("PROCESSOR_PROVIDER", "mockpay"),
		ProcessorConfig: ProcessorConfig{
			BaseURL:     getEnv("PROCESSOR_BASE_URL", ""),
			AccountID:   getEnv("PROCESSOR_ACCOUNT_ID", ""),
			APIKey:      getEnv("PROCESSOR_API_KEY", ""),
			HMACKey:     getEnv("PROCESSOR_HMAC_KEY", ""),
			PNSubKey:    getEnv("PROCESSOR_PN_SUBKEY", ""),
			PNSubSecret: getEnv("PROCESSOR_PN_SUBSECRET", ""),
			PNUUID:      getEnv("PROCESSOR_PN_UUID", ""),
			PNChannel:   getEnv("PROCESSOR_PN_CHANNEL", ""),
			PNCipherKey: getEnv("PROCESSOR_PN_CIPHERKEY", ""),
		},

		// Booking
		DraftTTL:            getEnvAsDuration("BOOKING_DRAFT_TTL", "15m"),
		CreditCostPerTicket: getEnvAsInt("CREDIT_COST_PER_TICKET", 5),

		// Reconciliation
		PollInterval:    getEnvAsDuration("RECONCILE_POLL_INTERVAL", "2s"),
		MaxPollAttempts: getEnvAsInt("RECONCILE_MAX_ATTEMPTS", 5),

		// Rate limiting
		BookingRateMax:    getEnvAsInt("BOOKING_RATE_MAX", 10),
		BookingRateWindow: getEnvAsDuration("BOOKING_RATE_WINDOW", "1m"),

		// Payment simulation
		SimulateSecretHash: getEnv("SIMULATE_SECRET_HASH", ""),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
