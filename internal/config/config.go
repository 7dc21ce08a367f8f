package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	NATS           NATSConfig
	JWT            JWTConfig
	Blockchain     BlockchainConfig
	Swap           SwapConfig
	Providers      ProvidersConfig
	Bridge         BridgeConfig
	RateLimit      RateLimitConfig
	Reconciliation ReconciliationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// SQLURL is the plain libpq URL used by database/sql health checks
func (c DatabaseConfig) SQLURL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// NATSConfig holds the lifecycle event bus settings. An empty URL disables publishing.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

// BlockchainConfig holds the execution chain settings
type BlockchainConfig struct {
	RPCURL          string
	ChainID         int64
	ChainName       string
	OwnerPrivateKey string
	// Uniswap-style TRZRY/USDC pool used for the treasury token price
	TreasuryPoolAddress  string
	TreasuryTokenAddress string
}

// SwapConfig holds quoting and execution parameters
type SwapConfig struct {
	FeeBps               int
	FeeSide              string
	SlippageBps          int
	QuoteValidity        time.Duration
	IndicativeValidity   time.Duration
	ValidatingStuckAfter time.Duration
	StuckAfter           time.Duration
	PollInterval         time.Duration
	PollAttempts         int
	PersistAttempts      int
	PersistBackoff       time.Duration
}

// ProvidersConfig holds route provider and price feed endpoints
type ProvidersConfig struct {
	ZeroXBaseURL    string
	ZeroXAPIKey     string
	UniswapXBaseURL string
	UniswapXAPIKey  string
	PriceFeedURL    string
	PriceCacheTTL   time.Duration
	HTTPTimeout     time.Duration
}

// BridgeConfig holds the one-click bridge settings
type BridgeConfig struct {
	OneClickBaseURL string
	OneClickJWT     string
	DefaultChain    string
}

// RateLimitConfig holds the per-caller token bucket
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ReconciliationConfig holds the background reconciliation job settings
type ReconciliationConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "vaultswap"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "vaultswap.swap"),
		},
		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		},
		Blockchain: BlockchainConfig{
			RPCURL:               getEnv("EVM_RPC_URL", "https://eth.llamarpc.com"),
			ChainID:              int64(getEnvAsInt("EVM_CHAIN_ID", 1)),
			ChainName:            getEnv("EVM_CHAIN_NAME", "ethereum"),
			OwnerPrivateKey:      getEnv("EVM_OWNER_PRIVATE_KEY", getEnv("PRIVATE_KEY", "")),
			TreasuryPoolAddress:  getEnv("TRZRY_POOL_ADDRESS", ""),
			TreasuryTokenAddress: getEnv("TRZRY_TOKEN_ADDRESS", ""),
		},
		Swap: SwapConfig{
			FeeBps:               getEnvAsInt("SWAP_FEE_BPS", 80),
			FeeSide:              strings.ToLower(getEnv("SWAP_FEE_SIDE", "input")),
			SlippageBps:          getEnvAsInt("SWAP_SLIPPAGE_BPS", 25),
			QuoteValidity:        getEnvAsDuration("SWAP_QUOTE_VALIDITY", 10*time.Minute),
			IndicativeValidity:   getEnvAsDuration("SWAP_INDICATIVE_VALIDITY", 2*time.Minute),
			ValidatingStuckAfter: getEnvAsDuration("SWAP_VALIDATING_STUCK_AFTER", 2*time.Minute),
			StuckAfter:           getEnvAsDuration("SWAP_STUCK_AFTER", 10*time.Minute),
			PollInterval:         getEnvAsDuration("SWAP_POLL_INTERVAL", 2*time.Second),
			PollAttempts:         getEnvAsInt("SWAP_POLL_ATTEMPTS", 60),
			PersistAttempts:      getEnvAsInt("SWAP_PERSIST_ATTEMPTS", 3),
			PersistBackoff:       getEnvAsDuration("SWAP_PERSIST_BACKOFF", time.Second),
		},
		Providers: ProvidersConfig{
			ZeroXBaseURL:    getEnv("ZEROX_BASE_URL", "https://api.0x.org"),
			ZeroXAPIKey:     getEnv("ZEROX_API_KEY", ""),
			UniswapXBaseURL: getEnv("UNISWAPX_BASE_URL", "https://trade-api.gateway.uniswap.org/v1"),
			UniswapXAPIKey:  getEnv("UNISWAPX_API_KEY", ""),
			PriceFeedURL:    getEnv("PRICE_FEED_URL", "http://localhost:8090"),
			PriceCacheTTL:   getEnvAsDuration("PRICE_CACHE_TTL", 30*time.Second),
			HTTPTimeout:     getEnvAsDuration("PROVIDER_HTTP_TIMEOUT", 15*time.Second),
		},
		Bridge: BridgeConfig{
			OneClickBaseURL: getEnv("ONECLICK_BASE_URL", ""),
			OneClickJWT:     getEnv("ONECLICK_JWT", ""),
			DefaultChain:    getEnv("ONECLICK_DEFAULT_CHAIN", "eth"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Reconciliation: ReconciliationConfig{
			Enabled:    getEnvAsBool("RECONCILIATION_ENABLED", true),
			Interval:   getEnvAsDuration("RECONCILIATION_INTERVAL", time.Minute),
			BatchSize:  getEnvAsInt("RECONCILIATION_BATCH_SIZE", 50),
			MaxRetries: getEnvAsInt("RECONCILIATION_MAX_RETRIES", 10),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
