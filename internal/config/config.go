package config

import (
	"strings" // String manipulation
	"time"    // Time durations

	"github.com/joho/godotenv" // For loading .env files
	"github.com/spf13/viper"   // Environment lookup with defaults
)

// Config holds the application configuration
type Config struct {
	AppPort          string        // Application port
	DBUser           string        // Database user
	DBPassword       string        // Database password
	DBHost           string        // Database host
	DBPort           string        // Database port
	DBName           string        // Database name
	JWTSecret        string        // JWT secret key
	RedisAddr        string        // Redis server address, empty disables caching
	RedisPass        string        // Redis password
	RedisDB          int           // Redis database number
	IsProd           bool          // Is production environment
	BaseCurrency     string        // Currency all student balances are kept in
	CORSOrigins      []string      // Allowed origins for the web client
	CacheTTL         time.Duration // Lifetime of cached reads
	AllowOverpayment bool          // Accept payments larger than the outstanding balance
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present

	v := viper.New()
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "school_ledger")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IS_PROD", false)
	v.SetDefault("BASE_CURRENCY", "KES")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CACHE_TTL", "60s")
	v.SetDefault("ALLOW_OVERPAYMENT", false)
	v.AutomaticEnv()

	return &Config{
		AppPort:          v.GetString("APP_PORT"),                       // Application port
		DBUser:           v.GetString("DB_USER"),                        // Database user
		DBPassword:       v.GetString("DB_PASSWORD"),                    // Database password
		DBHost:           v.GetString("DB_HOST"),                        // Database host
		DBPort:           v.GetString("DB_PORT"),                        // Database port
		DBName:           v.GetString("DB_NAME"),                        // Database name
		JWTSecret:        v.GetString("JWT_SECRET"),                     // JWT secret key
		RedisAddr:        v.GetString("REDIS_ADDR"),                     // Redis server address
		RedisPass:        v.GetString("REDIS_PASS"),                     // Redis password
		RedisDB:          v.GetInt("REDIS_DB"),                          // Redis database number
		IsProd:           v.GetBool("IS_PROD"),                          // Is production environment
		BaseCurrency:     strings.ToUpper(v.GetString("BASE_CURRENCY")), // Base currency code
		CORSOrigins:      splitList(v.GetString("CORS_ORIGINS")),        // Allowed origins
		CacheTTL:         v.GetDuration("CACHE_TTL"),                    // Cache lifetime
		AllowOverpayment: v.GetBool("ALLOW_OVERPAYMENT"),                // Overpayment policy
	}
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4&loc=UTC"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
