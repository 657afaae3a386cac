package config

import (
	"fmt"     // For error wrapping
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
	"gopkg.in/yaml.v3"         // For the optional config file
)

// Config holds the application configuration
type Config struct {
	AppPort         string        `yaml:"app_port"`          // Application port
	DBDriver        string        `yaml:"db_driver"`         // Database driver: mysql or postgres
	DBUser          string        `yaml:"db_user"`           // Database user
	DBPassword      string        `yaml:"db_password"`       // Database password
	DBHost          string        `yaml:"db_host"`           // Database host
	DBPort          string        `yaml:"db_port"`           // Database port
	DBName          string        `yaml:"db_name"`           // Database name
	DBMaxOpenConns  int           `yaml:"db_max_open_conns"` // Connection pool size
	DBMaxIdleConns  int           `yaml:"db_max_idle_conns"` // Idle connections kept in the pool
	DBConnLifetime  time.Duration `yaml:"db_conn_lifetime"`  // Max lifetime of a pooled connection
	DBLogLevel      string        `yaml:"db_log_level"`      // gorm log level: silent, error, warn, info
	JWTSecret       string        `yaml:"jwt_secret"`        // JWT secret key
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`  // Lifetime of access tokens
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"` // Lifetime of refresh tokens
	RedisAddr       string        `yaml:"redis_addr"`        // Redis server address
	RedisPass       string        `yaml:"redis_pass"`        // Redis password
	RedisDB         int           `yaml:"redis_db"`          // Redis database number
	CacheTTL        time.Duration `yaml:"cache_ttl"`         // TTL of cached balances and listings
	LogLevel        string        `yaml:"log_level"`         // logrus level
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`  // Grace period for in-flight requests
	IsProd          bool          `yaml:"is_prod"`           // Is production environment
}

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		AppPort:         "8080",
		DBDriver:        "mysql",
		DBHost:          "127.0.0.1",
		DBPort:          "3306",
		DBMaxOpenConns:  25,
		DBMaxIdleConns:  10,
		DBConnLifetime:  30 * time.Minute,
		DBLogLevel:      "error",
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		RedisAddr:       "127.0.0.1:6379",
		CacheTTL:        60 * time.Second,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file named by
// CONFIG_FILE and environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the values present in a YAML file
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays every environment variable that is set
func (c *Config) loadEnv() error {
	setString(&c.AppPort, "APP_PORT")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DBUser, "DB_USER")
	setString(&c.DBPassword, "DB_PASSWORD")
	setString(&c.DBHost, "DB_HOST")
	setString(&c.DBPort, "DB_PORT")
	setString(&c.DBName, "DB_NAME")
	setString(&c.DBLogLevel, "DB_LOG_LEVEL")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPass, "REDIS_PASS")
	setString(&c.LogLevel, "LOG_LEVEL")
	if v, ok := os.LookupEnv("IS_PROD"); ok {
		c.IsProd = v == "true"
	}
	ints := map[string]*int{
		"DB_MAX_OPEN_CONNS": &c.DBMaxOpenConns,
		"DB_MAX_IDLE_CONNS": &c.DBMaxIdleConns,
		"REDIS_DB":          &c.RedisDB,
	}
	for key, dst := range ints {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}
	durations := map[string]*time.Duration{
		"DB_CONN_MAX_LIFETIME": &c.DBConnLifetime,
		"ACCESS_TOKEN_TTL":     &c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL":    &c.RefreshTokenTTL,
		"CACHE_TTL":            &c.CacheTTL,
		"SHUTDOWN_TIMEOUT":     &c.ShutdownTimeout,
	}
	for key, dst := range durations {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	switch c.DBDriver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
