package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var v *viper.Viper
var cfg *Config

// Config App-wide configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"-"`
	Redis     RedisConfig     `mapstructure:"-"`
	App       AppConfig       `mapstructure:"-"`
	JWT       JWTConfig       `mapstructure:"-"`
	Cache     CacheConfig     `mapstructure:"-"`
	Snowflake SnowflakeConfig `mapstructure:"-"`
	Logging   LoggingConfig   `mapstructure:"-"`
	Security  SecurityConfig  `mapstructure:"-"`
	Board     BoardConfig     `mapstructure:"-"`
}

// DatabaseConfig MySQL Database Configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// RedisConfig Redis Configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// AppConfig Application Configuration
type AppConfig struct {
	Host    string
	Port    int
	Mode    string
	BaseURL string
}

// JWTConfig JWT verification for host-issued identity tokens
type JWTConfig struct {
	Secret string
	Expiry int // token lifetime in seconds
}

// CacheConfig Cache Configuration
type CacheConfig struct {
	L1Cap int // L1 capacity in MB
	L2TTL int // L2 TTL in seconds
}

// SnowflakeConfig Snowflake Configuration
type SnowflakeConfig struct {
	WorkerID int64
}

// LoggingConfig Logging Configuration
type LoggingConfig struct {
	Level    string
	Output   string
	Filename string
}

// CORSConfig CORS settings
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityConfig Security Configuration
type SecurityConfig struct {
	AllowIPs  []string // IP whitelist (admin API)
	DenyIPs   []string // IP blacklist
	RateLimit int      // requests per IP per minute
	CORS      CORSConfig
}

// BoardConfig discussion-board engine settings
type BoardConfig struct {
	PreModeration    bool // new topics/posts need approval unless privileged
	SlugMaxAttempts  int  // probe limit for slug allocation
	MaxTopicTrackers int  // per-user topic read tracker cap
}

// Init Initialize configuration with Viper
func Init(configPath string) error {
	v = viper.New()
	cfg = &Config{}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("AGORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs()

	return parseConfig()
}

// setDefaults set default values
func setDefaults() {
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.base_url", "")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cache.l1_cap", 64)
	v.SetDefault("cache.l2_ttl", 3600)

	v.SetDefault("snowflake.worker_id", 0)

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiry", 86400)

	v.SetDefault("security.allow_ips", []string{"127.0.0.1", "localhost", "::1"})
	v.SetDefault("security.rate_limit", 100)
	v.SetDefault("security.cors.enabled", false)
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("security.cors.max_age", 3600)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("board.pre_moderation", false)
	v.SetDefault("board.slug_max_attempts", 100)
	v.SetDefault("board.max_topic_trackers", 5000)
}

// bindEnvs bind environment variables
func bindEnvs() {
	// Database
	v.BindEnv("database.host", "AGORA_DATABASE_HOST")
	v.BindEnv("database.port", "AGORA_DATABASE_PORT")
	v.BindEnv("database.username", "AGORA_DATABASE_USERNAME")
	v.BindEnv("database.password", "AGORA_DATABASE_PASSWORD")
	v.BindEnv("database.name", "AGORA_DATABASE_NAME")

	// Redis
	v.BindEnv("redis.host", "AGORA_REDIS_HOST")
	v.BindEnv("redis.port", "AGORA_REDIS_PORT")
	v.BindEnv("redis.password", "AGORA_REDIS_PASSWORD")

	// JWT
	v.BindEnv("jwt.secret", "AGORA_JWT_SECRET")

	// Board
	v.BindEnv("board.pre_moderation", "AGORA_BOARD_PRE_MODERATION")
	v.BindEnv("board.max_topic_trackers", "AGORA_BOARD_MAX_TOPIC_TRACKERS")
}

// parseConfig parse values into the config struct
func parseConfig() error {
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.Username = v.GetString("database.username")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.Name = v.GetString("database.name")
	cfg.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	cfg.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")
	cfg.Database.ConnMaxLifetime = v.GetInt("database.conn_max_lifetime")

	cfg.Redis.Host = v.GetString("redis.host")
	cfg.Redis.Port = v.GetInt("redis.port")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Redis.PoolSize = v.GetInt("redis.pool_size")

	cfg.App.Host = v.GetString("app.host")
	cfg.App.Port = v.GetInt("app.port")
	cfg.App.Mode = v.GetString("app.mode")
	cfg.App.BaseURL = strings.TrimSpace(v.GetString("app.base_url"))

	cfg.JWT.Secret = v.GetString("jwt.secret")
	cfg.JWT.Expiry = v.GetInt("jwt.expiry")

	cfg.Cache.L1Cap = v.GetInt("cache.l1_cap")
	cfg.Cache.L2TTL = v.GetInt("cache.l2_ttl")

	cfg.Snowflake.WorkerID = v.GetInt64("snowflake.worker_id")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Output = v.GetString("logging.output")
	cfg.Logging.Filename = v.GetString("logging.filename")

	cfg.Security.AllowIPs = v.GetStringSlice("security.allow_ips")
	cfg.Security.DenyIPs = v.GetStringSlice("security.deny_ips")
	cfg.Security.RateLimit = v.GetInt("security.rate_limit")
	cfg.Security.CORS.Enabled = v.GetBool("security.cors.enabled")
	cfg.Security.CORS.AllowedOrigins = v.GetStringSlice("security.cors.allowed_origins")
	cfg.Security.CORS.AllowedMethods = v.GetStringSlice("security.cors.allowed_methods")
	cfg.Security.CORS.AllowedHeaders = v.GetStringSlice("security.cors.allowed_headers")
	cfg.Security.CORS.AllowCredentials = v.GetBool("security.cors.allow_credentials")
	cfg.Security.CORS.MaxAge = v.GetInt("security.cors.max_age")

	cfg.Board.PreModeration = v.GetBool("board.pre_moderation")
	cfg.Board.SlugMaxAttempts = v.GetInt("board.slug_max_attempts")
	cfg.Board.MaxTopicTrackers = v.GetInt("board.max_topic_trackers")

	return nil
}

// Get Get the config instance
func Get() *Config {
	return cfg
}

// GetDSN Get MySQL DSN
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Username, c.Password, c.Host, c.Port, c.Name)
}

// GetRedisAddr Get Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddr Get server address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
