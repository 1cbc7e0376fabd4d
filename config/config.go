package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Log      LogConfig
	MQTT     MQTTConfig
	Kafka    KafkaConfig
	Scoring  ScoringConfig
}

type ServerConfig struct {
	Port            int
	MaxUploadBytes  int64
	UploadsPerMin   int
	CacheTTL        time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// RedisConfig is optional; an empty Host disables Redis and live updates
// stay in-process.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type CORSConfig struct {
	AllowedOrigins string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// AuthConfig.AdminEmail and AdminPassword seed the admin account that
// registers operators while auth is enabled.
type AuthConfig struct {
	Enabled       bool
	AdminEmail    string
	AdminPassword string
}

type LogConfig struct {
	Level  string
	Format string
}

type MQTTConfig struct {
	URL      string
	Topic    string
	ClientID string
}

func (m MQTTConfig) Enabled() bool {
	return m.URL != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ScoringConfig.Seed makes simulated high-risk areas reproducible. Zero
// seeds from the runtime.
type ScoringConfig struct {
	Seed uint64
}

func LoadConfig() (*Config, error) {
	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxUpload, err := getIntEnv("MAX_UPLOAD_BYTES", 16<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	uploadsPerMin, err := getIntEnv("UPLOADS_PER_MINUTE", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOADS_PER_MINUTE: %w", err)
	}

	cacheTTL, err := getDurationEnv("CACHE_TTL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	shutdownTimeout, err := getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	authEnabled, err := getBoolEnv("AUTH_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_ENABLED: %w", err)
	}

	seed, err := strconv.ParseUint(getEnv("SCORING_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SCORING_SEED: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            serverPort,
			MaxUploadBytes:  int64(maxUpload),
			UploadsPerMin:   uploadsPerMin,
			CacheTTL:        cacheTTL,
			ShutdownTimeout: shutdownTimeout,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "acciguard"),
			Password: getEnv("DB_PASSWORD", "acciguard_dev_password"),
			Name:     getEnv("DB_NAME", "acciguard"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Channel:  getEnv("REDIS_CHANNEL", "acciguard:predictions"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "acciguard-dev-secret"),
			ExpiryHours: jwtExpiry,
		},
		Auth: AuthConfig{
			Enabled:       authEnabled,
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		MQTT: MQTTConfig{
			URL:      getEnv("MQTT_URL", ""),
			Topic:    getEnv("MQTT_TOPIC", "acciguard/conditions/+"),
			ClientID: getEnv("MQTT_CLIENT_ID", "acciguard-ingest"),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "acciguard.predictions"),
		},
		Scoring: ScoringConfig{
			Seed: seed,
		},
	}

	if cfg.Auth.Enabled && os.Getenv("JWT_SECRET") == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set when AUTH_ENABLED is true")
	}
	if cfg.Auth.Enabled && (cfg.Auth.AdminEmail == "" || cfg.Auth.AdminPassword == "") {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set when AUTH_ENABLED is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

// getListEnv splits a comma separated value, dropping empty entries.
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
