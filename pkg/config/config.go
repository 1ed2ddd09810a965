package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Allocation store drivers.
const (
	StoreDriverFile     = "file"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Allocations AllocationsConfig
	Reference   ReferenceConfig
	Exports     ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AllocationsConfig selects and tunes the backing store used by the persistence coordinator.
type AllocationsConfig struct {
	StoreDriver       string
	File              string
	BackupDir         string
	SQLitePath        string
	DistributedLock   bool
	LockTTL           time.Duration
	LockRetryInterval time.Duration
}

// ReferenceConfig governs where reference entities are read from and how long they are cached.
type ReferenceConfig struct {
	DataDir      string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportsConfig controls rendered timetable output.
type ExportsConfig struct {
	StorageDir    string
	SigningSecret string
	URLTTL        time.Duration
	ResultTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("ALLOCATION_STORE_DRIVER")))
	switch driver {
	case StoreDriverFile, StoreDriverSQLite, StoreDriverPostgres:
	default:
		driver = StoreDriverFile
	}
	cfg.Allocations = AllocationsConfig{
		StoreDriver:       driver,
		File:              v.GetString("ALLOCATIONS_FILE"),
		BackupDir:         v.GetString("ALLOCATIONS_BACKUP_DIR"),
		SQLitePath:        v.GetString("ALLOCATIONS_SQLITE_PATH"),
		DistributedLock:   v.GetBool("ENABLE_DISTRIBUTED_LOCK"),
		LockTTL:           parseDuration(v.GetString("STORE_LOCK_TTL"), 30*time.Second),
		LockRetryInterval: parseDuration(v.GetString("STORE_LOCK_RETRY_INTERVAL"), 100*time.Millisecond),
	}

	cfg.Reference = ReferenceConfig{
		DataDir:      v.GetString("REFERENCE_DATA_DIR"),
		CacheEnabled: v.GetBool("ENABLE_REFERENCE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("REFERENCE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:    v.GetString("EXPORTS_STORAGE_DIR"),
		SigningSecret: v.GetString("EXPORTS_SIGNING_SECRET"),
		URLTTL:        parseDuration(v.GetString("EXPORTS_URL_TTL"), 15*time.Minute),
		ResultTTL:     parseDuration(v.GetString("EXPORTS_RESULT_TTL"), 24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "college_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ALLOCATION_STORE_DRIVER", StoreDriverFile)
	v.SetDefault("ALLOCATIONS_FILE", "./data/allocations.json")
	v.SetDefault("ALLOCATIONS_BACKUP_DIR", "")
	v.SetDefault("ALLOCATIONS_SQLITE_PATH", "./data/allocations.db")
	v.SetDefault("ENABLE_DISTRIBUTED_LOCK", false)
	v.SetDefault("STORE_LOCK_TTL", "30s")
	v.SetDefault("STORE_LOCK_RETRY_INTERVAL", "100ms")

	v.SetDefault("REFERENCE_DATA_DIR", "./data")
	v.SetDefault("ENABLE_REFERENCE_CACHE", false)
	v.SetDefault("REFERENCE_CACHE_TTL", "5m")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNING_SECRET", "change-me")
	v.SetDefault("EXPORTS_URL_TTL", "15m")
	v.SetDefault("EXPORTS_RESULT_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
