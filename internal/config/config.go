package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  validate:"required"`
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
	Catalog CatalogConfig `mapstructure:"catalog" validate:"required"`
	Mastery MasteryConfig `mapstructure:"mastery" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// Storage backends understood by the server.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StorageConfig selects and configures the key-value backing for progress blobs.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory sqlite postgres redis"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`

	// DatabaseURL is the connection string for the postgres backend.
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`

	RedisAddr     string `mapstructure:"redis_addr"     validate:"required_if=Backend redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"       validate:"gte=0"`
}

// Catalog sources understood by the server.
const (
	CatalogStatic = "static"
	CatalogMongo  = "mongo"
)

// CatalogConfig selects where item totals per domain come from.
type CatalogConfig struct {
	Source string `mapstructure:"source" validate:"required,oneof=static mongo"`

	FlashcardsFile string `mapstructure:"flashcards_file" validate:"required_if=Source static"`
	QuestionsFile  string `mapstructure:"questions_file"  validate:"required_if=Source static"`

	MongoURI      string `mapstructure:"mongo_uri"      validate:"required_if=Source mongo"`
	MongoDatabase string `mapstructure:"mongo_database" validate:"required_if=Source mongo"`
}

// MasteryConfig tunes mastery aggregation.
type MasteryConfig struct {
	// FallbackTotal is the per-domain item total assumed for a pool whose
	// catalog cannot be read.
	FallbackTotal int `mapstructure:"fallback_total" validate:"gte=0"`
}
