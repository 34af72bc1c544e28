package config

import (
	"log"
	"os"

	"Lifeline/pkg/logger"
	"Lifeline/pkg/util"
)

// Config is the process-wide configuration, loaded from the environment.
type Config struct {
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"` // gin mode: debug | release | test
	DBDriver  string `env:"DB_DRIVER"`
	DSN       string `env:"DSN"`
	APIPrefix string `env:"API_PREFIX"`
	Log       logger.LogConfig

	// REST rate limiting (ulule format, e.g. "100-M")
	APIRate string `env:"API_RATE"`

	// Cache backend for read paths: "gocache" or "redis"
	CacheType     string `env:"CACHE_TYPE"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	// Optional object-storage archive for voice clips
	AudioArchiveEnabled bool   `env:"AUDIO_ARCHIVE_ENABLED"`
	MinioEndpoint       string `env:"MINIO_ENDPOINT"`
	MinioAccessKey      string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey      string `env:"MINIO_SECRET_KEY"`
	MinioBucket         string `env:"MINIO_BUCKET"`
	MinioUseSSL         bool   `env:"MINIO_USE_SSL"`

	BackupEnabled  bool   `env:"BACKUP_ENABLED"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupSchedule string `env:"BACKUP_SCHEDULE"`
}

var GlobalConfig *Config

// Load reads the .env file for APP_ENV and fills GlobalConfig. A missing env
// file is not fatal; every setting has an environment or default fallback.
func Load() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	GlobalConfig = &Config{
		Addr:      util.GetEnvDefault("ADDR", ":8087"),
		Mode:      util.GetEnvDefault("MODE", "release"),
		DBDriver:  util.GetEnv("DB_DRIVER"),
		DSN:       util.GetEnv("DSN"),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		APIRate:             util.GetEnvDefault("API_RATE", "100-M"),
		CacheType:           util.GetEnvDefault("CACHE_TYPE", "gocache"),
		RedisAddr:           util.GetEnv("REDIS_ADDR"),
		RedisPassword:       util.GetEnv("REDIS_PASSWORD"),
		RedisDB:             int(util.GetIntEnv("REDIS_DB")),
		AudioArchiveEnabled: util.GetBoolEnv("AUDIO_ARCHIVE_ENABLED"),
		MinioEndpoint:       util.GetEnv("MINIO_ENDPOINT"),
		MinioAccessKey:      util.GetEnv("MINIO_ACCESS_KEY"),
		MinioSecretKey:      util.GetEnv("MINIO_SECRET_KEY"),
		MinioBucket:         util.GetEnv("MINIO_BUCKET"),
		MinioUseSSL:         util.GetBoolEnv("MINIO_USE_SSL"),
		BackupEnabled:       util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:          util.GetEnv("BACKUP_PATH"),
		BackupSchedule:      util.GetEnvDefault("BACKUP_SCHEDULE", "0 3 * * *"),
	}
}
