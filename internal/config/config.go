package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string
	DBPath   string
	RedisURL string

	ImportChunkSize         int
	ImportStageDelayMs      int
	ImportMaxReportedErrors int

	UploadMaxBytes  int64
	PreviewRowLimit int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:      getEnv("ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
		DBPath:   getEnv("DB_PATH", filepath.Join(cwd, "data", "catalog.db")),
		RedisURL: getEnv("REDIS_URL", ""),

		ImportChunkSize:         getEnvInt("IMPORT_CHUNK_SIZE", 10),
		ImportStageDelayMs:      getEnvInt("IMPORT_STAGE_DELAY_MS", 300),
		ImportMaxReportedErrors: getEnvInt("IMPORT_MAX_REPORTED_ERRORS", 10),

		UploadMaxBytes:  int64(getEnvInt("UPLOAD_MAX_BYTES", 10*1024*1024)),
		PreviewRowLimit: getEnvInt("PREVIEW_ROW_LIMIT", 100),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
