package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Storage    StorageConfig
	Upload     UploadConfig
	OCR        OCRConfig
	Raster     RasterConfig
	Preprocess PreprocessConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	// JWTSecret enables bearer auth on /api/v1 when non-empty. An empty
	// secret means an open instance, which is the localhost default.
	JWTSecret string
}

type StorageConfig struct {
	Backend     string // "local" or "supabase"
	LocalDir    string
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type UploadConfig struct {
	MaxSizeBytes int64
	// SyncMaxBytes caps the inline /extract endpoint; larger files must go
	// through the job queue.
	SyncMaxBytes int64
}

type OCRConfig struct {
	Engine    string // "gosseract" or "cli"
	Binary    string // tesseract binary for the cli engine
	Languages []string
}

type RasterConfig struct {
	DPI int
}

type PreprocessConfig struct {
	Default    bool
	WindowSize int
	Offset     int
	Sharpen    float64
}

func Load() (*Config, error) {
	// Missing .env is fine; real env vars win either way.
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxUpload, err := getEnvInt64("UPLOAD_MAX_BYTES", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %w", err)
	}

	syncMax, err := getEnvInt64("UPLOAD_SYNC_MAX_BYTES", 8<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_SYNC_MAX_BYTES: %w", err)
	}

	dpi, err := getEnvInt("RASTER_DPI", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid RASTER_DPI: %w", err)
	}

	window, err := getEnvInt("PREPROCESS_WINDOW", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid PREPROCESS_WINDOW: %w", err)
	}

	offset, err := getEnvInt("PREPROCESS_OFFSET", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid PREPROCESS_OFFSET: %w", err)
	}

	sharpen, err := getEnvFloat("PREPROCESS_SHARPEN", 1.0)
	if err != nil {
		return nil, fmt.Errorf("invalid PREPROCESS_SHARPEN: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE_BACKEND", "local"),
			LocalDir:    getEnv("STORAGE_LOCAL_DIR", "data/uploads"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "uploads"),
		},
		Upload: UploadConfig{
			MaxSizeBytes: maxUpload,
			SyncMaxBytes: syncMax,
		},
		OCR: OCRConfig{
			Engine:    getEnv("OCR_ENGINE", "gosseract"),
			Binary:    getEnv("OCR_TESSERACT_BIN", "tesseract"),
			Languages: splitList(getEnv("OCR_LANGUAGES", "eng")),
		},
		Raster: RasterConfig{
			DPI: dpi,
		},
		Preprocess: PreprocessConfig{
			Default:    getEnvBool("PREPROCESS_DEFAULT", false),
			WindowSize: window,
			Offset:     offset,
			Sharpen:    sharpen,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Storage.Backend == "supabase" {
		if c.Storage.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Storage.SupabaseKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_KEY")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	switch c.Storage.Backend {
	case "local", "supabase":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND: %s", c.Storage.Backend)
	}
	switch c.OCR.Engine {
	case "gosseract", "cli":
	default:
		return fmt.Errorf("unknown OCR_ENGINE: %s", c.OCR.Engine)
	}
	if c.Preprocess.WindowSize < 3 || c.Preprocess.WindowSize%2 == 0 {
		return fmt.Errorf("PREPROCESS_WINDOW must be an odd number >= 3, got %d", c.Preprocess.WindowSize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
