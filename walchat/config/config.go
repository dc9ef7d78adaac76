package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	JWTSecret string `yaml:"jwt_secret"`

	LLMBaseURL     string        `yaml:"llm_base_url"`
	LLMModel       string        `yaml:"llm_model"`
	LLMTemperature float64       `yaml:"llm_temperature"`
	LLMMaxDuration time.Duration `yaml:"llm_max_duration"`

	// ArchiveBackend selects the message archive: "log", "minio" or "postgres".
	ArchiveBackend string `yaml:"archive_backend"`

	MinIOEndpoint  string `yaml:"minio_endpoint"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOBucket    string `yaml:"minio_bucket"`

	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBName     string `yaml:"db_name"`

	// WalletAddress is the fixed address used by the static wallet
	// provider (CLI and tests). The HTTP surface takes addresses from
	// connect requests instead.
	WalletAddress string `yaml:"wallet_address"`
}

// LoadConfig reads .env (if present), then environment variables, then an
// optional walchat.yaml overlay. YAML values win over env so a config file
// can pin a full deployment.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "http://localhost:11434/api"),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o"),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
		LLMMaxDuration: getEnvDuration("LLM_MAX_DURATION", 30*time.Second),
		ArchiveBackend: getEnv("ARCHIVE_BACKEND", "log"),
		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "walchat"),
		DBUser:         getEnv("DB_USER", ""),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBHost:         getEnv("DB_HOST", ""),
		DBPort:         getEnv("DB_PORT", ""),
		DBName:         getEnv("DB_NAME", ""),
		WalletAddress:  getEnv("WALLET_ADDRESS", ""),
	}

	if data, err := os.ReadFile(getEnv("WALCHAT_CONFIG", "walchat.yaml")); err == nil {
		_ = yaml.Unmarshal(data, &cfg)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
