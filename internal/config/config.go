package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	SMTP         SMTPConfig
	Ai           AIConfig
	Channel      ChannelConfig
	Orchestrator OrchestratorConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
	AlertEmail string // operator inbox for delivery-failure alerts
}

type AIConfig struct {
	LLMProvider       string // "ollama" or "huggingface"
	LLMModel          string // e.g. "llama3", "qwen2.5"
	OllamaBaseURL     string
	HuggingFaceAPIKey string
}

type ChannelConfig struct {
	// PushURL is the external chat-channel endpoint replies are delivered to.
	PushURL string
	// DefaultCredential is used when the inbound webhook carries none.
	DefaultCredential string
}

// OrchestratorConfig holds the runtime-tunable knobs of the handoff core.
type OrchestratorConfig struct {
	AiProcessingTimeout time.Duration
	TypingTimeout       time.Duration
	ResumeDelay         time.Duration
	AdminReviewDelay    time.Duration
	ReviewRequired      bool
	AutoSendEnabled     bool
	ReclaimInterval     time.Duration
	DedupCacheTTL       time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Handoff"),
			AlertEmail: getEnv("OPERATOR_ALERT_EMAIL", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceAPIKey: getEnv("HF_API_KEY", ""),
		},
		Channel: ChannelConfig{
			PushURL:           getEnv("CHANNEL_PUSH_URL", ""),
			DefaultCredential: getEnv("CHANNEL_ACCESS_TOKEN", ""),
		},
		Orchestrator: OrchestratorConfig{
			AiProcessingTimeout: getEnvAsDuration("AI_PROCESSING_TIMEOUT", 60*time.Second),
			TypingTimeout:       getEnvAsDuration("TYPING_TIMEOUT", 30*time.Second),
			ResumeDelay:         getEnvAsDuration("RESUME_DELAY", 3*time.Second),
			AdminReviewDelay:    getEnvAsDuration("ADMIN_REVIEW_DELAY", 30*time.Second),
			ReviewRequired:      getEnvAsBool("REVIEW_REQUIRED", true),
			AutoSendEnabled:     getEnvAsBool("AUTO_SEND_ENABLED", true),
			ReclaimInterval:     getEnvAsDuration("RECLAIM_INTERVAL", 2*time.Minute),
			DedupCacheTTL:       getEnvAsDuration("DEDUP_CACHE_TTL", 5*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
