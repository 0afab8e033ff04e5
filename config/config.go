// Package config loads the typed application configuration from the
// process environment. app/cmd loads .env first via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server       ServerConfig
	Postgres     PostgresConfig
	Mongo        MongoConfig
	Retrieval    RetrievalConfig
	Embedding    EmbeddingConfig
	LLM          LLMConfig
	SMTP         SMTPConfig
	Knowledge    KnowledgeConfig
	Conversation ConversationConfig
	Log          LogConfig
}

type ServerConfig struct {
	Addr string
}

// PostgresConfig points at the pgvector instance backing the vector store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

type MongoConfig struct {
	URI      string
	Database string
}

// RetrievalConfig bounds similarity search: at most TopK chunks, none with
// a distance above MaxDistance.
type RetrievalConfig struct {
	TopK        int
	MaxDistance float64
}

type EmbeddingConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}

type SMTPConfig struct {
	Host        string
	Port        int
	Email       string
	AppPassword string
}

type KnowledgeConfig struct {
	Dir        string
	Collection string
}

// ConversationConfig controls conversation retention. TTLDays <= 0 keeps
// records forever.
type ConversationConfig struct {
	TTLDays int
}

type LogConfig struct {
	Dir string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr: getEnv("SERVER_ADDR", ":8000"),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnvInt("PG_PORT", 5432),
			User:     getEnv("PG_USER", "postgres"),
			Password: getEnv("PG_PASS", "postgres"),
			DBName:   getEnv("PG_DB_NAME", "portfolio"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_DB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB_NAME", "portfolio"),
		},
		Retrieval: RetrievalConfig{
			TopK:        getEnvInt("RETRIEVE_N_DOCS", 5),
			MaxDistance: getEnvFloat("DISTANCE_THRESHOLD", 1.3),
		},
		Embedding: EmbeddingConfig{
			BaseURL:    getEnv("EMBEDDING_BASE_URL", getEnv("LLM_BASE_URL", "https://api.openai.com/v1")),
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 768),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("LLM_MODEL", "gpt-4.1-nano"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 700),
			MaxRetries:  getEnvInt("LLM_MAX_RETRIES", 2),
		},
		SMTP: SMTPConfig{
			Host:        getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:        getEnvInt("SMTP_PORT", 587),
			Email:       getEnv("EMAIL", ""),
			AppPassword: getEnv("APP_PASSWORD", ""),
		},
		Knowledge: KnowledgeConfig{
			Dir:        getEnv("KNOWLEDGE_DIR", "knowledge_base"),
			Collection: getEnv("KNOWLEDGE_COLLECTION", "profile"),
		},
		Conversation: ConversationConfig{
			TTLDays: getEnvInt("CONVERSATION_TTL_DAYS", 0),
		},
		Log: LogConfig{
			Dir: getEnv("LOG_DIR", "logs"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
