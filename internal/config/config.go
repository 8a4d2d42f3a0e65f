package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StorageBackend string

const (
	BackendRedis  StorageBackend = "redis"
	BackendSQLite StorageBackend = "sqlite"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StorageBackend    StorageBackend `env:"STORAGE_BACKEND" envDefault:"redis"`
	RedisURL          string         `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath        string         `env:"SQLITE_PATH" envDefault:"data/assistant.db"`
	UsersTable        string         `env:"USERS_TABLE" envDefault:"users"`
	WelcomeQueueTable string         `env:"WELCOME_QUEUE_TABLE" envDefault:"welcome_queue"`

	// Knowledge-base retrieval
	FaissServiceURL string `env:"FAISS_SERVICE_URL" envDefault:"http://172.17.0.1:8010/search"`
	KnowledgeBase   string `env:"KNOWLEDGE_BASE_NAME" envDefault:"db_diseases"`
	RetrievalTopK   int    `env:"RETRIEVAL_TOP_K" envDefault:"3"`

	// Support-chat messaging
	MessagingBaseURL     string        `env:"MESSAGING_BASE_URL"`
	SupportChannelPrefix string        `env:"SUPPORT_CHANNEL_PREFIX" envDefault:"support_"`
	MessagingTimeout     time.Duration `env:"MESSAGING_TIMEOUT" envDefault:"10s"`

	// Welcome worker
	WelcomeDelayMinutes        int `env:"WELCOME_DELAY_MINUTES" envDefault:"10"`
	WelcomeScanIntervalSeconds int `env:"WELCOME_SCAN_INTERVAL_SECONDS" envDefault:"600"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini-2024-07-18"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// Prompts and scripts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`
	ScenarioDir      string `env:"SCENARIO_DIR" envDefault:"scenarios"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

func (c *Config) WelcomeDelay() time.Duration {
	return time.Duration(c.WelcomeDelayMinutes) * time.Minute
}

func (c *Config) WelcomeScanInterval() time.Duration {
	return time.Duration(c.WelcomeScanIntervalSeconds) * time.Second
}
