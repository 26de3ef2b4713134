package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

var ErrInvalidValue = errors.New("invalid configuration value")

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendSQLite   = "sqlite"
	BackendWeaviate = "weaviate"
)

type Config struct {
	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	DataDir         string `envconfig:"DATA_DIR" default:"data"`

	// Vector store
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"sqlite"`
	PathDBFile     string `envconfig:"PATH_DB_FILE" default:"./vec.db"`
	VectorTable    string `envconfig:"VECTOR_TABLE" default:"documents"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	// Models
	LLMProvider          string `envconfig:"LLM_PROVIDER" default:"openai"`
	EmbeddingProvider    string `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIChatModel      string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`
	OpenAIEmbeddingModel string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	OpenAITTSModel       string `envconfig:"OPENAI_TTS_MODEL" default:"gpt-4o-mini-tts"`
	OpenAITTSVoice       string `envconfig:"OPENAI_TTS_VOICE" default:"alloy"`
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`
	GeminiChatModel      string `envconfig:"GEMINI_CHAT_MODEL" default:"gemini-2.0-flash"`
	GeminiEmbeddingModel string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-001"`
	PromptsPath          string `envconfig:"PROMPTS_PATH"`

	// Scraping
	SerpAPIKey           string `envconfig:"SERP_API_KEY"`
	SerpAPIURL           string `envconfig:"SERP_API_URL" default:"https://serpapi.com/search"`
	ScrapeTimeoutSeconds int    `envconfig:"SCRAPE_TIMEOUT_SECONDS" default:"20"`
	ScrapeDelayMs        int    `envconfig:"SCRAPE_DELAY_MS" default:"200"`
	ScrapeUserAgent      string `envconfig:"SCRAPE_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.1 Safari/537.36"`

	// Voice agent
	AgentSpeedup bool   `envconfig:"AGENT_SPEEDUP" default:"false"`
	AgentUseRAG  bool   `envconfig:"AGENT_USE_RAG" default:"false"`
	FFmpegPath   string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`

	// Catalog (postgres, optional)
	DBHost        string `envconfig:"DB_HOST"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"veritas"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"veritas"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Messaging
	NSQEnabled bool   `envconfig:"NSQ_ENABLED" default:"false"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

// Load reads the full service configuration, including model credentials.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadScraping reads the configuration for commands that only touch the
// scraping pipeline and never call a model.
func LoadScraping() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.LLMProvider = strings.ToLower(cfg.LLMProvider)
	cfg.EmbeddingProvider = strings.ToLower(cfg.EmbeddingProvider)
	cfg.VectorBackend = strings.ToLower(cfg.VectorBackend)
	return &cfg, nil
}

func (c *Config) Validate() error {
	for _, p := range []struct{ name, value string }{
		{"LLM_PROVIDER", c.LLMProvider},
		{"EMBEDDING_PROVIDER", c.EmbeddingProvider},
	} {
		switch p.value {
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" {
				return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingRequired)
			}
		case ProviderGemini:
			if c.GeminiAPIKey == "" {
				return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
			}
		default:
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, p.name, p.value)
		}
	}
	return c.validateStorage()
}

func (c *Config) validateStorage() error {
	switch c.VectorBackend {
	case BackendSQLite:
		if c.PathDBFile == "" {
			return fmt.Errorf("%w: PATH_DB_FILE", ErrMissingRequired)
		}
	case BackendWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND=%q", ErrInvalidValue, c.VectorBackend)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: DATA_DIR", ErrMissingRequired)
	}
	if c.DBHost != "" {
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	}
	return nil
}

// CatalogEnabled reports whether a postgres catalog is configured.
func (c *Config) CatalogEnabled() bool {
	return c.DBHost != ""
}

func (c *Config) ScrapedDir() string {
	return filepath.Join(c.DataDir, "scraping", "search")
}
