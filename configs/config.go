package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Port        string
	Environment string
	APIKey      string

	AdminUsername string
	AdminPassword string

	AzureOpenAIEndpoint           string
	AzureOpenAIAPIKey             string
	AzureOpenAIAPIVersion         string
	AzureOpenAIChatDeploymentName string
	ProxyURL                      string

	// ストレージ
	StoreDriver      string // sqlite, mysql, local
	StoreDSN         string
	LocalStoreDir    string
	StoreFallback    bool
	SessionCacheSize int
	PersistQueueSize int

	// 評価設定
	AssessmentConfigPath string
	ConversationModel    string
	AnalysisModel        string
	SpeechModel          string
	SpeechVoice          string
	TranscribeModel      string
	// nilの場合は設定ファイルの値を使う。0も有効な温度です
	ConversationTemperature *float64
	ConversationMaxTokens   int
	AnalysisTemperature     *float64
	AnalysisMaxTokens       int
	// 未指定の場合はdevelopment環境でのみtrue
	Strict bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	environment := getEnv("ENVIRONMENT", "development")
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: environment,
		APIKey:      getEnv("API_KEY", ""),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		AzureOpenAIEndpoint:           getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIAPIKey:             getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIAPIVersion:         getEnv("AZURE_OPENAI_API_VERSION", "2024-06-01"),
		AzureOpenAIChatDeploymentName: getEnv("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME", "gpt-4o"),
		ProxyURL:                      getEnv("PROXY_URL", ""),

		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		StoreDSN:         getEnv("STORE_DSN", "data/assessments.db"),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "data/assessments"),
		StoreFallback:    getEnvBool("STORE_FALLBACK", true),
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 1024),
		PersistQueueSize: getEnvInt("PERSIST_QUEUE_SIZE", 256),

		AssessmentConfigPath:    getEnv("ASSESSMENT_CONFIG_PATH", ""),
		ConversationModel:       getEnv("AZURE_OPENAI_CONVERSATION_MODEL", ""),
		AnalysisModel:           getEnv("AZURE_OPENAI_ANALYSIS_MODEL", ""),
		SpeechModel:             getEnv("AZURE_OPENAI_SPEECH_MODEL", ""),
		SpeechVoice:             getEnv("AZURE_OPENAI_SPEECH_VOICE", ""),
		TranscribeModel:         getEnv("AZURE_OPENAI_TRANSCRIBE_MODEL", ""),
		ConversationTemperature: getEnvFloatPtr("CONVERSATION_TEMPERATURE"),
		ConversationMaxTokens:   getEnvInt("CONVERSATION_MAX_TOKENS", 0),
		AnalysisTemperature:     getEnvFloatPtr("ANALYSIS_TEMPERATURE"),
		AnalysisMaxTokens:       getEnvInt("ANALYSIS_MAX_TOKENS", 0),
		Strict:                  getEnvBool("STRICT", environment == "development"),
	}
}

// IsProduction 本番環境かどうか
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getEnvFloatPtr 未設定や不正な値の場合はnil
func getEnvFloatPtr(key string) *float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return &v
	}
	return nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
