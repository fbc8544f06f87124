package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maturity-navigator-api/pkg/assessment"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	testCases := map[string]string{
		"PORT":                              "9090",
		"ENVIRONMENT":                       "test",
		"AZURE_OPENAI_ENDPOINT":             "https://test.openai.azure.com/",
		"AZURE_OPENAI_API_KEY":              "test-key",
		"AZURE_OPENAI_CHAT_DEPLOYMENT_NAME": "test-deployment",
		"STORE_DRIVER":                      "MySQL",
		"SESSION_CACHE_SIZE":                "16",
		"STORE_FALLBACK":                    "false",
		"ANALYSIS_TEMPERATURE":              "0.1",
	}
	for key, value := range testCases {
		t.Setenv(key, value)
	}

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "https://test.openai.azure.com/", cfg.AzureOpenAIEndpoint)
	assert.Equal(t, "test-key", cfg.AzureOpenAIAPIKey)
	assert.Equal(t, "test-deployment", cfg.AzureOpenAIChatDeploymentName)
	assert.Equal(t, "mysql", cfg.StoreDriver)
	assert.Equal(t, 16, cfg.SessionCacheSize)
	assert.False(t, cfg.StoreFallback)
	require.NotNil(t, cfg.AnalysisTemperature)
	assert.Equal(t, 0.1, *cfg.AnalysisTemperature)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.Strict)
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENVIRONMENT", "STORE_DRIVER", "SESSION_CACHE_SIZE", "STORE_FALLBACK", "STRICT", "CONVERSATION_TEMPERATURE"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 1024, cfg.SessionCacheSize)
	assert.True(t, cfg.StoreFallback)
	assert.Nil(t, cfg.ConversationTemperature)
	// development環境では順序の不整合でpanicさせる
	assert.True(t, cfg.Strict)
}

func TestLoadConfig_StrictOverride(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("STRICT", "false")
	assert.False(t, LoadConfig().Strict)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("STRICT", "")
	assert.False(t, LoadConfig().Strict)
}

func TestLoadAssessmentSettings_ZeroTemperatureOverride(t *testing.T) {
	t.Setenv("CONVERSATION_TEMPERATURE", "0")
	t.Setenv("ANALYSIS_TEMPERATURE", "")

	cfg := LoadConfig()
	require.NotNil(t, cfg.ConversationTemperature)
	assert.Nil(t, cfg.AnalysisTemperature)

	settings, err := LoadAssessmentSettings("", cfg)
	require.NoError(t, err)
	assert.Equal(t, float32(0), settings.Models.Conversation.Temperature)
	assert.Equal(t, assessment.DefaultSettings().Models.Analysis.Temperature, settings.Models.Analysis.Temperature)
}

func TestLoadAssessmentSettings_Embedded(t *testing.T) {
	settings, err := LoadAssessmentSettings("", nil)
	require.NoError(t, err)

	assert.Equal(t, assessment.DefaultSettings().Flow, settings.Flow)
	assert.Equal(t, assessment.DefaultSettings().Framework, settings.Framework)
	assert.Len(t, settings.Questions.Closing, 3)
	assert.NotEmpty(t, settings.Prompts.AnalysisInstruction)
}

func TestLoadAssessmentSettings_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessment.yaml")
	yaml := `
flow:
  user_info_count: 2
  productivity_count: 2
  value_creation_count: 2
  business_model_count: 2
  min_questions_for_completion: 3
questions:
  closing:
    - id: closing-only
      text: Anything else?
      value_area: general
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	settings, err := LoadAssessmentSettings(path, &Config{AnalysisModel: "gpt-4o-mini", ConversationMaxTokens: 300, Strict: true})
	require.NoError(t, err)

	assert.Equal(t, 8, settings.Flow.Total())
	assert.Equal(t, 3, settings.Flow.MinQuestionsForCompletion)
	assert.True(t, settings.Flow.Strict)
	require.Len(t, settings.Questions.Closing, 1)
	assert.Equal(t, "closing-only", settings.Questions.Closing[0].ID)
	assert.Len(t, settings.Questions.Productivity, 6)
	assert.Equal(t, "gpt-4o-mini", settings.Models.Analysis.ModelID)
	assert.Equal(t, 300, settings.Models.Conversation.MaxTokens)
}

func TestLoadAssessmentSettings_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad weights": "framework:\n  weights:\n    productivity: 0.5\n    value_creation: 0.5\n    business_model: 0.5\n",
		"bad yaml":    "flow: [",
		"gap in flow": "flow:\n  user_info_count: 10\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadAssessmentSettings(path, nil)
			assert.Error(t, err)
		})
	}

	_, err := LoadAssessmentSettings(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}
