package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"maturity-navigator-api/pkg/assessment"
)

//go:embed assessment.yaml
var embeddedAssessmentYAML []byte

// LoadAssessmentSettings は組み込みの既定値に設定ファイルを重ね、環境変数の上書きを適用して検証します。
// pathが空の場合は組み込みのassessment.yamlを使います。
func LoadAssessmentSettings(path string, cfg *Config) (assessment.Settings, error) {
	data := embeddedAssessmentYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return assessment.Settings{}, fmt.Errorf("評価設定ファイルの読み込みに失敗: %w", err)
		}
		data = b
	}

	settings, err := ParseAssessmentSettings(data)
	if err != nil {
		return assessment.Settings{}, err
	}
	if cfg != nil {
		applyModelOverrides(&settings, cfg)
	}

	if err := settings.Validate(); err != nil {
		return assessment.Settings{}, fmt.Errorf("評価設定が不正です: %w", err)
	}
	return settings, nil
}

// ParseAssessmentSettings はYAMLをDefaultSettingsの上に読み込みます。
// YAMLに書かれていないセクションは既定値のままです。
func ParseAssessmentSettings(data []byte) (assessment.Settings, error) {
	settings := assessment.DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return assessment.Settings{}, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}
	return settings, nil
}

func applyModelOverrides(s *assessment.Settings, cfg *Config) {
	if cfg.ConversationModel != "" {
		s.Models.Conversation.ModelID = cfg.ConversationModel
	}
	if cfg.AnalysisModel != "" {
		s.Models.Analysis.ModelID = cfg.AnalysisModel
	}
	if cfg.ConversationTemperature != nil {
		s.Models.Conversation.Temperature = float32(*cfg.ConversationTemperature)
	}
	if cfg.ConversationMaxTokens > 0 {
		s.Models.Conversation.MaxTokens = cfg.ConversationMaxTokens
	}
	if cfg.AnalysisTemperature != nil {
		s.Models.Analysis.Temperature = float32(*cfg.AnalysisTemperature)
	}
	if cfg.AnalysisMaxTokens > 0 {
		s.Models.Analysis.MaxTokens = cfg.AnalysisMaxTokens
	}
	if cfg.SpeechModel != "" {
		s.Models.Speech.ModelID = cfg.SpeechModel
	}
	if cfg.SpeechVoice != "" {
		s.Models.Speech.Voice = cfg.SpeechVoice
	}
	if cfg.TranscribeModel != "" {
		s.Models.Transcribe = cfg.TranscribeModel
	}
	if cfg.Strict {
		s.Flow.Strict = true
	}
}
