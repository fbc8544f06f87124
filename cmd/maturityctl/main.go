// maturityctl は評価データを扱う管理用コマンドです。
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	config "maturity-navigator-api/configs"
	"maturity-navigator-api/pkg/assessment"
)

var rootCmd = &cobra.Command{
	Use:           "maturityctl",
	Short:         "Inspect and export AI maturity assessments",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "assessment settings YAML (defaults to ASSESSMENT_CONFIG_PATH or the built-in settings)")

	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings は環境変数の設定と--configフラグから評価設定を読み込みます。
func loadSettings(cmd *cobra.Command) (*config.Config, assessment.Settings, error) {
	cfg := config.LoadConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg.AssessmentConfigPath = path
	}
	settings, err := config.LoadAssessmentSettings(cfg.AssessmentConfigPath, cfg)
	if err != nil {
		return nil, assessment.Settings{}, err
	}
	return cfg, settings, nil
}
