package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"maturity-navigator-api/pkg/app"
	"maturity-navigator-api/pkg/assessment"
	"maturity-navigator-api/pkg/models"
	"maturity-navigator-api/pkg/report"
)

// --- questions ---

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Print the interview question bank and flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		seq, err := assessment.NewSequencer(settings.Questions, settings.Flow, settings.Prompts)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tPHASE\tID\tQUESTION")
		for n := 0; n < seq.Total(); n++ {
			phase, q := seq.At(n)
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n+1, phase, q.ID, q.Text)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d questions, completion allowed after %d answers\n",
			seq.Total(), settings.Flow.MinQuestionsForCompletion)
		return nil
	},
}

// --- score ---

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a saved model analysis offline",
	Long: `Score a model analysis text with the configured framework.

The text is read from --file, or from stdin when no file is given.

Examples:
  maturityctl score --file analysis.txt
  cat analysis.json | maturityctl score`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		scorer, err := assessment.NewScorer(assessment.DefaultExtractor(), settings.Framework)
		if err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		var text []byte
		if file != "" {
			text, err = os.ReadFile(file)
		} else {
			text, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading analysis: %w", err)
		}

		result := scorer.Score(string(text), models.UserProfile{}, nil)
		return writeJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	scoreCmd.Flags().String("file", "", "file containing the analysis text")
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved assessments for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetString("user")

		store, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.ListByUser(cmd.Context(), user)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No assessments for %s\n", user)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tANSWERS\tOVERALL\tCREATED")
		for _, rec := range recs {
			overall := "-"
			if rec.Results != nil {
				overall = fmt.Sprintf("%.1f %s", rec.Results.Overall.Score, rec.Results.Overall.LevelName)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				rec.ID, rec.Status, len(rec.Responses), overall, rec.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().String("user", "anonymous", "user id that owns the assessments")
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export <assessment-id>",
	Short: "Export a completed assessment as an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		store, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading assessment %s: %w", args[0], err)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = report.FileName(rec)
		}
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return err
		}
		f, err := os.Create(output)
		if err != nil {
			return err
		}

		lookup := func(id string) (string, bool) {
			q, ok := settings.Questions.Lookup(id)
			return q.Text, ok
		}
		if err := report.WriteAssessment(f, rec, lookup); err != nil {
			f.Close()
			os.Remove(output)
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", rec.ID, output)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output path (defaults to ai-maturity-<id>.xlsx)")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
