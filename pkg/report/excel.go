// Package report は評価結果をダウンロード用のファイルに書き出します。
package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"maturity-navigator-api/pkg/models"
)

// ContentType xlsxのMIMEタイプ
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// シート名
const (
	SheetSummary   = "Summary"
	SheetFindings  = "Findings"
	SheetResponses = "Responses"
)

// ErrNotCompleted 結果が確定していない評価は出力できない
var ErrNotCompleted = errors.New("assessment has no results yet")

// QuestionText 質問IDから質問文を引く関数。見つからなければfalse
type QuestionText func(id string) (string, bool)

// FileName ダウンロード時のファイル名
func FileName(rec models.AssessmentRecord) string {
	return fmt.Sprintf("ai-maturity-%s.xlsx", rec.ID)
}

// WriteAssessment は評価を3枚のシート（概要、強みと機会、回答）のxlsxとしてwに書き出します。
func WriteAssessment(w io.Writer, rec models.AssessmentRecord, lookup QuestionText) error {
	if rec.Results == nil {
		return ErrNotCompleted
	}
	res := rec.Results

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetFindings, SheetResponses} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DCE6F1"}},
	})
	if err != nil {
		return err
	}

	completed := ""
	if rec.CompletedAt != nil {
		completed = rec.CompletedAt.Format(time.RFC3339)
	}
	summary := [][]interface{}{
		{"Assessment", rec.ID},
		{"Name", res.UserInfo.Name},
		{"Role", res.UserInfo.Role},
		{"Industry", res.UserInfo.Industry},
		{"Organization size", res.UserInfo.OrgSize},
		{"Email", res.UserInfo.Email},
		{"Completed", completed},
		{"Low confidence", res.LowConfidence},
		{},
		{"Dimension", "Score", "Level", "Defaulted"},
		{"Productivity", res.Productivity.Score, res.Productivity.LevelName, res.Productivity.Defaulted},
		{"Value Creation", res.ValueCreation.Score, res.ValueCreation.LevelName, res.ValueCreation.Defaulted},
		{"Business Model", res.BusinessModel.Score, res.BusinessModel.LevelName, res.BusinessModel.Defaulted},
		{"Overall", res.Overall.Score, res.Overall.LevelName},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A10", "D10", header); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "A", "B", 24); err != nil {
		return err
	}

	findings := [][]interface{}{{"Dimension", "Type", "Item"}}
	for _, d := range []struct {
		name  string
		score models.DimensionScore
	}{
		{"Productivity", res.Productivity},
		{"Value Creation", res.ValueCreation},
		{"Business Model", res.BusinessModel},
	} {
		for _, s := range d.score.Strengths {
			findings = append(findings, []interface{}{d.name, "Strength", s})
		}
		for _, o := range d.score.Opportunities {
			findings = append(findings, []interface{}{d.name, "Opportunity", o})
		}
	}
	if err := writeRows(f, SheetFindings, findings); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetFindings, "A1", "C1", header); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetFindings, "C", "C", 80); err != nil {
		return err
	}

	responses := [][]interface{}{{"#", "Question", "Answer", "Answered at"}}
	for i, r := range res.Responses {
		question := r.QuestionID
		if lookup != nil {
			if text, ok := lookup(r.QuestionID); ok {
				question = text
			}
		}
		at := time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339)
		responses = append(responses, []interface{}{i + 1, question, r.Answer, at})
	}
	if err := writeRows(f, SheetResponses, responses); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetResponses, "A1", "D1", header); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetResponses, "B", "C", 60); err != nil {
		return err
	}

	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
