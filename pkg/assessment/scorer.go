package assessment

import (
	"fmt"
	"strings"
	"time"

	"maturity-navigator-api/pkg/models"
)

// Scorer は分析テキストを確定済みの AssessmentResult に変換します。
type Scorer struct {
	extractor Extractor
	bands     *BandTable
	weights   Weights
	defaults  DefaultScores
	now       func() time.Time
}

// NewScorer フレームワーク設定からScorerを作成します。
// extractorがnilの場合はDefaultExtractorを使います。
func NewScorer(extractor Extractor, fw Framework) (*Scorer, error) {
	bands, err := NewBandTable(fw.Bands)
	if err != nil {
		return nil, err
	}
	if extractor == nil {
		extractor = DefaultExtractor()
	}
	return &Scorer{
		extractor: extractor,
		bands:     bands,
		weights:   fw.Weights,
		defaults:  fw.DefaultScores,
		now:       time.Now,
	}, nil
}

// Bands 分類に使うバンドテーブル
func (s *Scorer) Bands() *BandTable {
	return s.bands
}

func (s *Scorer) defaultFor(d Dimension) float64 {
	switch d {
	case DimensionProductivity:
		return s.defaults.Productivity
	case DimensionValueCreation:
		return s.defaults.ValueCreation
	case DimensionBusinessModel:
		return s.defaults.BusinessModel
	}
	return MinScore
}

// Placeholder 分析に該当項目がない場合に使うリストを返す
func Placeholder(d Dimension, pt PointType) []string {
	label := strings.ToLower(d.Label())
	return []string{
		fmt.Sprintf("No specific %s %s were identified in the analysis", label, pt),
		fmt.Sprintf("Review %s %s in a follow-up conversation", label, pt),
	}
}

// Score は分析テキストから結果を抽出し、既定値・プレースホルダー・重み付け・バンド分類を適用します。
// 失敗はせず、欠けた値は既定値で補い、結果を低信頼として記録します。
func (s *Scorer) Score(text string, profile models.UserProfile, responses []models.Response) models.AssessmentResult {
	found := s.extractor.Extract(text)

	dims := make(map[Dimension]models.DimensionScore, len(Dimensions))
	lowConfidence := false
	for _, d := range Dimensions {
		ds := s.dimension(d, found[d])
		lowConfidence = lowConfidence || ds.Defaulted
		dims[d] = ds
	}

	overall := Round1(ClampScore(
		dims[DimensionProductivity].Score*s.weights.Productivity +
			dims[DimensionValueCreation].Score*s.weights.ValueCreation +
			dims[DimensionBusinessModel].Score*s.weights.BusinessModel))
	band := s.bands.Classify(overall)

	rs := make([]models.Response, len(responses))
	copy(rs, responses)

	return models.AssessmentResult{
		UserInfo:      Finalize(profile),
		Productivity:  dims[DimensionProductivity],
		ValueCreation: dims[DimensionValueCreation],
		BusinessModel: dims[DimensionBusinessModel],
		Overall: models.OverallScore{
			Score:     overall,
			Level:     band.Level,
			LevelName: band.Name,
		},
		Responses:     rs,
		Timestamp:     s.now().UnixMilli(),
		LowConfidence: lowConfidence,
	}
}

func (s *Scorer) dimension(d Dimension, f Finding) models.DimensionScore {
	score, defaulted := s.defaultFor(d), true
	if f.Score != nil {
		score, defaulted = *f.Score, false
	}
	score = Round1(ClampScore(score))
	band := s.bands.Classify(score)

	strengths := f.Strengths
	if len(strengths) == 0 {
		strengths = Placeholder(d, PointStrengths)
	}
	opportunities := f.Opportunities
	if len(opportunities) == 0 {
		opportunities = Placeholder(d, PointOpportunities)
	}

	return models.DimensionScore{
		Score:         score,
		Level:         band.Level,
		LevelName:     band.Name,
		Strengths:     strengths,
		Opportunities: opportunities,
		Defaulted:     defaulted,
	}
}
