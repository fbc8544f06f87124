package assessment

import (
	"errors"
	"fmt"
	"math"

	"maturity-navigator-api/pkg/models"
)

// 各領域および総合スコアの範囲
const (
	MinScore = 1.0
	MaxScore = 4.0
)

// Band は成熟度レベルの1つです。範囲は (前のバンドのMax, Max] で、最初のバンドはMinScoreから始まります。
type Band struct {
	Level       models.MaturityLevel `yaml:"level" json:"level"`
	Name        string               `yaml:"name" json:"name"`
	Max         float64              `yaml:"max" json:"max"`
	Description string               `yaml:"description" json:"description"`
}

// BandTable スコアをバンドに対応付けるテーブル
type BandTable struct {
	bands []Band
}

// NewBandTable はバンドが昇順で、Maxが狭義単調増加し、最後がMaxScoreで終わることを検証します。
// これにより [MinScore, MaxScore] の範囲が隙間なく覆われます。
func NewBandTable(bands []Band) (*BandTable, error) {
	if len(bands) == 0 {
		return nil, errors.New("band table is empty")
	}
	prev := MinScore
	for i, b := range bands {
		if b.Name == "" {
			return nil, fmt.Errorf("band %d has no name", i)
		}
		if i > 0 && b.Level <= bands[i-1].Level {
			return nil, fmt.Errorf("band %q: levels must increase", b.Name)
		}
		if i == 0 && b.Max < MinScore {
			return nil, fmt.Errorf("band %q: max %.2f is below %.1f", b.Name, b.Max, MinScore)
		}
		if i > 0 && b.Max <= prev {
			return nil, fmt.Errorf("band %q: max %.2f must exceed %.2f", b.Name, b.Max, prev)
		}
		prev = b.Max
	}
	if last := bands[len(bands)-1].Max; math.Abs(last-MaxScore) > 1e-9 {
		return nil, fmt.Errorf("last band must end at %.1f, ends at %.2f", MaxScore, last)
	}

	cp := make([]Band, len(bands))
	copy(cp, bands)
	return &BandTable{bands: cp}, nil
}

// Classify はスコアを含むバンドを返します。境界値は下位のバンドに属します。
// 範囲外のスコアは近い方の端のバンドになります。
func (t *BandTable) Classify(score float64) Band {
	for _, b := range t.bands {
		if score <= b.Max {
			return b
		}
	}
	return t.bands[len(t.bands)-1]
}

// Bands 設定済みバンドのコピーを返す
func (t *BandTable) Bands() []Band {
	cp := make([]Band, len(t.bands))
	copy(cp, t.bands)
	return cp
}

// Round1 小数第1位に丸める
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ClampScore は v を [MinScore, MaxScore] に収めます。
func ClampScore(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}
