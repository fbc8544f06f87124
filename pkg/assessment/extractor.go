package assessment

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Dimension は採点対象となる3つの価値領域の1つです。
type Dimension string

const (
	DimensionProductivity  Dimension = "productivity"
	DimensionValueCreation Dimension = "valueCreation"
	DimensionBusinessModel Dimension = "businessModel"
)

// Dimensions レポートの表示順
var Dimensions = []Dimension{DimensionProductivity, DimensionValueCreation, DimensionBusinessModel}

// Label は分析テキスト中に現れる領域名を返します。
func (d Dimension) Label() string {
	switch d {
	case DimensionProductivity:
		return "Productivity"
	case DimensionValueCreation:
		return "Value Creation"
	case DimensionBusinessModel:
		return "Business Model"
	}
	return string(d)
}

// PointType 領域ごとに抽出するリストの種類
type PointType string

const (
	PointStrengths     PointType = "strengths"
	PointOpportunities PointType = "opportunities"
)

// Finding は1つの領域について抽出戦略が読み取れた内容です。
// Scoreがnil、またはリストが空の場合は見つからなかったことを示します。
type Finding struct {
	Score         *float64
	Strengths     []string
	Opportunities []string
}

// Extraction 領域ごとの抽出結果
type Extraction map[Dimension]Finding

// Extractor は自由形式の分析テキストから結果を読み取ります。
// 実装は失敗を返さず、読み取れなかった項目は空のままにします。
type Extractor interface {
	Extract(text string) Extraction
}

// PatternExtractor は正規表現でスコアと箇条書きを読み取ります。
type PatternExtractor struct{}

var listItemPattern = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)])\s+(.+?)\s*$`)

// Extract Extractorの実装
func (PatternExtractor) Extract(text string) Extraction {
	out := make(Extraction, len(Dimensions))
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for _, d := range Dimensions {
		out[d] = Finding{
			Score:         findScore(text, d.Label()),
			Strengths:     findList(lines, d, PointStrengths),
			Opportunities: findList(lines, d, PointOpportunities),
		}
	}
	return out
}

// scorePatterns は「score」等のラベル付きパターンと、
// 「領域名・数字以外・数値」の単純パターンを返します。ラベル付きを先に試します。
func scorePatterns(label string) (*regexp.Regexp, *regexp.Regexp) {
	name := strings.ReplaceAll(regexp.QuoteMeta(label), " ", `\s+`)
	labelled := regexp.MustCompile(`(?i)` + name + `[^\d]{0,40}?(?:score|rating|level)[^\d]{0,20}?(\d+(?:\.\d+)?)`)
	plain := regexp.MustCompile(`(?i)` + name + `[^\d]{0,80}?(\d+(?:\.\d+)?)`)
	return labelled, plain
}

func findScore(text, label string) *float64 {
	labelled, plain := scorePatterns(label)
	for _, re := range []*regexp.Regexp{labelled, plain} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil || v < MinScore || v > MaxScore {
				continue
			}
			return &v
		}
	}
	return nil
}

// pointKeywords 見出しを判定するための小文字のキーワード
var pointKeywords = map[PointType][]string{
	PointStrengths:     {"strength"},
	PointOpportunities: {"opportunit"},
}

func isPointHeading(line string, pt PointType) bool {
	lower := strings.ToLower(line)
	for _, kw := range pointKeywords[pt] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func mentions(line string, d Dimension) bool {
	return strings.Contains(strings.ToLower(line), strings.ToLower(d.Label()))
}

// findList は領域名と種類の両方を含む見出しの直後にある箇条書きを返します。
// 見つからない場合は、領域のセクション内にある種類の見出しを探します。
func findList(lines []string, d Dimension, pt PointType) []string {
	for i, line := range lines {
		if listItemPattern.MatchString(line) {
			continue
		}
		if mentions(line, d) && isPointHeading(line, pt) {
			if items := collectItems(lines[i+1:]); len(items) > 0 {
				return items
			}
		}
	}

	for i, line := range lines {
		if listItemPattern.MatchString(line) || !mentions(line, d) {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			next := lines[j]
			if listItemPattern.MatchString(next) {
				continue
			}
			if startsOtherSection(next, d) {
				break
			}
			if isPointHeading(next, pt) {
				if items := collectItems(lines[j+1:]); len(items) > 0 {
					return items
				}
			}
		}
	}
	return nil
}

func startsOtherSection(line string, d Dimension) bool {
	for _, other := range Dimensions {
		if other != d && mentions(line, other) {
			return true
		}
	}
	return false
}

// collectItems 空行を読み飛ばしながら、箇条書き以外の行が現れるまで項目を集める
func collectItems(lines []string) []string {
	var items []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := listItemPattern.FindStringSubmatch(line)
		if m == nil {
			break
		}
		if item := cleanItem(m[1]); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func cleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	return strings.TrimSpace(s)
}

// JSONExtractor は分析テキストに埋め込まれたJSONを読み取ります。
// モデルが不正なJSONを返した場合はjsonrepairで修復してから解析します。
type JSONExtractor struct{}

type jsonFinding struct {
	Score         *float64 `json:"score"`
	Strengths     []string `json:"strengths"`
	Opportunities []string `json:"opportunities"`
}

type jsonAnalysis struct {
	Productivity       *jsonFinding `json:"productivity"`
	ValueCreation      *jsonFinding `json:"valueCreation"`
	ValueCreationSnake *jsonFinding `json:"value_creation"`
	BusinessModel      *jsonFinding `json:"businessModel"`
	BusinessModelSnake *jsonFinding `json:"business_model"`
}

// Extract Extractorの実装
func (JSONExtractor) Extract(text string) Extraction {
	out := make(Extraction, len(Dimensions))
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return out
	}

	candidate := text[start : end+1]
	var parsed jsonAnalysis
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return out
		}
		if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
			return out
		}
	}

	pick := func(a, b *jsonFinding) *jsonFinding {
		if a != nil {
			return a
		}
		return b
	}
	for d, f := range map[Dimension]*jsonFinding{
		DimensionProductivity:  parsed.Productivity,
		DimensionValueCreation: pick(parsed.ValueCreation, parsed.ValueCreationSnake),
		DimensionBusinessModel: pick(parsed.BusinessModel, parsed.BusinessModelSnake),
	} {
		if f == nil {
			continue
		}
		finding := Finding{
			Strengths:     cleanList(f.Strengths),
			Opportunities: cleanList(f.Opportunities),
		}
		if f.Score != nil && *f.Score >= MinScore && *f.Score <= MaxScore {
			v := *f.Score
			finding.Score = &v
		}
		out[d] = finding
	}
	return out
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = cleanItem(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ChainExtractor は戦略を順に実行し、各項目を最初に見つけた戦略の結果で埋めます。
type ChainExtractor []Extractor

// Extract Extractorの実装
func (c ChainExtractor) Extract(text string) Extraction {
	out := make(Extraction, len(Dimensions))
	for _, ex := range c {
		found := ex.Extract(text)
		for _, d := range Dimensions {
			cur, next := out[d], found[d]
			if cur.Score == nil {
				cur.Score = next.Score
			}
			if len(cur.Strengths) == 0 {
				cur.Strengths = next.Strengths
			}
			if len(cur.Opportunities) == 0 {
				cur.Opportunities = next.Opportunities
			}
			out[d] = cur
		}
	}
	return out
}

// DefaultExtractor JSONを優先し、見つからなければパターンマッチにフォールバック
func DefaultExtractor() Extractor {
	return ChainExtractor{JSONExtractor{}, PatternExtractor{}}
}
