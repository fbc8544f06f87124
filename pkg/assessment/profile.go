package assessment

import (
	"regexp"
	"strings"
	"unicode"

	"maturity-navigator-api/pkg/models"
)

// 回答がプロフィール項目になる質問ID
const (
	QuestionNameRole = "user-name-role"
	QuestionIndustry = "user-industry"
	QuestionOrgSize  = "user-org-size"
	QuestionEmail    = "user-email"
)

// 未回答のプロフィール項目に入れる既定値
const (
	FillerName     = "User"
	FillerRole     = "Not specified"
	FillerIndustry = "Technology"
	FillerOrgSize  = "Medium"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	namePattern  = regexp.MustCompile(`(?i)\b(?:my name is|my name's|i am|i'm|this is|call me)\s+([A-Za-z][A-Za-z'\-]*)`)
)

// ApplyAnswer はユーザー情報フェーズの回答からプロフィールを更新します。
// それ以外のフェーズの回答は無視します。
func ApplyAnswer(p *models.UserProfile, phase Phase, questionID, answer string) {
	if phase != PhaseUserInfo {
		return
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return
	}

	switch questionID {
	case QuestionNameRole:
		p.Name = extractName(answer)
		p.Role = answer
	case QuestionIndustry:
		p.Industry = answer
	case QuestionOrgSize:
		p.OrgSize = answer
	case QuestionEmail:
		if email := emailPattern.FindString(answer); email != "" {
			p.Email = email
		} else {
			p.Email = answer
		}
	}

	if p.Email == "" {
		if email := emailPattern.FindString(answer); email != "" {
			p.Email = email
		}
	}
}

// extractName 自己紹介から名前を取り出す
func extractName(answer string) string {
	if m := namePattern.FindStringSubmatch(answer); m != nil {
		switch strings.ToLower(m[1]) {
		case "a", "an", "the":
		default:
			return m[1]
		}
	}
	fields := strings.Fields(answer)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '-'
	})
}

// Finalize は未設定の項目を既定値で埋めたコピーを返します。
func Finalize(p models.UserProfile) models.UserProfile {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = FillerName
	}
	if strings.TrimSpace(p.Role) == "" {
		p.Role = FillerRole
	}
	if strings.TrimSpace(p.Industry) == "" {
		p.Industry = FillerIndustry
	}
	if strings.TrimSpace(p.OrgSize) == "" {
		p.OrgSize = FillerOrgSize
	}
	return p
}
