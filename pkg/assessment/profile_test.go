package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"maturity-navigator-api/pkg/models"
)

func TestApplyAnswer(t *testing.T) {
	var p models.UserProfile

	ApplyAnswer(&p, PhaseUserInfo, QuestionNameRole, "Hi, my name is Priya and I lead data engineering")
	ApplyAnswer(&p, PhaseUserInfo, QuestionIndustry, "Healthcare")
	ApplyAnswer(&p, PhaseUserInfo, QuestionOrgSize, "Enterprise, about 5000 people")
	ApplyAnswer(&p, PhaseUserInfo, QuestionEmail, "send it to priya@example.com please")

	assert.Equal(t, "Priya", p.Name)
	assert.Equal(t, "Hi, my name is Priya and I lead data engineering", p.Role)
	assert.Equal(t, "Healthcare", p.Industry)
	assert.Equal(t, "Enterprise, about 5000 people", p.OrgSize)
	assert.Equal(t, "priya@example.com", p.Email)
}

func TestApplyAnswer_IgnoresOtherPhases(t *testing.T) {
	var p models.UserProfile

	ApplyAnswer(&p, PhaseProductivity, QuestionIndustry, "Retail")
	assert.Equal(t, models.UserProfile{}, p)
}

func TestApplyAnswer_PicksUpEmailFromAnyUserInfoAnswer(t *testing.T) {
	var p models.UserProfile

	ApplyAnswer(&p, PhaseUserInfo, "user-responsibility", "Both. Reach me at sam@corp.io")
	assert.Equal(t, "sam@corp.io", p.Email)
}

func TestExtractName(t *testing.T) {
	assert.Equal(t, "Alex", extractName("I'm Alex, head of operations"))
	assert.Equal(t, "Jordan", extractName("Jordan, product manager"))
	assert.Equal(t, "Kim", extractName("Kim"))
}

func TestFinalize(t *testing.T) {
	p := Finalize(models.UserProfile{Industry: "Finance"})

	assert.Equal(t, FillerName, p.Name)
	assert.Equal(t, FillerRole, p.Role)
	assert.Equal(t, "Finance", p.Industry)
	assert.Equal(t, FillerOrgSize, p.OrgSize)
	assert.Empty(t, p.Email)
}
