package model

import "encoding/json"

// Catalog categories mirror the competency areas shown on the assessments page.
const (
	CategoryClassroomManagement     = "classroom_management"
	CategoryCurriculumPlanning      = "curriculum_planning"
	CategoryChildDevelopment        = "child_development"
	CategoryFamilyEngagement        = "family_engagement"
	CategoryProfessionalDevelopment = "professional_development"
	CategoryHealthSafety            = "health_safety"
	CategoryInclusivePractices      = "inclusive_practices"
	CategoryAssessmentEvaluation    = "assessment_evaluation"
)

// Assessment is a read-only catalog entry. Sections holds the ordered
// section/question structure as JSON and is never mutated by the
// submission engine; it is only parsed for question counts and ids.
// swagger:model Assessment
type Assessment struct {
	UUIDBase
	Title         string          `gorm:"size:255;not null" json:"title"`
	Description   string          `gorm:"type:text" json:"description"`
	Category      string          `gorm:"size:50;index" json:"category"`
	EstimatedTime int             `gorm:"default:0" json:"estimatedTime"` // Minutes
	Sections      json.RawMessage `gorm:"type:json" json:"sections"`
	IsPublished   bool            `gorm:"default:false" json:"isPublished"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// AssessmentSection is the decoded shape of one element of
// Assessment.Sections.
type AssessmentSection struct {
	Title     string               `json:"title"`
	Questions []AssessmentQuestion `json:"questions"`
}

// AssessmentQuestion carries the stable question identifier (Name) the
// form renderer keys answers by.
type AssessmentQuestion struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// DecodeSections parses the sections JSON. A null or empty payload
// decodes to no sections rather than an error.
func (a *Assessment) DecodeSections() ([]AssessmentSection, error) {
	if len(a.Sections) == 0 {
		return nil, nil
	}
	var sections []AssessmentSection
	if err := json.Unmarshal(a.Sections, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// TotalQuestions sums per-section question counts. Used only as the
// progress denominator.
func (a *Assessment) TotalQuestions() int {
	sections, err := a.DecodeSections()
	if err != nil {
		return 0
	}
	total := 0
	for _, s := range sections {
		total += len(s.Questions)
	}
	return total
}

// QuestionIDs returns the set of known question identifiers, used to
// warn about answers that no longer match the catalog definition.
func (a *Assessment) QuestionIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	sections, err := a.DecodeSections()
	if err != nil {
		return ids
	}
	for _, s := range sections {
		for _, q := range s.Questions {
			ids[q.Name] = struct{}{}
		}
	}
	return ids
}
