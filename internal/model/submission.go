package model

import (
	"encoding/json"
	"time"
)

type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "in_progress"
	SubmissionCompleted  SubmissionStatus = "completed"
)

// AssessmentSubmission is one user's attempt at one assessment. The
// composite unique index makes find-or-create authoritative: a racing
// second create for the same (user, assessment) pair fails with a
// duplicate-key error and the caller re-reads the winner's row.
// swagger:model AssessmentSubmission
type AssessmentSubmission struct {
	UUIDBase
	UserID          uint             `gorm:"uniqueIndex:idx_submissions_user_assessment;type:bigint unsigned" json:"userId"`
	User            *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AssessmentID    string           `gorm:"uniqueIndex:idx_submissions_user_assessment;type:varchar(36)" json:"assessmentId"`
	Responses       json.RawMessage  `gorm:"type:json" json:"responses"`
	PercentComplete int              `gorm:"default:0" json:"percentComplete"`
	Status          SubmissionStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
}

func (AssessmentSubmission) TableName() string {
	return "assessment_submissions"
}

func (s *AssessmentSubmission) Completed() bool {
	return s.Status == SubmissionCompleted
}

// Response is one answered question's captured value. Timestamp is set
// when the answer is captured into a persisted batch, not per keystroke.
type Response struct {
	QuestionID string      `json:"questionId"`
	Value      interface{} `json:"value"`
	Timestamp  time.Time   `json:"timestamp"`
}

// DecodeResponses parses the stored responses array. Null decodes to
// an empty slice.
func (s *AssessmentSubmission) DecodeResponses() ([]Response, error) {
	if len(s.Responses) == 0 {
		return nil, nil
	}
	var responses []Response
	if err := json.Unmarshal(s.Responses, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// AnswerSet is the in-memory value map of a live submission. It keeps
// first-write order for its keys so persisted responses stay in write
// order even though the renderer delivers edits as plain maps.
// Not safe for concurrent use; callers hold their own lock.
type AnswerSet struct {
	order  []string
	values map[string]interface{}
}

func NewAnswerSet() *AnswerSet {
	return &AnswerSet{values: make(map[string]interface{})}
}

// AnswerSetFromResponses rehydrates an answer set from stored responses,
// preserving stored order.
func AnswerSetFromResponses(responses []Response) *AnswerSet {
	set := NewAnswerSet()
	for _, r := range responses {
		set.Set(r.QuestionID, r.Value)
	}
	return set
}

func (a *AnswerSet) Set(questionID string, value interface{}) {
	if _, ok := a.values[questionID]; !ok {
		a.order = append(a.order, questionID)
	}
	a.values[questionID] = value
}

// Merge reconciles the full current value map from a change event:
// existing keys keep their position, new keys append, keys absent from
// the incoming map are dropped (the renderer cleared that answer).
func (a *AnswerSet) Merge(values map[string]interface{}) {
	kept := a.order[:0]
	for _, id := range a.order {
		if _, ok := values[id]; ok {
			kept = append(kept, id)
		} else {
			delete(a.values, id)
		}
	}
	a.order = kept
	for id, v := range values {
		a.Set(id, v)
	}
}

// Len counts distinct answered questions. An explicit empty or zero
// value still counts as answered.
func (a *AnswerSet) Len() int {
	return len(a.order)
}

func (a *AnswerSet) Get(questionID string) (interface{}, bool) {
	v, ok := a.values[questionID]
	return v, ok
}

// Values returns a copy of the value map, keyed by question id.
func (a *AnswerSet) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(a.values))
	for id, v := range a.values {
		out[id] = v
	}
	return out
}

// Clone returns an independent snapshot.
func (a *AnswerSet) Clone() *AnswerSet {
	clone := NewAnswerSet()
	for _, id := range a.order {
		clone.Set(id, a.values[id])
	}
	return clone
}

// Responses materializes the set as a response batch captured at ts.
func (a *AnswerSet) Responses(ts time.Time) []Response {
	out := make([]Response, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, Response{QuestionID: id, Value: a.values[id], Timestamp: ts})
	}
	return out
}
