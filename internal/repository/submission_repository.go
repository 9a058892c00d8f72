package repository

import (
	"encoding/json"
	"errors"
	"time"

	"fcr_assist_backend/internal/model"
	"fcr_assist_backend/internal/util"

	"gorm.io/gorm"
)

// SubmissionRepository is the store client for assessment submissions.
// Uniqueness of one submission per (user, assessment) is enforced by
// the composite unique index on the table, not by application locks:
// a losing racer's insert fails with a duplicate-key error and the
// winner's row is re-read. Progress and completion writes are
// conditional on status so a late autosave can never overwrite a
// completed record.
type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) FindByID(id string) (*model.AssessmentSubmission, error) {
	var s model.AssessmentSubmission
	err := r.DB.First(&s, "id = ?", id).Error
	return &s, err
}

func (r *SubmissionRepository) FindByUserAndAssessment(userID uint, assessmentID string) (*model.AssessmentSubmission, error) {
	var s model.AssessmentSubmission
	err := r.DB.Where("user_id = ? AND assessment_id = ?", userID, assessmentID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindOrCreate returns the existing submission for the pair, creating
// an empty in-progress one if none exists. Under concurrent entry the
// unique index decides the winner and the loser re-reads.
func (r *SubmissionRepository) FindOrCreate(userID uint, assessmentID string) (*model.AssessmentSubmission, error) {
	existing, err := r.FindByUserAndAssessment(userID, assessmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	s := &model.AssessmentSubmission{
		UserID:       userID,
		AssessmentID: assessmentID,
		Responses:    json.RawMessage("[]"),
		Status:       model.SubmissionInProgress,
	}
	if err := r.DB.Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.FindByUserAndAssessment(userID, assessmentID)
		}
		return nil, err
	}
	return s, nil
}

// UpdateProgress writes the response batch and its derived percent in
// one statement so readers never observe them out of sync. A zero
// rows-affected result means the submission reached its terminal state
// (or disappeared) and the write is rejected.
func (r *SubmissionRepository) UpdateProgress(id string, responses []model.Response, percent int) error {
	payload, err := json.Marshal(responses)
	if err != nil {
		return err
	}

	res := r.DB.Model(&model.AssessmentSubmission{}).
		Where("id = ? AND status = ?", id, model.SubmissionInProgress).
		Updates(map[string]interface{}{
			"responses":        json.RawMessage(payload),
			"percent_complete": percent,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.rejectInactive(id)
	}
	return nil
}

// Complete performs the terminal transition: final responses, status
// completed, percent forced to 100, all in one conditional write.
func (r *SubmissionRepository) Complete(id string, responses []model.Response) error {
	payload, err := json.Marshal(responses)
	if err != nil {
		return err
	}

	now := time.Now()
	res := r.DB.Model(&model.AssessmentSubmission{}).
		Where("id = ? AND status = ?", id, model.SubmissionInProgress).
		Updates(map[string]interface{}{
			"responses":        json.RawMessage(payload),
			"percent_complete": 100,
			"status":           model.SubmissionCompleted,
			"completed_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.rejectInactive(id)
	}
	return nil
}

// rejectInactive distinguishes "already completed" from "gone" after a
// conditional write matched no rows.
func (r *SubmissionRepository) rejectInactive(id string) error {
	s, err := r.FindByID(id)
	if err != nil {
		return err
	}
	if s.Completed() {
		return util.ErrSubmissionCompleted
	}
	return util.ErrSubmissionNotFound
}

func (r *SubmissionRepository) CountByUserAndStatus(userID uint, status model.SubmissionStatus) (int64, error) {
	var total int64
	err := r.DB.Model(&model.AssessmentSubmission{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&total).Error
	return total, err
}

// AverageProgress averages percent_complete over the user's
// submissions. No submissions yields 0.
func (r *SubmissionRepository) AverageProgress(userID uint) (float64, error) {
	var avg *float64
	err := r.DB.Model(&model.AssessmentSubmission{}).
		Where("user_id = ?", userID).
		Select("AVG(percent_complete)").
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}

// LastTouched returns the user's most recently updated submission.
func (r *SubmissionRepository) LastTouched(userID uint) (*model.AssessmentSubmission, error) {
	var s model.AssessmentSubmission
	err := r.DB.Where("user_id = ?", userID).
		Order("updated_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
