package service

import (
	"errors"
	"math"
	"time"

	"fcr_assist_backend/internal/model"
	"fcr_assist_backend/internal/repository"

	"gorm.io/gorm"
)

type DashboardService struct {
	SubmissionRepo *repository.SubmissionRepository
	AssessmentRepo *repository.AssessmentRepository
}

func NewDashboardService(submissionRepo *repository.SubmissionRepository, assessmentRepo *repository.AssessmentRepository) *DashboardService {
	return &DashboardService{SubmissionRepo: submissionRepo, AssessmentRepo: assessmentRepo}
}

// DashboardStats mirrors the overview cards on the dashboard.
type DashboardStats struct {
	TotalAssessments      int64      `json:"totalAssessments"`
	CompletedAssessments  int64      `json:"completedAssessments"`
	InProgressAssessments int64      `json:"inProgressAssessments"`
	CompletionRate        int        `json:"completionRate"`
	AverageProgress       int        `json:"averageProgress"`
	LastActivityAt        *time.Time `json:"lastActivityAt,omitempty"`
	LastCompletedAt       *time.Time `json:"lastCompletedAt,omitempty"`
}

func (s *DashboardService) StatsForUser(userID uint) (*DashboardStats, error) {
	total, err := s.AssessmentRepo.CountPublished()
	if err != nil {
		return nil, err
	}

	completed, err := s.SubmissionRepo.CountByUserAndStatus(userID, model.SubmissionCompleted)
	if err != nil {
		return nil, err
	}

	inProgress, err := s.SubmissionRepo.CountByUserAndStatus(userID, model.SubmissionInProgress)
	if err != nil {
		return nil, err
	}

	avg, err := s.SubmissionRepo.AverageProgress(userID)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalAssessments:      total,
		CompletedAssessments:  completed,
		InProgressAssessments: inProgress,
		AverageProgress:       int(math.Round(avg)),
	}
	if total > 0 {
		stats.CompletionRate = int(math.Round(float64(completed) * 100 / float64(total)))
	}

	last, err := s.SubmissionRepo.LastTouched(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if last != nil {
		t := last.UpdatedAt
		stats.LastActivityAt = &t
		if last.Completed() {
			stats.LastCompletedAt = last.CompletedAt
		}
	}

	return stats, nil
}
