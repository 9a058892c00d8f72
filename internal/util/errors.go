package util

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailRegistered     = errors.New("email is already registered")
	ErrAssessmentNotFound  = errors.New("assessment not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrSubmissionInit      = errors.New("failed to initialize submission")
	ErrSubmissionCompleted = errors.New("submission is already completed")
	ErrCompletionFailed    = errors.New("failed to complete submission")
	ErrSessionNotFound     = errors.New("no active submission session")
)
