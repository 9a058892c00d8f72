package service

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"fcr_assist_backend/internal/config"
	"fcr_assist_backend/internal/model"
	"fcr_assist_backend/internal/repository"
	"fcr_assist_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Five questions across two sections, matching the shape the catalog
// stores.
const testSections = `[
	{"title": "Daily Routines", "questions": [
		{"name": "q1", "title": "Arrival routine", "type": "radiogroup"},
		{"name": "q2", "title": "Meal transitions", "type": "radiogroup"},
		{"name": "q3", "title": "Rest time", "type": "comment"}
	]},
	{"title": "Environment", "questions": [
		{"name": "q4", "title": "Room arrangement", "type": "radiogroup"},
		{"name": "q5", "title": "Materials access", "type": "comment"}
	]}
]`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Assessment{}, &model.AssessmentSubmission{}))
	return db
}

func newTestService(t *testing.T) (*SubmissionService, string) {
	t.Helper()
	db := newTestDB(t)

	assessment := &model.Assessment{
		Title:       "Classroom Environment Self-Check",
		Category:    model.CategoryClassroomManagement,
		Sections:    json.RawMessage(testSections),
		IsPublished: true,
	}
	require.NoError(t, db.Create(assessment).Error)

	cfg := &config.Config{
		Autosave: config.AutosaveConfig{QuietWindowSeconds: 1},
	}
	svc := NewSubmissionService(
		repository.NewSubmissionRepository(db),
		repository.NewAssessmentRepository(db),
		cfg,
		zap.NewNop(),
	)
	return svc, assessment.ID
}

func TestEnterFindsOrCreatesOnce(t *testing.T) {
	svc, assessmentID := newTestService(t)

	first, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)
	assert.Equal(t, 5, first.TotalQuestions)
	assert.Empty(t, first.InitialValues)
	assert.Equal(t, model.SubmissionInProgress, first.Submission.Status)

	second, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	assert.Equal(t, 1, svc.ActiveSessions())
}

func TestEnterUnknownAssessmentFails(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Enter(7, "no-such-assessment")
	assert.ErrorIs(t, err, util.ErrSubmissionInit)
}

func TestEnterUnpublishedAssessmentFails(t *testing.T) {
	svc, _ := newTestService(t)

	draft := &model.Assessment{
		Title:    "Draft",
		Sections: json.RawMessage(testSections),
	}
	require.NoError(t, svc.Repo.DB.Create(draft).Error)

	_, err := svc.Enter(7, draft.ID)
	assert.ErrorIs(t, err, util.ErrSubmissionInit)
}

func TestSavePersistsAnswersWithDerivedPercent(t *testing.T) {
	svc, assessmentID := newTestService(t)

	entered, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)

	// Four of five answered; an explicit empty answer still counts.
	values := map[string]interface{}{
		"q1": "yes", "q2": "no", "q3": "", "q4": "yes",
	}
	require.NoError(t, svc.Notify(7, assessmentID, values))
	require.NoError(t, svc.Save(7, assessmentID))

	got, err := svc.Repo.FindByID(entered.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, got.PercentComplete)
	assert.Equal(t, model.SubmissionInProgress, got.Status)

	responses, err := got.DecodeResponses()
	require.NoError(t, err)
	assert.Len(t, responses, 4)
}

func TestExitReleasesSessionAndEnterRehydrates(t *testing.T) {
	svc, assessmentID := newTestService(t)

	entered, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)

	values := map[string]interface{}{"q1": "yes", "q2": "no"}
	require.NoError(t, svc.Notify(7, assessmentID, values))
	require.NoError(t, svc.Save(7, assessmentID))
	require.NoError(t, svc.Exit(7, assessmentID))
	assert.Equal(t, 0, svc.ActiveSessions())

	// A session must exist before change events are accepted.
	assert.ErrorIs(t, svc.Notify(7, assessmentID, values), util.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Exit(7, assessmentID), util.ErrSessionNotFound)

	reentered, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)
	assert.Equal(t, entered.Submission.ID, reentered.Submission.ID)
	assert.Equal(t, "yes", reentered.InitialValues["q1"])
	assert.Equal(t, "no", reentered.InitialValues["q2"])
}

func TestCompleteIsIdempotent(t *testing.T) {
	svc, assessmentID := newTestService(t)

	entered, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)

	final := map[string]interface{}{"q1": "yes", "q2": "no", "q3": "fine"}
	done, err := svc.Complete(7, assessmentID, final)
	require.NoError(t, err)
	assert.Equal(t, entered.Submission.ID, done.ID)
	assert.Equal(t, model.SubmissionCompleted, done.Status)
	assert.Equal(t, 100, done.PercentComplete)
	require.NotNil(t, done.CompletedAt)

	// A double-fired completion signal lands on the same record.
	again, err := svc.Complete(7, assessmentID, final)
	require.NoError(t, err)
	assert.Equal(t, done.ID, again.ID)
	assert.Equal(t, done.CompletedAt.Unix(), again.CompletedAt.Unix())

	responses, err := again.DecodeResponses()
	require.NoError(t, err)
	assert.Len(t, responses, 3)
}

func TestEditsAfterCompletionAreRejected(t *testing.T) {
	svc, assessmentID := newTestService(t)

	_, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)

	done, err := svc.Complete(7, assessmentID, map[string]interface{}{"q1": "yes"})
	require.NoError(t, err)

	late := map[string]interface{}{"q1": "changed", "q2": "late"}
	assert.ErrorIs(t, svc.Notify(7, assessmentID, late), util.ErrSubmissionCompleted)
	assert.ErrorIs(t, svc.Save(7, assessmentID), util.ErrSubmissionCompleted)

	unchanged, err := svc.Repo.FindByID(done.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, unchanged.PercentComplete)
	responses, err := unchanged.DecodeResponses()
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "yes", responses[0].Value)
}

func TestCompleteWithoutSessionReentersFirst(t *testing.T) {
	svc, assessmentID := newTestService(t)

	entered, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)
	require.NoError(t, svc.Notify(7, assessmentID, map[string]interface{}{"q1": "yes"}))
	require.NoError(t, svc.Save(7, assessmentID))
	require.NoError(t, svc.Exit(7, assessmentID))

	// Completion after a restart re-enters and lands on the same row.
	done, err := svc.Complete(7, assessmentID, map[string]interface{}{"q1": "yes", "q2": "no"})
	require.NoError(t, err)
	assert.Equal(t, entered.Submission.ID, done.ID)
	assert.Equal(t, model.SubmissionCompleted, done.Status)
}

func TestEvictIdleSessionsFlushesAndDrops(t *testing.T) {
	svc, assessmentID := newTestService(t)

	entered, err := svc.Enter(7, assessmentID)
	require.NoError(t, err)
	require.NoError(t, svc.Notify(7, assessmentID, map[string]interface{}{"q1": "yes"}))

	svc.mu.Lock()
	sess := svc.sessions[sessionKey{userID: 7, assessmentID: assessmentID}]
	svc.mu.Unlock()
	sess.mu.Lock()
	sess.lastActive = time.Now().Add(-time.Hour)
	sess.mu.Unlock()

	svc.EvictIdleSessions()
	assert.Equal(t, 0, svc.ActiveSessions())

	// Eviction flushes in the background; the pending edit must land.
	require.Eventually(t, func() bool {
		got, err := svc.Repo.FindByID(entered.Submission.ID)
		if err != nil {
			return false
		}
		return got.PercentComplete == 20
	}, 2*time.Second, 10*time.Millisecond)
}
