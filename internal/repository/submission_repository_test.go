package repository

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"fcr_assist_backend/internal/model"
	"fcr_assist_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func TestFindOrCreateReturnsOneRowPerPair(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	first, err := repo.FindOrCreate(7, "assessment-1")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, model.SubmissionInProgress, first.Status)
	assert.Equal(t, 0, first.PercentComplete)

	responses, err := first.DecodeResponses()
	require.NoError(t, err)
	assert.Empty(t, responses)

	second, err := repo.FindOrCreate(7, "assessment-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := repo.FindOrCreate(8, "assessment-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestUniqueIndexRejectsDuplicateInsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)

	_, err := repo.FindOrCreate(7, "assessment-1")
	require.NoError(t, err)

	dup := &model.AssessmentSubmission{
		UserID:       7,
		AssessmentID: "assessment-1",
		Responses:    json.RawMessage("[]"),
		Status:       model.SubmissionInProgress,
	}
	err = db.Create(dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestUpdateProgressWritesBatchAndPercentTogether(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	s, err := repo.FindOrCreate(7, "assessment-1")
	require.NoError(t, err)

	now := time.Now()
	batch := []model.Response{
		{QuestionID: "q1", Value: "yes", Timestamp: now},
		{QuestionID: "q2", Value: "", Timestamp: now},
	}
	require.NoError(t, repo.UpdateProgress(s.ID, batch, 40))

	got, err := repo.FindByID(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.PercentComplete)
	assert.Equal(t, model.SubmissionInProgress, got.Status)

	responses, err := got.DecodeResponses()
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "q1", responses[0].QuestionID)
	assert.Equal(t, "q2", responses[1].QuestionID)
}

func TestUpdateProgressRejectsMissingSubmission(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))
	err := repo.UpdateProgress("no-such-id", nil, 0)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCompleteIsTerminal(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	s, err := repo.FindOrCreate(7, "assessment-1")
	require.NoError(t, err)

	final := []model.Response{{QuestionID: "q1", Value: "yes", Timestamp: time.Now()}}
	require.NoError(t, repo.Complete(s.ID, final))

	got, err := repo.FindByID(s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionCompleted, got.Status)
	assert.Equal(t, 100, got.PercentComplete)
	require.NotNil(t, got.CompletedAt)

	// A duplicate completion or late autosave must bounce off the
	// conditional write without touching the record.
	assert.ErrorIs(t, repo.Complete(s.ID, nil), util.ErrSubmissionCompleted)
	assert.ErrorIs(t, repo.UpdateProgress(s.ID, nil, 10), util.ErrSubmissionCompleted)

	unchanged, err := repo.FindByID(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, unchanged.PercentComplete)
	assert.Equal(t, got.CompletedAt.Unix(), unchanged.CompletedAt.Unix())

	responses, err := unchanged.DecodeResponses()
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "q1", responses[0].QuestionID)
}

func TestDashboardAggregates(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	avg, err := repo.AverageProgress(7)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	a, err := repo.FindOrCreate(7, "assessment-1")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateProgress(a.ID, nil, 50))

	b, err := repo.FindOrCreate(7, "assessment-2")
	require.NoError(t, err)
	require.NoError(t, repo.Complete(b.ID, nil))

	inProgress, err := repo.CountByUserAndStatus(7, model.SubmissionInProgress)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inProgress)

	completed, err := repo.CountByUserAndStatus(7, model.SubmissionCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)

	avg, err = repo.AverageProgress(7)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, avg, 0.001)

	last, err := repo.LastTouched(7)
	require.NoError(t, err)
	assert.Equal(t, b.ID, last.ID)
}
