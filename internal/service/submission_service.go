package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"fcr_assist_backend/internal/config"
	"fcr_assist_backend/internal/model"
	"fcr_assist_backend/internal/repository"
	"fcr_assist_backend/internal/util"
	"fcr_assist_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// SubmissionService owns the submission lifecycle: find-or-create on
// entry, debounced autosave persistence, and the one-way completion
// transition. One SubmissionSession is held per active (user,
// assessment) pair; repeated entry reuses the live session.
type SubmissionService struct {
	Repo           *repository.SubmissionRepository
	AssessmentRepo *repository.AssessmentRepository
	Cfg            *config.Config
	Log            *zap.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*SubmissionSession
}

type sessionKey struct {
	userID       uint
	assessmentID string
}

func NewSubmissionService(repo *repository.SubmissionRepository, assessmentRepo *repository.AssessmentRepository, cfg *config.Config, log *zap.Logger) *SubmissionService {
	return &SubmissionService{
		Repo:           repo,
		AssessmentRepo: assessmentRepo,
		Cfg:            cfg,
		Log:            log,
		sessions:       make(map[sessionKey]*SubmissionSession),
	}
}

// EnterResult is what the form renderer needs to start: the submission
// record, the rehydrated value map, and the progress denominator.
type EnterResult struct {
	Submission     *model.AssessmentSubmission `json:"submission"`
	InitialValues  map[string]interface{}      `json:"initialValues"`
	TotalQuestions int                         `json:"totalQuestions"`
}

// Enter runs the reconciliation load for one (user, assessment) pair:
// find or create the submission, rehydrate its responses, and hand back
// a live session. Calling it again while the session is alive observes
// the same submission rather than creating a duplicate.
func (s *SubmissionService) Enter(userID uint, assessmentID string) (*EnterResult, error) {
	key := sessionKey{userID: userID, assessmentID: assessmentID}

	s.mu.Lock()
	if sess, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return sess.enterResult()
	}
	s.mu.Unlock()

	assessment, err := s.AssessmentRepo.FindByID(assessmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSubmissionInit, err)
	}

	submission, err := s.Repo.FindOrCreate(userID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSubmissionInit, err)
	}

	responses, err := submission.DecodeResponses()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSubmissionInit, err)
	}

	sess := &SubmissionSession{
		svc:            s,
		userID:         userID,
		assessmentID:   assessmentID,
		submissionID:   submission.ID,
		totalQuestions: assessment.TotalQuestions(),
		knownQuestions: assessment.QuestionIDs(),
		completed:      submission.Completed(),
		lastActive:     time.Now(),
	}
	sess.sched = NewAutosaveScheduler(s.Cfg.Autosave.QuietWindow(), sess.persistAnswers, s.Log)
	sess.sched.Merge(model.AnswerSetFromResponses(responses).Values())
	if sess.completed {
		sess.sched.Stop()
	}

	s.mu.Lock()
	// A racing Enter may have registered first; its session wins.
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		sess.sched.Stop()
		return existing.enterResult()
	}
	s.sessions[key] = sess
	s.mu.Unlock()

	return &EnterResult{
		Submission:     submission,
		InitialValues:  sess.sched.Snapshot().Values(),
		TotalQuestions: sess.totalQuestions,
	}, nil
}

func (s *SubmissionService) session(userID uint, assessmentID string) (*SubmissionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey{userID: userID, assessmentID: assessmentID}]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	return sess, nil
}

// Notify routes a change event from the renderer into the session's
// autosave scheduler.
func (s *SubmissionService) Notify(userID uint, assessmentID string, values map[string]interface{}) error {
	sess, err := s.session(userID, assessmentID)
	if err != nil {
		return err
	}
	return sess.notify(values)
}

// Save is the explicit manual save: flush the latest answer set now.
func (s *SubmissionService) Save(userID uint, assessmentID string) error {
	sess, err := s.session(userID, assessmentID)
	if err != nil {
		return err
	}
	return sess.save()
}

// Exit fires a best-effort final flush without blocking the caller and
// releases the session.
func (s *SubmissionService) Exit(userID uint, assessmentID string) error {
	key := sessionKey{userID: userID, assessmentID: assessmentID}

	s.mu.Lock()
	sess, ok := s.sessions[key]
	if ok {
		delete(s.sessions, key)
	}
	s.mu.Unlock()
	if !ok {
		return util.ErrSessionNotFound
	}

	sess.exit()
	return nil
}

// Complete performs the terminal transition with the renderer's final
// value map. If the session was lost (say, across a restart) it is
// re-entered first, so completion still lands on the right submission.
func (s *SubmissionService) Complete(userID uint, assessmentID string, values map[string]interface{}) (*model.AssessmentSubmission, error) {
	sess, err := s.session(userID, assessmentID)
	if errors.Is(err, util.ErrSessionNotFound) {
		if _, err := s.Enter(userID, assessmentID); err != nil {
			return nil, err
		}
		sess, err = s.session(userID, assessmentID)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return sess.complete(values)
}

// EvictIdleSessions flushes and drops sessions untouched for longer
// than the configured idle timeout. Run periodically from the app.
func (s *SubmissionService) EvictIdleSessions() {
	timeout := s.Cfg.Autosave.SessionIdleTimeout()

	s.mu.Lock()
	var evicted []*SubmissionSession
	for key, sess := range s.sessions {
		if sess.idleFor() > timeout {
			evicted = append(evicted, sess)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		s.Log.Info("evicting idle submission session",
			zap.Uint("userId", sess.userID),
			zap.String("assessmentId", sess.assessmentID))
		sess.exit()
	}
}

// FlushAllSessions releases every live session with a final flush.
// Called on shutdown.
func (s *SubmissionService) FlushAllSessions() {
	s.mu.Lock()
	sessions := make([]*SubmissionSession, 0, len(s.sessions))
	for key, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, key)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.exit()
	}
}

// ActiveSessions reports the current session count, for health output.
func (s *SubmissionService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SubmissionSession is the live handle for one user's attempt at one
// assessment. Status is monotonic: once completed, every later autosave
// is discarded here and rejected by the store's conditional write.
type SubmissionSession struct {
	svc            *SubmissionService
	userID         uint
	assessmentID   string
	submissionID   string
	totalQuestions int
	knownQuestions map[string]struct{}
	sched          *AutosaveScheduler

	mu         sync.Mutex
	completed  bool
	lastActive time.Time
}

func (s *SubmissionSession) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *SubmissionSession) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActive)
}

func (s *SubmissionSession) isCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *SubmissionSession) enterResult() (*EnterResult, error) {
	submission, err := s.svc.Repo.FindByID(s.submissionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSubmissionInit, err)
	}
	return &EnterResult{
		Submission:     submission,
		InitialValues:  s.sched.Snapshot().Values(),
		TotalQuestions: s.totalQuestions,
	}, nil
}

func (s *SubmissionSession) notify(values map[string]interface{}) error {
	if s.isCompleted() {
		return util.ErrSubmissionCompleted
	}
	s.touch()
	s.sched.Notify(values)
	return nil
}

func (s *SubmissionSession) save() error {
	if s.isCompleted() {
		return util.ErrSubmissionCompleted
	}
	s.touch()
	return s.sched.FlushNow()
}

func (s *SubmissionSession) exit() {
	s.sched.FlushOnExit()
}

// persistAnswers is the scheduler's persistence callback: one response
// batch plus its recomputed percent, written atomically. Late flushes
// against a completed submission are discarded.
func (s *SubmissionSession) persistAnswers(set *model.AnswerSet) error {
	if s.isCompleted() {
		monitoring.AutosaveFlushes.WithLabelValues("discarded").Inc()
		return nil
	}

	s.warnOnDrift(set)

	responses := set.Responses(time.Now())
	percent := CompletionPercent(set.Len(), s.totalQuestions)

	err := s.svc.Repo.UpdateProgress(s.submissionID, responses, percent)
	if errors.Is(err, util.ErrSubmissionCompleted) {
		// The store rejected a write that raced the terminal transition.
		s.mu.Lock()
		s.completed = true
		s.mu.Unlock()
		monitoring.AutosaveFlushes.WithLabelValues("discarded").Inc()
		return nil
	}
	if err != nil {
		monitoring.AutosaveFlushes.WithLabelValues("error").Inc()
		return err
	}
	monitoring.AutosaveFlushes.WithLabelValues("ok").Inc()
	return nil
}

// warnOnDrift logs answers whose question id no longer matches the
// assessment definition. Drift is non-fatal; the response is persisted
// as captured.
func (s *SubmissionSession) warnOnDrift(set *model.AnswerSet) {
	for id := range set.Values() {
		if _, ok := s.knownQuestions[id]; !ok {
			s.svc.Log.Warn("response references unknown question",
				zap.String("assessmentId", s.assessmentID),
				zap.String("questionId", id))
		}
	}
}

// complete executes the terminal transition exactly once. A duplicate
// completion signal is a no-op. On failure the submission stays
// in_progress and the in-memory answers are preserved for a retry.
func (s *SubmissionSession) complete(values map[string]interface{}) (*model.AssessmentSubmission, error) {
	if s.isCompleted() {
		monitoring.SubmissionCompletions.WithLabelValues("duplicate").Inc()
		return s.svc.Repo.FindByID(s.submissionID)
	}

	s.touch()
	s.sched.Merge(values)
	// Cancel pending autosaves and wait out any in-flight one so the
	// terminal write is the last write.
	s.sched.Stop()

	responses := s.sched.Snapshot().Responses(time.Now())
	err := s.svc.Repo.Complete(s.submissionID, responses)
	if errors.Is(err, util.ErrSubmissionCompleted) {
		// A concurrent double-fire won the race; treat as already done.
		s.mu.Lock()
		s.completed = true
		s.mu.Unlock()
		monitoring.SubmissionCompletions.WithLabelValues("duplicate").Inc()
		return s.svc.Repo.FindByID(s.submissionID)
	}
	if err != nil {
		s.sched.Reopen()
		monitoring.SubmissionCompletions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", util.ErrCompletionFailed, err)
	}

	s.mu.Lock()
	s.completed = true
	s.mu.Unlock()
	monitoring.SubmissionCompletions.WithLabelValues("ok").Inc()
	return s.svc.Repo.FindByID(s.submissionID)
}
