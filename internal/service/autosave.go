package service

import (
	"sync"
	"time"

	"fcr_assist_backend/internal/model"
	"fcr_assist_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// persistFunc writes one snapshot of the answer set to the backend.
type persistFunc func(set *model.AnswerSet) error

// AutosaveScheduler debounces a stream of answer-set edits into at most
// one in-flight persistence call per quiet period. All state is
// instance-scoped: every live submission session owns its own scheduler,
// so concurrent sessions never share a timer.
//
// Invariants it maintains:
//   - trailing-edge debounce: only the last edit of a burst triggers a write
//   - at most one persistence call in flight
//   - at most one pending follow-up while a call is in flight
//
// Together these keep writes in the order their edits were finalized.
type AutosaveScheduler struct {
	quiet   time.Duration
	persist persistFunc
	log     *zap.Logger

	mu       sync.Mutex
	idle     *sync.Cond // signaled whenever inFlight drops
	timer    *time.Timer
	latest   *model.AnswerSet
	inFlight bool
	pending  bool
	closed   bool
	lastErr  error
}

func NewAutosaveScheduler(quiet time.Duration, persist persistFunc, log *zap.Logger) *AutosaveScheduler {
	s := &AutosaveScheduler{
		quiet:   quiet,
		persist: persist,
		log:     log,
		latest:  model.NewAnswerSet(),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Notify records the full current value map from an edit and restarts
// the quiet-period timer. Edits landing inside the window supersede
// each other; only the final timer fire persists.
func (s *AutosaveScheduler) Notify(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.latest.Merge(values)

	if s.timer != nil || s.inFlight {
		monitoring.AutosaveCoalesced.Inc()
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.quiet, s.timerFired)
	} else {
		s.timer.Reset(s.quiet)
	}
}

// Merge folds values into the latest answer set without scheduling a
// save. Used by the completion path to absorb the final value map.
func (s *AutosaveScheduler) Merge(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest.Merge(values)
}

// Snapshot returns an independent copy of the latest answer set.
func (s *AutosaveScheduler) Snapshot() *model.AnswerSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Clone()
}

func (s *AutosaveScheduler) timerFired() {
	s.mu.Lock()
	s.timer = nil
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		// Never overlap: queue exactly one follow-up instead.
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	go s.drain()
}

// drain persists the latest snapshot, then once more if an edit queued
// behind the in-flight call. The caller must have set inFlight.
func (s *AutosaveScheduler) drain() error {
	var err error
	for {
		s.mu.Lock()
		snapshot := s.latest.Clone()
		s.mu.Unlock()

		err = s.persist(snapshot)
		if err != nil {
			// Recovered locally: the answer set stays dirty in memory
			// and the next debounce cycle retries.
			s.log.Warn("autosave persist failed", zap.Error(err))
		}

		s.mu.Lock()
		s.lastErr = err
		if !s.pending || s.closed {
			s.inFlight = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return err
		}
		s.pending = false
		s.mu.Unlock()
	}
}

// FlushNow cancels any pending timer and persists the latest answer set
// immediately. If a call is already in flight it waits for it and then
// issues exactly one fresh persist, never two for the same edit.
func (s *AutosaveScheduler) FlushNow() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()

	if s.inFlight {
		s.pending = true
		for s.inFlight {
			s.idle.Wait()
		}
		err := s.lastErr
		s.mu.Unlock()
		return err
	}

	s.inFlight = true
	s.mu.Unlock()
	return s.drain()
}

// FlushOnExit is FlushNow without making the caller wait: the final
// persist runs in the background and failures are only logged.
func (s *AutosaveScheduler) FlushOnExit() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	if s.inFlight {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	go s.drain()
}

// Stop cancels pending work and waits out any in-flight persist. After
// Stop the scheduler accepts no new saves until Reopen.
func (s *AutosaveScheduler) Stop() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.pending = false
	s.closed = true
	for s.inFlight {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// Reopen re-enables a stopped scheduler. Used when a completion write
// fails and the session must keep accepting retries and autosaves.
func (s *AutosaveScheduler) Reopen() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}

func (s *AutosaveScheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
