package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"fcr_assist_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testQuiet = 30 * time.Millisecond

// fakePersister records every snapshot it is handed, optionally slow or
// failing, so tests can assert on call counts and payloads.
type fakePersister struct {
	mu       sync.Mutex
	delay    time.Duration
	failNext int
	calls    []map[string]interface{}
}

func (p *fakePersister) persist(set *model.AnswerSet) error {
	p.mu.Lock()
	fail := p.takeFailureLocked()
	p.calls = append(p.calls, set.Values())
	delay := p.delay
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return errors.New("backend unavailable")
	}
	return nil
}

func (p *fakePersister) takeFailureLocked() bool {
	if p.failNext > 0 {
		p.failNext--
		return true
	}
	return false
}

func (p *fakePersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakePersister) last() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func newTestScheduler(p *fakePersister) *AutosaveScheduler {
	return NewAutosaveScheduler(testQuiet, p.persist, zap.NewNop())
}

func TestNotifyDebouncesBurst(t *testing.T) {
	p := &fakePersister{}
	s := newTestScheduler(p)

	// A burst of edits inside one quiet window persists once, with the
	// data from the last edit.
	for i := 0; i < 5; i++ {
		s.Notify(map[string]interface{}{"q1": i})
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, p.last()["q1"])

	// And nothing more fires afterwards.
	time.Sleep(3 * testQuiet)
	assert.Equal(t, 1, p.count())
}

func TestNotifyDuringFlightCoalescesToOneFollowUp(t *testing.T) {
	p := &fakePersister{delay: 120 * time.Millisecond}
	s := newTestScheduler(p)

	s.Notify(map[string]interface{}{"q1": "a"})
	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)

	// Several edits while the first call is still in flight.
	s.Notify(map[string]interface{}{"q1": "b"})
	s.Notify(map[string]interface{}{"q1": "c"})
	s.Notify(map[string]interface{}{"q1": "d"})

	require.Eventually(t, func() bool { return p.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "d", p.last()["q1"])

	time.Sleep(3 * testQuiet)
	assert.Equal(t, 2, p.count(), "edits during flight must coalesce into a single follow-up")
}

func TestFlushNowCancelsTimerAndPersistsOnce(t *testing.T) {
	p := &fakePersister{}
	s := newTestScheduler(p)

	s.Notify(map[string]interface{}{"q1": "a", "q2": "b"})
	require.NoError(t, s.FlushNow())

	assert.Equal(t, 1, p.count())
	assert.Equal(t, "b", p.last()["q2"])

	// The canceled timer must not fire a second save.
	time.Sleep(3 * testQuiet)
	assert.Equal(t, 1, p.count())
}

func TestFlushNowWaitsOutInFlightCall(t *testing.T) {
	p := &fakePersister{delay: 100 * time.Millisecond}
	s := newTestScheduler(p)

	s.Notify(map[string]interface{}{"q1": "stale"})
	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)

	s.Merge(map[string]interface{}{"q1": "fresh"})
	require.NoError(t, s.FlushNow())

	// One in-flight call plus exactly one fresh persist with the
	// latest data, never two for the same edit.
	assert.Equal(t, 2, p.count())
	assert.Equal(t, "fresh", p.last()["q1"])
}

func TestFlushOnExitDoesNotBlock(t *testing.T) {
	p := &fakePersister{delay: 150 * time.Millisecond}
	s := newTestScheduler(p)

	s.Notify(map[string]interface{}{"q1": "a"})

	start := time.Now()
	s.FlushOnExit()
	assert.Less(t, time.Since(start), 50*time.Millisecond, "exit flush must not block the caller")

	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "a", p.last()["q1"])
}

func TestPersistErrorIsRetriedOnNextCycle(t *testing.T) {
	p := &fakePersister{failNext: 1}
	s := newTestScheduler(p)

	s.Notify(map[string]interface{}{"q1": "a"})
	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)

	// The failed batch stays in memory; the next edit carries it along.
	s.Notify(map[string]interface{}{"q1": "a", "q2": "b"})
	require.Eventually(t, func() bool { return p.count() == 2 }, time.Second, 5*time.Millisecond)

	last := p.last()
	assert.Equal(t, "a", last["q1"])
	assert.Equal(t, "b", last["q2"])
}

func TestStopDropsPendingWork(t *testing.T) {
	p := &fakePersister{}
	s := newTestScheduler(p)

	s.Notify(map[string]interface{}{"q1": "a"})
	s.Stop()

	time.Sleep(3 * testQuiet)
	assert.Equal(t, 0, p.count())

	// Stopped schedulers ignore further edits entirely.
	s.Notify(map[string]interface{}{"q1": "b"})
	time.Sleep(3 * testQuiet)
	assert.Equal(t, 0, p.count())
}

func TestReopenAcceptsNewEdits(t *testing.T) {
	p := &fakePersister{}
	s := newTestScheduler(p)

	s.Stop()
	s.Reopen()

	s.Notify(map[string]interface{}{"q1": "a"})
	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)
}
