package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeSessionMetrics records every call it receives, for assertions on
// which metrics a code path triggers without standing up Prometheus.
type fakeSessionMetrics struct {
	attaches       []bool
	evictions      []string
	activeSessions []int
	statCache      []string
}

func (f *fakeSessionMetrics) RecordAttach(success bool, _ time.Duration) {
	f.attaches = append(f.attaches, success)
}

func (f *fakeSessionMetrics) RecordEviction(reason string) {
	f.evictions = append(f.evictions, reason)
}

func (f *fakeSessionMetrics) SetActiveSessions(count int) {
	f.activeSessions = append(f.activeSessions, count)
}

func (f *fakeSessionMetrics) RecordStatCacheResult(outcome string) {
	f.statCache = append(f.statCache, outcome)
}

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateConnecting: "connecting",
		StateReady:      "ready",
		StateFailed:     "failed",
		StateDraining:   "draining",
		StateClosed:     "closed",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestGuestSessionRefCounting(t *testing.T) {
	s := newSession("nbd://example/export", nil)
	assert.EqualValues(t, 0, s.RefCount())

	s.Acquire()
	s.Acquire()
	assert.EqualValues(t, 2, s.RefCount())

	s.Release()
	assert.EqualValues(t, 1, s.RefCount())
}

func TestGuestSessionTouchResetsIdleTimer(t *testing.T) {
	s := newSession("nbd://example/export", nil)
	s.lastActivity = time.Now().Add(-time.Hour)
	assert.Greater(t, s.IdleSince(), 30*time.Minute)

	s.touch()
	assert.Less(t, s.IdleSince(), time.Second)
}

func TestGuestSessionReadBeforeAttachFails(t *testing.T) {
	s := newSession("nbd://example/export", nil)
	_, _, err := s.Read("/kernel", make([]byte, 16), 0)
	assert.Error(t, err)
}

func TestGuestSessionStatBeforeAttachFails(t *testing.T) {
	s := newSession("nbd://example/export", nil)
	_, err := s.Stat("/kernel")
	assert.Error(t, err)
}

func TestRegistrySnapshotEmpty(t *testing.T) {
	r := NewRegistry(nil, nil)
	assert.Empty(t, r.Snapshot())
}

func TestRegistryGetMissingURL(t *testing.T) {
	r := NewRegistry(nil, nil)
	_, ok := r.Get("nbd://nowhere")
	assert.False(t, ok)
}

func TestRegistryMarkDrainingOnUnknownURLIsNoop(t *testing.T) {
	r := NewRegistry(nil, nil)
	assert.NotPanics(t, func() {
		r.MarkDraining("nbd://nowhere")
	})
}

func TestRegistrySweepOnEmptyRegistryIsNoop(t *testing.T) {
	r := NewRegistry(nil, nil)
	assert.NotPanics(t, func() {
		r.Sweep(time.Minute)
	})
}

func TestRegistryCloseAllOnEmptyRegistryIsNoop(t *testing.T) {
	r := NewRegistry(nil, nil)
	assert.NotPanics(t, func() {
		r.CloseAll()
	})
}

func newReadyEntryForTest(url string) *entry {
	sess := newSession(url, nil)
	sess.state = StateReady
	sess.lastActivity = time.Now()
	return &entry{session: sess, attachDone: make(chan struct{})}
}

func TestRegistryDrainRecordsEvictionMetric(t *testing.T) {
	metrics := &fakeSessionMetrics{}
	r := NewRegistry(nil, metrics)

	r.entries["nbd://example/export"] = newReadyEntryForTest("nbd://example/export")

	r.Drain("nbd://example/export")

	assert.Equal(t, []string{"drained"}, metrics.evictions)
	assert.Equal(t, []int{0}, metrics.activeSessions)
	_, ok := r.Get("nbd://example/export")
	assert.False(t, ok)
}

func TestRegistrySweepRecordsIdleTimeoutEvictionMetric(t *testing.T) {
	metrics := &fakeSessionMetrics{}
	r := NewRegistry(nil, metrics)

	e := newReadyEntryForTest("nbd://example/export")
	e.session.lastActivity = time.Now().Add(-time.Hour)
	r.entries["nbd://example/export"] = e

	r.Sweep(time.Minute)

	assert.Equal(t, []string{"idle_timeout"}, metrics.evictions)
}

func TestRegistryCloseAllRecordsShutdownEvictionMetric(t *testing.T) {
	metrics := &fakeSessionMetrics{}
	r := NewRegistry(nil, metrics)

	r.entries["nbd://example/export"] = newReadyEntryForTest("nbd://example/export")

	r.CloseAll()

	assert.Equal(t, []string{"shutdown"}, metrics.evictions)
}

func TestGuestSessionStatRecordsCacheHitAndMiss(t *testing.T) {
	cache, err := NewStatCache(t.TempDir(), time.Minute)
	assert.NoError(t, err)
	defer cache.Close()

	metrics := &fakeSessionMetrics{}
	s := newSession("nbd://example/export", nil)
	s.cache = cache
	s.metrics = metrics
	s.cache.put(s.url, "/kernel", 4096)

	size, err := s.Stat("/kernel")
	assert.NoError(t, err)
	assert.EqualValues(t, 4096, size)
	assert.Equal(t, []string{"hit"}, metrics.statCache)

	_, err = s.Stat("/missing")
	assert.Error(t, err)
	assert.Equal(t, []string{"hit", "miss"}, metrics.statCache)
}
