package watcher

import (
	"testing"
	"time"

	"alchemy/internal/competition/status"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type change struct {
	id   string
	kind status.Kind
}

func newTestWatcher(t *testing.T) (*Watcher, *clock.Mock, chan change) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(t0.Add(-5 * time.Second))
	changes := make(chan change, 16)
	w := New(mock, func(id string, s status.Status) {
		changes <- change{id: id, kind: s.Kind}
	})
	t.Cleanup(w.Stop)
	return w, mock, changes
}

func descriptor(id string, submissions, winners int) status.Descriptor {
	return status.Descriptor{
		ID:                         id,
		StartTime:                  t0,
		SuggestionsEndTime:         t0.Add(10 * time.Second),
		VotingStartTime:            t0.Add(20 * time.Second),
		EndTime:                    t0.Add(30 * time.Second),
		TotalSubmissions:           submissions,
		NumberOfWinningSubmissions: winners,
	}
}

func waitChange(t *testing.T, ch <-chan change) change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for status change")
		return change{}
	}
}

func assertNoChange(t *testing.T, ch <-chan change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected status change: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTrackReportsInitialStatus(t *testing.T) {
	w, _, changes := newTestWatcher(t)

	s := w.Track(descriptor("c-1", 2, 1))
	assert.Equal(t, status.NotOpenYet, s.Kind)
	assert.Equal(t, change{"c-1", status.NotOpenYet}, waitChange(t, changes))

	got, ok := w.Status("c-1")
	require.True(t, ok)
	assert.Equal(t, status.NotOpenYet, got.Kind)
}

func TestTimersFollowLifecycle(t *testing.T) {
	w, mock, changes := newTestWatcher(t)
	w.Track(descriptor("c-1", 2, 1))
	waitChange(t, changes)

	steps := []struct {
		advance time.Duration
		want    status.Kind
	}{
		{5 * time.Second, status.OpenForSubmissions},
		{10 * time.Second, status.Paused},
		{10 * time.Second, status.Voting},
		{10 * time.Second, status.Ended},
	}
	for _, step := range steps {
		mock.Add(step.advance)
		assert.Equal(t, change{"c-1", step.want}, waitChange(t, changes))
	}

	mock.Add(time.Hour)
	assertNoChange(t, changes)
}

func TestNoSubmissionsSkipsVoting(t *testing.T) {
	w, mock, changes := newTestWatcher(t)
	w.Track(descriptor("c-1", 0, 0))
	waitChange(t, changes)

	mock.Add(5 * time.Second)
	assert.Equal(t, status.OpenForSubmissions, waitChange(t, changes).kind)
	mock.Add(10 * time.Second)
	assert.Equal(t, status.EndingNoSubmissions, waitChange(t, changes).kind)

	// Nothing changes at VotingStartTime without submissions.
	mock.Add(10 * time.Second)
	assertNoChange(t, changes)

	mock.Add(10 * time.Second)
	assert.Equal(t, change{"c-1", status.EndedNoSubmissions}, waitChange(t, changes))
	got, _ := w.Status("c-1")
	assert.Equal(t, status.EndedNoSubmissions, got.Kind)

	mock.Add(time.Hour)
	assertNoChange(t, changes)
}

func TestReevaluateAt(t *testing.T) {
	d := descriptor("c-1", 0, 0)
	at, ok := reevaluateAt(status.Derive(t0.Add(15*time.Second), d), d)
	require.True(t, ok)
	assert.True(t, at.Equal(d.EndTime))
	_, countdown := status.NextBoundary(status.Derive(t0.Add(15*time.Second), d), d)
	assert.False(t, countdown)

	at, ok = reevaluateAt(status.Derive(t0, d), d)
	require.True(t, ok)
	assert.True(t, at.Equal(d.SuggestionsEndTime))

	_, ok = reevaluateAt(status.Derive(t0.Add(time.Minute), d), d)
	assert.False(t, ok)
}

func TestTrackReplacementCancelsStaleTimer(t *testing.T) {
	w, mock, changes := newTestWatcher(t)
	w.Track(descriptor("c-1", 2, 0))
	waitChange(t, changes)

	moved := descriptor("c-1", 2, 0)
	moved.StartTime = t0.Add(time.Minute)
	moved.SuggestionsEndTime = t0.Add(2 * time.Minute)
	moved.VotingStartTime = t0.Add(3 * time.Minute)
	moved.EndTime = t0.Add(4 * time.Minute)
	s := w.Track(moved)
	assert.Equal(t, status.NotOpenYet, s.Kind)
	assertNoChange(t, changes)

	mock.Add(5 * time.Second)
	assertNoChange(t, changes)

	mock.Add(time.Minute)
	assert.Equal(t, status.OpenForSubmissions, waitChange(t, changes).kind)
}

func TestTrackReportsKindChangeOnReplacement(t *testing.T) {
	w, mock, changes := newTestWatcher(t)
	w.Track(descriptor("c-1", 0, 0))
	waitChange(t, changes)
	mock.Add(5 * time.Second)
	waitChange(t, changes)
	mock.Add(10 * time.Second)
	assert.Equal(t, status.EndingNoSubmissions, waitChange(t, changes).kind)

	s := w.Track(descriptor("c-1", 4, 0))
	assert.Equal(t, status.Paused, s.Kind)
	assert.Equal(t, status.Paused, waitChange(t, changes).kind)

	mock.Add(5 * time.Second)
	assertNoChange(t, changes)
	mock.Add(5 * time.Second)
	assert.Equal(t, status.Voting, waitChange(t, changes).kind)
}

func TestUntrackAndStop(t *testing.T) {
	w, mock, changes := newTestWatcher(t)
	w.Track(descriptor("a", 1, 0))
	w.Track(descriptor("b", 1, 0))
	waitChange(t, changes)
	waitChange(t, changes)
	assert.Equal(t, 2, w.Len())

	assert.True(t, w.Untrack("a"))
	assert.False(t, w.Untrack("a"))
	_, ok := w.Status("a")
	assert.False(t, ok)

	w.Stop()
	mock.Add(time.Minute)
	assertNoChange(t, changes)
	got, _ := w.Status("b")
	assert.Equal(t, status.NotOpenYet, got.Kind)
}

func TestSnapshotIsSorted(t *testing.T) {
	w, _, changes := newTestWatcher(t)
	open := descriptor("open", 1, 0)
	open.StartTime = t0.Add(-time.Minute)
	w.Track(descriptor("upcoming", 1, 0))
	w.Track(open)
	waitChange(t, changes)
	waitChange(t, changes)

	snap := w.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "open", snap[0].Descriptor.ID)
	assert.Equal(t, "upcoming", snap[1].Descriptor.ID)
	require.NotNil(t, snap[0].Status)
	assert.Equal(t, status.OpenForSubmissions, snap[0].Status.Kind)
}
