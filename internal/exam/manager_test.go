package exam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/mocktest/internal/model"
)

func TestManagerLifecycle(t *testing.T) {
	sink := &fakeSink{}
	m := NewManager(newSource("t1", 0, 0, 1), sink, Options{})
	ctx := context.Background()

	s, err := m.Start(ctx, student, "t1", "")
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID(), student)
	require.NoError(t, err)
	assert.Same(t, s, got)

	other := model.Principal{UserID: 99, Role: model.UserRoleStudent}
	_, err = m.Get(s.ID(), other)
	assert.ErrorIs(t, err, ErrSessionForbidden)
	_, err = m.Get("nope", student)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	theirs, err := m.Start(ctx, other, "t1", "")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID(), theirs.ID())
	assert.Len(t, m.ListFor(student), 1)
	assert.Len(t, m.ListFor(other), 1)

	_, err = s.Submit(ctx)
	require.NoError(t, err)
	require.NoError(t, theirs.Quit())
	assert.Equal(t, 0, m.Len(), "closed sessions leave the registry")
	assert.Len(t, sink.saved(), 1)

	again, err := m.Start(ctx, student, "t1", "")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID(), again.ID(), "a finished attempt is not resumed")
}

func TestManagerResumesLiveSession(t *testing.T) {
	src := newSource("t1", 0, 0, 1)
	src.tests["t2"] = model.Test{ID: "t2", SubjectID: "psych", Name: "Other"}
	src.questions["t2"] = src.questions["t1"]
	m := NewManager(src, &fakeSink{}, Options{})
	ctx := context.Background()

	first, err := m.Start(ctx, student, "t1", "")
	require.NoError(t, err)
	require.NoError(t, first.SetAnswer(0, 2))

	for i := 0; i < 500; i++ {
		s, err := m.Start(ctx, student, "t1", "")
		require.NoError(t, err)
		require.Same(t, first, s)
	}
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, first.Snapshot().Answer, "resumed session keeps its answers")

	resumed, ok := m.Resume(student, "t1")
	assert.True(t, ok)
	assert.Same(t, first, resumed)
	_, ok = m.Resume(student, "t2")
	assert.False(t, ok)

	other, err := m.Start(ctx, student, "t2", "")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, m.Len())
}

func TestManagerSweepsIdleSessions(t *testing.T) {
	clock := newFakeClock()
	src := newSource("untimed", 0, 0, 1)
	src.tests["timed"] = model.Test{ID: "timed", SubjectID: "psych", Name: "Timed", DurationMinutes: 600}
	src.questions["timed"] = src.questions["untimed"]
	sink := &fakeSink{}
	m := NewManager(src, sink, Options{Clock: clock, IdleTimeout: time.Hour})
	ctx := context.Background()

	untimed, err := m.Start(ctx, student, "untimed", "")
	require.NoError(t, err)
	timed, err := m.Start(ctx, student, "timed", "")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 0, m.Sweep(), "nothing is idle yet")

	clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, StateAbandoned, untimed.State())
	assert.Equal(t, StateInProgress, timed.State(), "timed sessions run out on their own")
	assert.Equal(t, 1, m.Len())
	assert.Empty(t, sink.saved())
}

func TestManagerSweepSavesFailedResult(t *testing.T) {
	clock := newFakeClock()
	sink := &fakeSink{err: errors.New("down")}
	m := NewManager(newSource("t1", 0, 0), sink, Options{Clock: clock, IdleTimeout: time.Hour})

	s, err := m.Start(context.Background(), student, "t1", "")
	require.NoError(t, err)
	require.NoError(t, s.SetAnswer(0, 0))
	_, err = s.Submit(context.Background())
	require.Error(t, err)

	sink.setErr(nil)
	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, StateSubmitted, s.State())
	require.Len(t, sink.saved(), 1)
	assert.Equal(t, 1, sink.saved()[0].Score)
	assert.Equal(t, 0, m.Len())
}

func TestManagerSweepDisabled(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(newSource("t1", 0, 0), &fakeSink{}, Options{Clock: clock})
	_, err := m.Start(context.Background(), student, "t1", "")
	require.NoError(t, err)
	clock.Advance(100 * time.Hour)
	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestManagerStartFailure(t *testing.T) {
	m := NewManager(newSource("t1", 0), &fakeSink{}, Options{})
	s, err := m.Start(context.Background(), student, "t1", "")
	assert.ErrorIs(t, err, ErrNoQuestions)
	require.NotNil(t, s)
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, 0, m.Len())
}

func TestManagerKeepsPersistFailedSessions(t *testing.T) {
	sink := &fakeSink{err: errors.New("down")}
	m := NewManager(newSource("t1", 0, 0), sink, Options{})
	s, err := m.Start(context.Background(), student, "t1", "")
	require.NoError(t, err)

	_, err = s.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, m.Len(), "failed writes stay retryable")

	sink.setErr(nil)
	_, err = s.RetryPersist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestManagerShutdown(t *testing.T) {
	closed := 0
	sink := &fakeSink{}
	m := NewManager(newSource("t1", 0, 0), sink, Options{OnClose: func(*Session) { closed++ }})
	for i := 0; i < 3; i++ {
		p := model.Principal{UserID: int64(i + 1), Role: model.UserRoleStudent}
		_, err := m.Start(context.Background(), p, "t1", "")
		require.NoError(t, err)
	}
	m.Shutdown()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 3, closed)
	assert.Empty(t, sink.saved())
}

func TestManagerShutdownSavesFailedResult(t *testing.T) {
	sink := &fakeSink{err: errors.New("down")}
	m := NewManager(newSource("t1", 0, 0, 1), sink, Options{})
	s, err := m.Start(context.Background(), student, "t1", "")
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	require.Error(t, err)

	sink.setErr(nil)
	m.Shutdown()
	assert.Equal(t, StateSubmitted, s.State())
	assert.Len(t, sink.saved(), 1)

	// A write that still fails is dropped so shutdown can finish.
	failing := &fakeSink{err: errors.New("down")}
	m = NewManager(newSource("t1", 0, 0), failing, Options{})
	s, err = m.Start(context.Background(), student, "t1", "")
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	require.Error(t, err)
	m.Shutdown()
	assert.Equal(t, StateAbandoned, s.State())
	assert.Equal(t, 0, m.Len())
}
