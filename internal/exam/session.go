package exam

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/mocktest/internal/model"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateInProgress    State = "in_progress"
	StateSubmitting    State = "submitting"
	StateSubmitted     State = "submitted"
	StatePersistFailed State = "persist_failed"
	StateAbandoned     State = "abandoned"
	StateError         State = "error"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateAbandoned || s == StateError
}

// Sink is the write side of the result store.
type Sink interface {
	InsertAttempt(ctx context.Context, r model.Result) (int64, error)
}

// Options tune a Session. The zero value uses the wall clock and no
// persist timeout.
type Options struct {
	ID             string
	Clock          Clock
	PersistTimeout time.Duration
	// IdleTimeout is how long the Manager keeps an untimed or
	// persist_failed session that nobody touches. Zero keeps it forever.
	IdleTimeout time.Duration
	// OnTick receives the remaining seconds after every timer tick.
	OnTick func(remaining int)
	// OnClose runs once after the session reaches submitted or abandoned.
	OnClose func(*Session)
}

// Session is one timed attempt at a test by one user.
type Session struct {
	id        string
	principal model.Principal
	sink      Sink
	opts      Options
	clock     Clock
	startedAt time.Time

	closeOnce sync.Once

	mu        sync.Mutex
	state     State
	err       error
	test      model.Test
	subjectID string
	questions []model.Question
	ledger    *Ledger
	nav       *Navigator
	timer     *Timer
	result    *model.Result
	touched   time.Time
}

// Open loads testID from src and starts the attempt. If loading fails the
// returned session is in StateError for good and Err explains why.
// An empty subjectID defaults to the test's own subject.
func Open(ctx context.Context, principal model.Principal, src Source, sink Sink, testID, subjectID string, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	s := &Session{
		id:        opts.ID,
		principal: principal,
		sink:      sink,
		opts:      opts,
		clock:     clock,
		startedAt: clock.Now(),
		state:     StateInProgress,
		subjectID: subjectID,
	}
	s.touched = s.startedAt

	loaded, err := LoadTest(ctx, src, testID)
	if err != nil {
		slog.Warn("exam session failed to load", "session_id", s.id, "test_id", testID, "error", err)
		s.state = StateError
		s.err = err
		s.test = model.Test{ID: testID}
		return s
	}

	s.test = loaded.Test
	if s.subjectID == "" {
		s.subjectID = loaded.Test.SubjectID
	}
	if s.subjectID != loaded.Test.SubjectID {
		slog.Warn("exam session subject mismatch", "session_id", s.id, "test_id", testID,
			"subject_id", subjectID, "test_subject_id", loaded.Test.SubjectID)
		s.state = StateError
		s.err = ErrSubjectMismatch
		return s
	}
	s.questions = loaded.Questions
	counts := make([]int, len(s.questions))
	for i, q := range s.questions {
		counts[i] = len(q.Options)
	}
	s.ledger = NewLedger(counts)
	s.nav = NewNavigator(len(s.questions))
	if loaded.Test.DurationMinutes > 0 {
		s.mu.Lock()
		s.timer = StartTimer(clock, loaded.Test.DurationMinutes*60, opts.OnTick, s.expire)
		s.mu.Unlock()
	}

	slog.Info("exam session started",
		"session_id", s.id,
		"user_id", principal.UserID,
		"test_id", testID,
		"questions", len(s.questions),
		"duration_minutes", loaded.Test.DurationMinutes,
	)
	return s
}

func (s *Session) ID() string                 { return s.id }
func (s *Session) Principal() model.Principal { return s.principal }
func (s *Session) StartedAt() time.Time       { return s.startedAt }

// TestID returns the id of the test being taken.
func (s *Session) TestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.test.ID
}

// Timed reports whether a countdown runs for this session.
func (s *Session) Timed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// IdleSince returns the time of the last call made on behalf of the owner.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// touch must be called with mu held.
func (s *Session) touch() {
	s.touched = s.clock.Now()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the load error in StateError or the *PersistError in
// StatePersistFailed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result returns the scored result once submission has started.
func (s *Session) Result() (model.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return model.Result{}, false
	}
	return *s.result, true
}

// Questions returns the loaded questions, answer keys included.
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Remaining returns the seconds left, or -1 for an untimed test.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Session) remainingLocked() int {
	if s.timer == nil {
		return -1
	}
	if s.state != StateInProgress {
		return 0
	}
	return s.timer.Remaining()
}

// Snapshot is a consistent view of a session for rendering.
type Snapshot struct {
	ID        string
	State     State
	Test      model.Test
	SubjectID string
	Current   int
	Total     int
	Question  model.Question
	Answer    int
	Flagged   bool
	Remaining int
	Grid      []Status
	Result    *model.Result
	Err       error
}

// Snapshot captures the session under one lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	snap := Snapshot{
		ID:        s.id,
		State:     s.state,
		Test:      s.test,
		SubjectID: s.subjectID,
		Total:     len(s.questions),
		Answer:    Unset,
		Remaining: s.remainingLocked(),
		Err:       s.err,
	}
	if s.state == StateError {
		return snap
	}
	cur := s.nav.Current()
	snap.Current = cur
	snap.Question = s.questions[cur]
	snap.Answer = s.ledger.Answer(cur)
	snap.Flagged = s.ledger.Flagged(cur)
	snap.Grid = Grid(s.ledger)
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

// checkEditable must be called with mu held.
func (s *Session) checkEditable() error {
	s.touch()
	switch s.state {
	case StateInProgress:
		return nil
	case StateSubmitting:
		return ErrSubmissionInFlight
	default:
		return ErrSessionClosed
	}
}

// SetAnswer records option as the answer to question index.
func (s *Session) SetAnswer(index, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return err
	}
	return s.ledger.SetAnswer(index, option)
}

// ToggleFlag flips the review flag of question index.
func (s *Session) ToggleFlag(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return false, err
	}
	return s.ledger.ToggleFlag(index)
}

// Next moves to the following question and returns the current index.
func (s *Session) Next() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return 0, err
	}
	return s.nav.Next(), nil
}

// Previous moves to the preceding question and returns the current index.
func (s *Session) Previous() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return 0, err
	}
	return s.nav.Previous(), nil
}

// JumpTo moves to question index.
func (s *Session) JumpTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return err
	}
	return s.nav.JumpTo(index)
}

// Submit scores the attempt and persists the result. A second call while
// the first is still writing fails with ErrSubmissionInFlight. When the
// write fails the scored result is still returned together with a
// *PersistError and the session moves to StatePersistFailed.
func (s *Session) Submit(ctx context.Context) (model.Result, error) {
	return s.submit(ctx, model.ReasonSubmitted)
}

// Quit discards the attempt without scoring or persisting anything. It also
// drops a result whose write failed.
func (s *Session) Quit() error {
	s.mu.Lock()
	if s.state != StatePersistFailed {
		if err := s.checkEditable(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.state = StateAbandoned
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	slog.Info("exam session abandoned", "session_id", s.id, "user_id", s.principal.UserID, "test_id", s.test.ID)
	s.close()
	return nil
}

// RetryPersist writes the already scored result again after a failed
// submission. It never rescores.
func (s *Session) RetryPersist(ctx context.Context) (model.Result, error) {
	s.mu.Lock()
	s.touch()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return model.Result{}, ErrSubmissionInFlight
	}
	if s.state != StatePersistFailed || s.result == nil {
		s.mu.Unlock()
		return model.Result{}, ErrNothingToRetry
	}
	s.state = StateSubmitting
	res := *s.result
	s.mu.Unlock()
	return s.persist(ctx, res)
}

func (s *Session) expire() {
	ctx := context.Background()
	if _, err := s.submit(ctx, model.ReasonTimeout); err != nil && !errors.Is(err, ErrSessionClosed) {
		slog.Error("timed out exam submission failed", "session_id", s.id, "error", err)
	}
}

func (s *Session) submit(ctx context.Context, reason model.SubmitReason) (model.Result, error) {
	s.mu.Lock()
	if err := s.checkEditable(); err != nil {
		s.mu.Unlock()
		return model.Result{}, err
	}
	s.state = StateSubmitting
	if s.timer != nil {
		s.timer.Stop()
	}
	answers := s.ledger.Answers()
	score, total := Score(s.questions, answers)
	res := model.Result{
		UserID:    s.principal.UserID,
		TestID:    s.test.ID,
		SubjectID: s.subjectID,
		Score:     score,
		Total:     total,
		Answers:   answers,
		Reason:    reason,
		CreatedAt: s.clock.Now().UTC(),
	}
	s.result = &res
	s.mu.Unlock()

	return s.persist(ctx, res)
}

// persist runs with the session in StateSubmitting. The write outlives the
// caller: a client that disconnects after submitting must not abort it.
func (s *Session) persist(ctx context.Context, res model.Result) (model.Result, error) {
	ctx = context.WithoutCancel(ctx)
	if s.opts.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.PersistTimeout)
		defer cancel()
	}

	id, err := s.sink.InsertAttempt(ctx, res)

	s.mu.Lock()
	if err != nil {
		perr := &PersistError{Err: err}
		s.state = StatePersistFailed
		s.err = perr
		s.mu.Unlock()
		slog.Error("failed to persist exam result",
			"session_id", s.id, "user_id", res.UserID, "test_id", res.TestID, "error", err)
		return res, perr
	}
	res.ID = id
	s.result = &res
	s.state = StateSubmitted
	s.err = nil
	s.mu.Unlock()

	slog.Info("exam submitted",
		"session_id", s.id,
		"attempt_id", id,
		"user_id", res.UserID,
		"test_id", res.TestID,
		"score", res.Score,
		"total", res.Total,
		"reason", res.Reason,
	)
	s.close()
	return res, nil
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		if s.opts.OnClose != nil {
			s.opts.OnClose(s)
		}
	})
}
