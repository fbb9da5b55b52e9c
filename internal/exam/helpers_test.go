package exam

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/store"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward and delivers one tick to every live ticker.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()
	for _, t := range tickers {
		select {
		case t.ch <- now:
		default:
		}
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeSource struct {
	tests     map[string]model.Test
	questions map[string][]model.QuestionRecord
	err       error
}

func (f *fakeSource) GetTest(_ context.Context, id string) (model.Test, error) {
	if f.err != nil {
		return model.Test{}, f.err
	}
	t, ok := f.tests[id]
	if !ok {
		return model.Test{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeSource) ListQuestionRecords(_ context.Context, testID string) ([]model.QuestionRecord, error) {
	return f.questions[testID], nil
}

// newSource builds a source with one test whose questions have the given
// correct options and three choices each.
func newSource(testID string, minutes int, correct ...int) *fakeSource {
	src := &fakeSource{
		tests:     map[string]model.Test{testID: {ID: testID, SubjectID: "psych", Name: "Mock", DurationMinutes: minutes}},
		questions: map[string][]model.QuestionRecord{},
	}
	opts, _ := json.Marshal([]string{"a", "b", "c"})
	for i, c := range correct {
		src.questions[testID] = append(src.questions[testID], model.QuestionRecord{
			ID: int64(i + 1), TestID: testID, Prompt: "prompt", Options: string(opts), CorrectOption: c,
		})
	}
	return src
}

type fakeSink struct {
	mu      sync.Mutex
	results []model.Result
	err     error
	// block, when set, holds InsertAttempt until closed.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSink) InsertAttempt(_ context.Context, r model.Result) (int64, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.results = append(f.results, r)
	return int64(len(f.results)), nil
}

func (f *fakeSink) saved() []model.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Result(nil), f.results...)
}

func (f *fakeSink) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

var student = model.Principal{UserID: 7, DisplayName: "Asha", Role: model.UserRoleStudent}
