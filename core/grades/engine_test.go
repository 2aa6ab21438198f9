package grades

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

type fakeStore struct {
	mu sync.Mutex

	rows    []BoardRow
	version string

	commitErr  error
	commitFunc func(entries []GradeEntry) // runs while the commit is "in flight"

	committed   [][]GradeEntry
	loads       int
	importStats ImportStats
	importErr   error
	imported    []ImportRecord
}

var _ Store = (*fakeStore)(nil)

func (s *fakeStore) LoadBoard(context.Context, int) ([]BoardRow, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return append([]BoardRow(nil), s.rows...), s.version, nil
}

func (s *fakeStore) CommitGrades(_ context.Context, _ int, entries []GradeEntry) (int, error) {
	if s.commitFunc != nil {
		s.commitFunc(entries)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return 0, s.commitErr
	}
	s.committed = append(s.committed, entries)
	return len(entries), nil
}

func (s *fakeStore) CheckVersion(context.Context, int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

func (s *fakeStore) ImportGrades(_ context.Context, _ int, records []ImportRecord) (ImportStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.importErr != nil {
		return ImportStats{}, s.importErr
	}
	s.imported = records
	return s.importStats, nil
}

func (s *fakeStore) setVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

func (s *fakeStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

// fakeScheduler hands out timers that only fire when the test says so.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	fn      func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, fn func()) core.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	tm := &fakeTimer{fn: fn}
	s.timers = append(s.timers, tm)
	return tm
}

func (tm *fakeTimer) Stop() bool {
	tm.stopped = true
	return !tm.fired
}

// fireLast runs the most recently armed timer unless it was stopped.
func (s *fakeScheduler) fireLast() bool {
	s.mu.Lock()
	if len(s.timers) == 0 {
		s.mu.Unlock()
		return false
	}
	tm := s.timers[len(s.timers)-1]
	s.mu.Unlock()
	if tm.stopped {
		return false
	}
	tm.fired = true
	tm.fn()
	return true
}

func (s *fakeScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tm := range s.timers {
		if !tm.stopped && !tm.fired {
			n++
		}
	}
	return n
}

func boardRows() []BoardRow {
	return []BoardRow{
		{StudentSN: 1, StudentNo: "1001", StudentName: "Amina Kazadi", Grade: null.Float64From(85)},
		{StudentSN: 2, StudentNo: "1002", StudentName: "Jean Ilunga"},
		{StudentSN: 3, StudentNo: "1003", StudentName: "Grace Mwamba", Grade: null.Float64From(60.5)},
	}
}

func loadedEngine(t *testing.T, store *fakeStore, opts ...Option) (*Engine, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	opts = append([]Option{WithScheduler(sched)}, opts...)
	eng := NewEngine(store, 1, opts...)
	t.Cleanup(eng.Close)
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return eng, sched
}

func TestEngine_Load(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, _ := loadedEngine(t, store)

	if got := eng.State(); got != StateClean {
		t.Errorf("State() = %s, want %s", got, StateClean)
	}
	if got := eng.Version(); got != "v1" {
		t.Errorf("Version() = %s, want v1", got)
	}
	rows := eng.Rows()
	if len(rows) != 3 {
		t.Fatalf("Rows() len = %d, want 3", len(rows))
	}
	if rows[1].Grade.Valid {
		t.Error("ungraded student came back with a grade")
	}
	if eng.Dirty() {
		t.Error("Dirty() = true after load, want false")
	}
}

func TestEngine_SetGrade_validation(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, _ := loadedEngine(t, store)

	tests := []struct {
		name    string
		sn      int
		value   null.Float64
		wantErr bool
	}{
		{name: "negative", sn: 1, value: null.Float64From(-1), wantErr: true},
		{name: "above 100", sn: 1, value: null.Float64From(100.1), wantErr: true},
		{name: "unknown student", sn: 99, value: null.Float64From(50), wantErr: true},
		{name: "zero is valid", sn: 1, value: null.Float64From(0)},
		{name: "hundred is valid", sn: 1, value: null.Float64From(100)},
		{name: "null clears", sn: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.SetGrade(tt.sn, tt.value)
			if tt.wantErr {
				var vErr *core.ValidationError
				if !errors.As(err, &vErr) {
					t.Errorf("SetGrade() error = %v, want ValidationError", err)
				}
			} else if err != nil {
				t.Errorf("SetGrade() failed: %v", err)
			}
		})
	}
}

func TestEngine_SetGrade_rounding(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, _ := loadedEngine(t, store)

	if err := eng.SetGrade(1, null.Float64From(87.5678)); err != nil {
		t.Fatalf("SetGrade() failed: %v", err)
	}
	got, ok := eng.Grade(1)
	if !ok || !got.Valid || got.Float64 != 87.6 {
		t.Errorf("Grade(1) = %v, want 87.6", got)
	}
}

func TestEngine_SetGrade_debounceRestartsPerEdit(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, sched := loadedEngine(t, store)

	_ = eng.SetGrade(1, null.Float64From(90))
	_ = eng.SetGrade(2, null.Float64From(70))
	_ = eng.SetGrade(1, null.Float64From(91))

	// each edit re-armed the timer; only one remains live
	if got := sched.armed(); got != 1 {
		t.Fatalf("armed timers = %d, want 1", got)
	}
	if got := eng.State(); got != StatePendingCommit {
		t.Errorf("State() = %s, want %s", got, StatePendingCommit)
	}

	sched.fireLast()
	if got := store.commitCount(); got != 1 {
		t.Fatalf("commits = %d, want 1", got)
	}
	// only the changed subset travels
	entries := store.committed[0]
	if len(entries) != 2 {
		t.Fatalf("committed entries = %d, want 2", len(entries))
	}
	if entries[0].StudentSN != 1 || entries[0].Grade.Float64 != 91 {
		t.Errorf("entry 0 = %+v, want sn=1 grade=91", entries[0])
	}
	if got := eng.State(); got != StateClean {
		t.Errorf("State() = %s, want %s", got, StateClean)
	}
	if eng.Dirty() {
		t.Error("Dirty() = true after commit, want false")
	}
}

func TestEngine_SetGrade_revertGoesClean(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, sched := loadedEngine(t, store)

	_ = eng.SetGrade(1, null.Float64From(90))
	_ = eng.SetGrade(1, null.Float64From(85)) // back to committed value

	if got := eng.State(); got != StateClean {
		t.Errorf("State() = %s, want %s", got, StateClean)
	}
	if sched.fireLast() {
		t.Error("debounce timer still live after revert")
	}
	if got := store.commitCount(); got != 0 {
		t.Errorf("commits = %d, want 0", got)
	}
}

func TestEngine_Save_cancelsDebounce(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, sched := loadedEngine(t, store)

	_ = eng.SetGrade(1, null.Float64From(90))
	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if got := store.commitCount(); got != 1 {
		t.Fatalf("commits = %d, want 1", got)
	}
	if sched.fireLast() {
		t.Error("debounce fired after explicit Save")
	}
	if got := store.commitCount(); got != 1 {
		t.Errorf("commits = %d after firing, want 1", got)
	}
}

func TestEngine_commitFailureKeepsEdits(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1", commitErr: errors.New("connection refused")}
	var gotUpdated int
	var gotErr error
	eng, sched := loadedEngine(t, store, WithOnCommit(func(updated int, err error) {
		gotUpdated, gotErr = updated, err
	}))

	_ = eng.SetGrade(1, null.Float64From(90))
	sched.fireLast()

	if gotErr == nil {
		t.Fatal("onCommit error = nil, want commit failure")
	}
	if gotUpdated != 0 {
		t.Errorf("onCommit updated = %d, want 0", gotUpdated)
	}
	if got := eng.State(); got != StateDirty {
		t.Errorf("State() = %s, want %s", got, StateDirty)
	}
	// the edit survives for a retry
	if g, _ := eng.Grade(1); g.Float64 != 90 {
		t.Errorf("Grade(1) = %v, want 90", g)
	}

	// an explicit retry succeeds once the network is back
	store.mu.Lock()
	store.commitErr = nil
	store.mu.Unlock()
	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("Save() retry failed: %v", err)
	}
	if got := eng.State(); got != StateClean {
		t.Errorf("State() = %s, want %s", got, StateClean)
	}
}

func TestEngine_commitSuperseded(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, _ := loadedEngine(t, store)

	_ = eng.SetGrade(1, null.Float64From(90))
	store.commitFunc = func([]GradeEntry) {
		// an edit lands while the commit is in flight
		_ = eng.SetGrade(2, null.Float64From(70))
	}
	if err := eng.Save(context.Background()); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Save() error = %v, want %v", err, ErrSuperseded)
	}
	// the in-flight edit survives and the board stays dirty
	if !eng.Dirty() {
		t.Error("Dirty() = false, want true")
	}
	if g, _ := eng.Grade(2); g.Float64 != 70 {
		t.Errorf("Grade(2) = %v, want 70", g)
	}
}

func TestEngine_PollVersion(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	var discarded int
	eng, _ := loadedEngine(t, store, WithOnStale(func(n int) { discarded = n }))

	// same version: nothing happens
	if err := eng.PollVersion(context.Background()); err != nil {
		t.Fatalf("PollVersion() failed: %v", err)
	}
	if got := store.loads; got != 1 {
		t.Errorf("loads = %d, want 1", got)
	}

	// a remote edit bumps the version; local uncommitted edits are discarded
	_ = eng.SetGrade(1, null.Float64From(90))
	_ = eng.SetGrade(2, null.Float64From(70))
	store.mu.Lock()
	store.version = "v2"
	store.rows[0].Grade = null.Float64From(99)
	store.mu.Unlock()

	if err := eng.PollVersion(context.Background()); err != nil {
		t.Fatalf("PollVersion() failed: %v", err)
	}
	if discarded != 2 {
		t.Errorf("onStale discarded = %d, want 2", discarded)
	}
	if got := eng.Version(); got != "v2" {
		t.Errorf("Version() = %s, want v2", got)
	}
	if got := eng.State(); got != StateClean {
		t.Errorf("State() = %s, want %s", got, StateClean)
	}
	if g, _ := eng.Grade(1); g.Float64 != 99 {
		t.Errorf("Grade(1) = %v, want server value 99", g)
	}
	if eng.Dirty() {
		t.Error("Dirty() = true after forced reload, want false")
	}
}

func TestEngine_PollVersion_beatsInFlightCommit(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, _ := loadedEngine(t, store)

	_ = eng.SetGrade(1, null.Float64From(90))
	store.commitFunc = func([]GradeEntry) {
		// a remote edit is detected while our commit is in flight
		store.setVersion("v2")
		if err := eng.PollVersion(context.Background()); err != nil {
			t.Errorf("PollVersion() failed: %v", err)
		}
	}
	if err := eng.Save(context.Background()); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Save() error = %v, want %v", err, ErrSuperseded)
	}
	// the reload won: server truth everywhere
	if got := eng.Version(); got != "v2" {
		t.Errorf("Version() = %s, want v2", got)
	}
	if eng.Dirty() {
		t.Error("Dirty() = true, want false after forced reload")
	}
}

func TestEngine_Close(t *testing.T) {
	store := &fakeStore{rows: boardRows(), version: "v1"}
	eng, sched := loadedEngine(t, store)
	eng.StartPolling(context.Background())

	_ = eng.SetGrade(1, null.Float64From(90))
	eng.Close()

	if sched.fireLast() {
		t.Error("debounce timer still live after Close")
	}
	if err := eng.SetGrade(1, null.Float64From(50)); !errors.Is(err, ErrClosed) {
		t.Errorf("SetGrade() error = %v, want %v", err, ErrClosed)
	}
	if err := eng.PollVersion(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("PollVersion() error = %v, want %v", err, ErrClosed)
	}
	eng.Close() // idempotent
}
