package grades

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotLoaded      = errors.New("grade board not loaded")
	ErrClosed         = errors.New("grade board disposed")
	ErrSuperseded     = errors.New("commit superseded by newer edits or a reload")
	errGradeRange     = errors.New("grade must be a number between 0 and 100")
	errUnknownStudent = errors.New("student not on this grade board")
)

type (
	// Store is the RecordStore surface the autosave engine depends on.
	Store interface {
		// LoadBoard returns the section roster with grades plus the current
		// version token.
		LoadBoard(ctx context.Context, sectionSN int) ([]BoardRow, string, error)
		CommitGrades(ctx context.Context, sectionSN int, grades []GradeEntry) (int, error)
		CheckVersion(ctx context.Context, sectionSN int) (string, error)
		ImportGrades(ctx context.Context, sectionSN int, records []ImportRecord) (ImportStats, error)
	}

	// Engine tracks per-student grades for one class section, debounces
	// commits of the changed subset and yields to concurrent remote edits
	// detected through version polling.
	Engine struct {
		store  Store
		logger core.Logger
		sched  core.Scheduler

		sectionSN     int
		debounceDelay time.Duration
		pollInterval  time.Duration

		// onStale is called after a forced reload with the number of
		// uncommitted edits that were discarded.
		onStale func(discarded int)
		// onCommit is called with the outcome of every debounce-fired commit.
		onCommit func(updated int, err error)

		mu       sync.Mutex
		order    []int
		rows     map[int]BoardRow
		baseline map[int]null.Float64
		version  string
		state    State
		debounce core.Timer
		loaded   bool
		closed   bool
		seq      uint64 // bumped on every mutation/reload; guards stale responses

		pollCancel context.CancelFunc
		pollDone   chan struct{}
	}

	Option func(*Engine)
)

func WithLogger(logger core.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithScheduler(sched core.Scheduler) Option {
	return func(e *Engine) { e.sched = sched }
}

func WithDebounceDelay(d time.Duration) Option {
	return func(e *Engine) { e.debounceDelay = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

func WithOnStale(fn func(discarded int)) Option {
	return func(e *Engine) { e.onStale = fn }
}

func WithOnCommit(fn func(updated int, err error)) Option {
	return func(e *Engine) { e.onCommit = fn }
}

func NewEngine(store Store, sectionSN int, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		logger:        core.NopLogger{},
		sched:         core.StdScheduler,
		sectionSN:     sectionSN,
		debounceDelay: core.Conf.GetDuration("grades.debounceDelay"),
		pollInterval:  core.Conf.GetDuration("grades.pollInterval"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load fetches the board and its version token; rows and baseline start equal.
func (e *Engine) Load(ctx context.Context) error {
	rows, version, err := e.store.LoadBoard(ctx, e.sectionSN)
	if err != nil {
		return pkgerrors.Wrap(err, "loading grade board")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.applyBoardLocked(rows, version)
	e.loaded = true
	return nil
}

// applyBoardLocked replaces rows, baseline and version with server truth.
func (e *Engine) applyBoardLocked(rows []BoardRow, version string) {
	e.stopDebounceLocked()
	e.order = e.order[:0]
	e.rows = make(map[int]BoardRow, len(rows))
	e.baseline = make(map[int]null.Float64, len(rows))
	for _, row := range rows {
		row.Grade = roundGrade(row.Grade)
		e.order = append(e.order, row.StudentSN)
		e.rows[row.StudentSN] = row
		e.baseline[row.StudentSN] = row.Grade
	}
	e.version = version
	e.state = StateClean
	e.seq++
}

// SetGrade validates and records a grade edit, then (re)arms the debounce
// timer; each edit during the window restarts the full delay. A nil value
// clears the entry.
func (e *Engine) SetGrade(studentSN int, value null.Float64) error {
	if value.Valid {
		if math.IsNaN(value.Float64) || math.IsInf(value.Float64, 0) ||
			value.Float64 < 0 || value.Float64 > 100 {
			return core.NewValidationError(errGradeRange,
				core.FieldError{Field: "grade", Error: errGradeRange.Error()})
		}
		value = roundGrade(value)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if !e.loaded {
		return ErrNotLoaded
	}
	row, ok := e.rows[studentSN]
	if !ok {
		return core.NewValidationError(errUnknownStudent,
			core.FieldError{Field: "stu_sn", Error: fmt.Sprintf("%s (sn=%d)", errUnknownStudent, studentSN)})
	}
	row.Grade = value
	e.rows[studentSN] = row
	e.seq++

	if e.dirtyLocked() {
		e.armDebounceLocked()
	} else {
		// edits reverted to the committed values; nothing to save.
		e.stopDebounceLocked()
		if e.state != StateCommitting {
			e.state = StateClean
		}
	}
	return nil
}

func (e *Engine) armDebounceLocked() {
	e.stopDebounceLocked()
	e.state = StatePendingCommit
	e.debounce = e.sched.AfterFunc(e.debounceDelay, e.debounceFire)
}

func (e *Engine) stopDebounceLocked() {
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// debounceFire runs when the quiet period elapsed; commit errors are surfaced
// through onCommit and not retried automatically.
func (e *Engine) debounceFire() {
	ctx, cancel := context.WithTimeout(context.Background(), core.Conf.GetDuration("recordstore.timeout"))
	defer cancel()

	updated, err := e.commit(ctx)
	if err == ErrSuperseded || err == ErrClosed {
		return
	}
	if err != nil {
		e.logger.Error("autosave commit failed", err)
	}
	if e.onCommit != nil {
		e.onCommit(updated, err)
	}
}

// Save commits immediately; it cancels any pending debounce first so the two
// paths never race each other.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	e.stopDebounceLocked()
	e.mu.Unlock()
	_, err := e.commit(ctx)
	return err
}

// commit submits exactly the changed subset. A response arriving after newer
// edits or a reload is discarded (ErrSuperseded) instead of being applied to
// state it no longer matches.
func (e *Engine) commit(ctx context.Context) (int, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, ErrClosed
	}
	if !e.loaded {
		e.mu.Unlock()
		return 0, ErrNotLoaded
	}
	changed := e.changedLocked()
	if len(changed) == 0 {
		if e.state != StateStale {
			e.state = StateClean
		}
		e.mu.Unlock()
		return 0, nil
	}
	seq := e.seq
	e.state = StateCommitting
	e.mu.Unlock()

	updated, err := e.store.CommitGrades(ctx, e.sectionSN, changed)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	if seq != e.seq {
		// newer edits or a forced reload superseded this commit; its response
		// must not touch the board.
		return 0, ErrSuperseded
	}
	if err != nil {
		e.state = StateDirty
		return 0, pkgerrors.Wrap(err, "committing grades")
	}
	for _, entry := range changed {
		e.baseline[entry.StudentSN] = entry.Grade
	}
	if e.dirtyLocked() {
		e.state = StateDirty
	} else {
		e.state = StateClean
	}
	e.seq++

	// our own write moved the server version; rebase the token so the next
	// poll does not force a spurious reload. Best effort: on failure the poll
	// reloads, which is safe.
	go e.rebaseVersion()
	return updated, nil
}

func (e *Engine) rebaseVersion() {
	ctx, cancel := context.WithTimeout(context.Background(), core.Conf.GetDuration("recordstore.timeout"))
	defer cancel()
	version, err := e.store.CheckVersion(ctx, e.sectionSN)
	if err != nil {
		e.logger.Warn("version rebase after commit failed", err)
		return
	}
	e.mu.Lock()
	if !e.closed {
		e.version = version
	}
	e.mu.Unlock()
}

// StartPolling launches the background version poll; it stops when ctx is
// cancelled or the engine is closed.
func (e *Engine) StartPolling(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.pollCancel = cancel
	e.pollDone = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.PollVersion(ctx); err != nil && err != ErrClosed {
					e.logger.Warn("version poll failed", err)
				}
			}
		}
	}(e.pollDone)
}

// PollVersion fetches the current version token and forces a reload when it
// differs from ours. The reload is authoritative: any in-flight commit's
// response will be discarded and uncommitted edits are lost (reported via
// the onStale callback).
func (e *Engine) PollVersion(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.loaded {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	current := e.version
	e.mu.Unlock()

	version, err := e.store.CheckVersion(ctx, e.sectionSN)
	if err != nil {
		return pkgerrors.Wrap(err, "checking grade board version")
	}
	if version == current {
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.version != current {
		// someone else already rebased or reloaded meanwhile.
		e.mu.Unlock()
		return nil
	}
	e.state = StateStale
	e.stopDebounceLocked()
	discarded := len(e.changedLocked())
	e.seq++ // in-flight commit responses are now stale
	e.mu.Unlock()

	if err := e.Reload(ctx); err != nil {
		return err
	}
	if e.onStale != nil {
		e.onStale(discarded)
	}
	return nil
}

// Reload unconditionally replaces the board with server truth, discarding any
// uncommitted edits.
func (e *Engine) Reload(ctx context.Context) error {
	rows, version, err := e.store.LoadBoard(ctx, e.sectionSN)
	if err != nil {
		return pkgerrors.Wrap(err, "reloading grade board")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.applyBoardLocked(rows, version)
	return nil
}

// Close cancels all pending timers and the poll task; late-arriving responses
// never mutate a disposed engine.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.stopDebounceLocked()
	cancel := e.pollCancel
	done := e.pollDone
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// State returns the current board state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Version returns the last seen server version token.
func (e *Engine) Version() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Rows returns the board rows in server order with current (pending) values.
func (e *Engine) Rows() []BoardRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]BoardRow, 0, len(e.order))
	for _, sn := range e.order {
		out = append(out, e.rows[sn])
	}
	return out
}

// Grade returns the current (pending) grade of a student.
func (e *Engine) Grade(studentSN int) (null.Float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row, ok := e.rows[studentSN]
	return row.Grade, ok
}

// Dirty reports whether any row differs from the committed baseline.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirtyLocked()
}

func (e *Engine) dirtyLocked() bool {
	for sn, row := range e.rows {
		if !gradeEqual(row.Grade, e.baseline[sn]) {
			return true
		}
	}
	return false
}

// changedLocked returns the rows differing from baseline, in board order.
func (e *Engine) changedLocked() []GradeEntry {
	var changed []GradeEntry
	for _, sn := range e.order {
		row := e.rows[sn]
		if !gradeEqual(row.Grade, e.baseline[sn]) {
			changed = append(changed, GradeEntry{
				StudentSN: sn,
				SectionSN: e.sectionSN,
				Grade:     row.Grade,
			})
		}
	}
	return changed
}

func gradeEqual(a, b null.Float64) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Float64 == b.Float64
}

// roundGrade keeps one decimal of precision.
func roundGrade(v null.Float64) null.Float64 {
	if !v.Valid {
		return v
	}
	return null.Float64From(math.Round(v.Float64*10) / 10)
}
