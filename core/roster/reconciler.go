package roster

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/registry"
)

var (
	// errors
	ErrNotLoaded      = errors.New("roster not loaded")
	ErrUnknownStudent = errors.New("student not in pool")
	ErrNoChanges      = errors.New("no roster changes to submit")
	ErrSuperseded     = errors.New("submission superseded by newer edits")
)

type (
	// Store is the RecordStore surface the reconciler depends on.
	Store interface {
		ListStudents(ctx context.Context, page, pageSize int) ([]registry.Student, int, error)
		ListSectionStudents(ctx context.Context, sectionSN int) ([]registry.Student, error)
		// CheckSectionConflicts returns, among the given students, those
		// currently linked to another section of this section's course.
		CheckSectionConflicts(ctx context.Context, sectionSN int, studentSNs []int) ([]core.ConflictingStudent, error)
		// ReplaceSectionStudents submits the full desired roster; the server
		// computes the diff and is the arbiter of conflicts.
		ReplaceSectionStudents(ctx context.Context, sectionSN int, studentSNs []int) (ReplaceResult, error)
	}

	// ReplaceResult is the server's answer to a roster replacement.
	ReplaceResult struct {
		Added      []int                     `json:"added"`
		Removed    []int                     `json:"removed"`
		TotalCount int                       `json:"total_count"`
		Students   []registry.Student        `json:"students"`
		Conflicts  []core.ConflictingStudent `json:"conflicts"`
	}

	// Reconciler converges a class section's roster to a desired student set
	// while never letting a student join two sections of the same course.
	//
	// All exported methods are safe for concurrent use; network calls run
	// outside the lock and their responses are discarded when local state has
	// moved on since the request was issued.
	Reconciler struct {
		store  Store
		logger core.Logger

		sectionSN int
		pageSize  int

		mu             sync.Mutex
		pool           []registry.Student
		poolIdx        map[int]registry.Student
		baseline       registry.StudentSet
		selected       registry.StudentSet
		conflicts      map[int]core.ConflictingStudent
		conflictsFresh bool
		loaded         bool
		seq            uint64 // bumped on every selection mutation; guards stale responses
	}

	Option func(*Reconciler)
)

func WithLogger(logger core.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

func WithPageSize(size int) Option {
	return func(r *Reconciler) { r.pageSize = size }
}

func NewReconciler(store Store, sectionSN int, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     store,
		logger:    core.NopLogger{},
		sectionSN: sectionSN,
		pageSize:  core.Conf.GetInt("roster.pageSize"),
		conflicts: make(map[int]core.ConflictingStudent),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load fetches the candidate pool (paged) and the section's current roster,
// then seeds baseline = selected = linked students. Conflict data is only
// evaluated once both fetches succeeded; a failed load leaves the reconciler
// unusable rather than pretending there are no conflicts.
func (r *Reconciler) Load(ctx context.Context) error {
	pool, err := r.loadPool(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "loading student pool")
	}
	linked, err := r.store.ListSectionStudents(ctx, r.sectionSN)
	if err != nil {
		return pkgerrors.Wrap(err, "loading section roster")
	}

	r.mu.Lock()
	r.pool = pool
	r.poolIdx = make(map[int]registry.Student, len(pool))
	for _, stu := range pool {
		r.poolIdx[stu.SN] = stu
	}
	r.baseline = make(registry.StudentSet, len(linked))
	r.selected = make(registry.StudentSet, len(linked))
	for _, stu := range linked {
		r.baseline.Add(stu.SN)
		r.selected.Add(stu.SN)
	}
	r.conflicts = make(map[int]core.ConflictingStudent)
	r.conflictsFresh = false
	r.loaded = true
	r.seq++
	r.mu.Unlock()

	// conflict linkage is shared mutable state across operators; fetch it
	// from the server rather than deriving it from possibly-stale local data.
	if err := r.RefreshConflicts(ctx); err != nil {
		// non-fatal: selection stays usable, submission will warn.
		r.logger.Warn("conflict check failed; proceeding without known conflicts", err)
	}
	return nil
}

func (r *Reconciler) loadPool(ctx context.Context) ([]registry.Student, error) {
	var (
		pool []registry.Student
		seen = make(registry.StudentSet)
	)
	for page := 1; ; page++ {
		students, total, err := r.store.ListStudents(ctx, page, r.pageSize)
		if err != nil {
			return nil, err
		}
		for _, stu := range students {
			if seen.Has(stu.SN) { // pages may shift under concurrent edits
				continue
			}
			seen.Add(stu.SN)
			pool = append(pool, stu)
		}
		if len(students) < r.pageSize || len(pool) >= total {
			return pool, nil
		}
	}
}

// Toggle flips the pending membership of a student. Toggling a conflicting
// student is a precondition violation and leaves state unchanged.
func (r *Reconciler) Toggle(studentSN int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return ErrNotLoaded
	}
	if _, ok := r.poolIdx[studentSN]; !ok {
		return ErrUnknownStudent
	}
	if c, ok := r.conflicts[studentSN]; ok {
		return core.NewConflictError(c)
	}
	if r.selected.Has(studentSN) {
		r.selected.Remove(studentSN)
	} else {
		r.selected.Add(studentSN)
	}
	r.seq++
	return nil
}

// BatchSet sets membership for every given student; conflicting students are
// skipped silently (batch operations never mutate their membership).
func (r *Reconciler) BatchSet(studentSNs []int, include bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return ErrNotLoaded
	}
	var changed bool
	for _, sn := range studentSNs {
		if _, ok := r.poolIdx[sn]; !ok {
			continue
		}
		if _, ok := r.conflicts[sn]; ok {
			continue
		}
		if include && !r.selected.Has(sn) {
			r.selected.Add(sn)
			changed = true
		} else if !include && r.selected.Has(sn) {
			r.selected.Remove(sn)
			changed = true
		}
	}
	if changed {
		r.seq++
	}
	return nil
}

// RefreshConflicts re-queries which pool students are linked to another
// section of this section's course. It must be re-run whenever the pool or
// the section's course changes; it is not run on local toggles (conflicts
// reflect server-side linkage, not local selection).
func (r *Reconciler) RefreshConflicts(ctx context.Context) error {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return ErrNotLoaded
	}
	sns := make([]int, 0, len(r.pool))
	for _, stu := range r.pool {
		sns = append(sns, stu.SN)
	}
	seq := r.seq
	r.mu.Unlock()

	conflicts, err := r.store.CheckSectionConflicts(ctx, r.sectionSN, sns)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.conflictsFresh = false
		return pkgerrors.Wrap(err, "checking roster conflicts")
	}
	if seq != r.seq {
		// the pool cannot have changed without a reload, so stale results are
		// still linkage facts; only freshness tracking really needs the guard.
		r.logger.Debug("conflict data arrived after local edits")
	}
	r.conflicts = make(map[int]core.ConflictingStudent, len(conflicts))
	for _, c := range conflicts {
		r.conflicts[c.StudentSN] = c
	}
	r.conflictsFresh = true
	return nil
}

// Diff returns the pending add/remove sets: added = selected - baseline,
// removed = baseline - selected. Pure function of state, no I/O.
func (r *Reconciler) Diff() (added, removed []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return nil, nil
	}
	return r.selected.Minus(r.baseline), r.baseline.Minus(r.selected)
}

// Dirty reports whether the pending selection differs from the baseline.
func (r *Reconciler) Dirty() bool {
	added, removed := r.Diff()
	return len(added)+len(removed) > 0
}

// Selected returns the pending selection, sorted.
func (r *Reconciler) Selected() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected.SNs()
}

// Baseline returns the last known-committed roster, sorted.
func (r *Reconciler) Baseline() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.baseline.SNs()
}

// Conflicts returns the currently known conflicting students.
func (r *Reconciler) Conflicts() []core.ConflictingStudent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.ConflictingStudent, 0, len(r.conflicts))
	for _, sn := range sortedConflictSNs(r.conflicts) {
		out = append(out, r.conflicts[sn])
	}
	return out
}

// ConflictsKnown reports whether conflict data is known-fresh, i.e. the last
// RefreshConflicts since load or edit succeeded.
func (r *Reconciler) ConflictsKnown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflictsFresh
}

// Pool returns the candidate students in server order.
func (r *Reconciler) Pool() []registry.Student {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]registry.Student(nil), r.pool...)
}

// minimum similarity ratio for fuzzy name matches
var filterSimilarityThreshold = 0.7

// Filter returns pool students whose no or name contains term
// (case-insensitive). When nothing contains the term, it falls back to fuzzy
// name matching so small typos still find the student.
func (r *Reconciler) Filter(term string) []registry.Student {
	term = core.CleanString(term, true)
	r.mu.Lock()
	defer r.mu.Unlock()
	if term == "" {
		return append([]registry.Student(nil), r.pool...)
	}
	var out []registry.Student
	for _, stu := range r.pool {
		if strings.Contains(strings.ToLower(stu.No), term) ||
			strings.Contains(strings.ToLower(stu.Name), term) {
			out = append(out, stu)
		}
	}
	if out != nil {
		return out
	}
	for _, stu := range r.pool {
		name := strings.ToLower(stu.Name)
		ratio := difflib.NewMatcher(strings.Split(term, ""), strings.Split(name, "")).QuickRatio()
		if ratio >= filterSimilarityThreshold {
			out = append(out, stu)
		}
	}
	return out
}

// Submit sends the full desired roster to the server.
//
// Preconditions: a non-empty diff and no conflicting student selected. The
// server stays the arbiter: students it rejects are removed from the
// selection, recorded as conflicts, and the call returns a ConflictError with
// the baseline narrowed to the accepted subset. A response that no longer
// matches the selection it was computed from is discarded (ErrSuperseded).
// A transport failure leaves selected and baseline untouched.
func (r *Reconciler) Submit(ctx context.Context) (*ReplaceResult, error) {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return nil, ErrNotLoaded
	}
	added := r.selected.Minus(r.baseline)
	removed := r.baseline.Minus(r.selected)
	if len(added)+len(removed) == 0 {
		r.mu.Unlock()
		return nil, ErrNoChanges
	}
	if selConflicts := r.selectedConflictsLocked(); len(selConflicts) > 0 {
		r.mu.Unlock()
		return nil, core.NewConflictError(selConflicts...)
	}
	if !r.conflictsFresh {
		r.logger.Warn("submitting roster without fresh conflict data; the server has the last word")
	}
	snapshot := r.selected.Clone()
	seq := r.seq
	r.mu.Unlock()

	resp, err := r.store.ReplaceSectionStudents(ctx, r.sectionSN, snapshot.SNs())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "submitting roster")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.seq {
		// newer local edits superseded this request; applying its response
		// would clobber them.
		return nil, ErrSuperseded
	}

	if len(resp.Conflicts) > 0 {
		// server-side race with another operator: narrow to the accepted set.
		for _, c := range resp.Conflicts {
			r.selected.Remove(c.StudentSN)
			r.conflicts[c.StudentSN] = c
		}
		r.baseline = r.selected.Clone()
		r.seq++
		return &resp, core.NewConflictError(resp.Conflicts...)
	}

	r.baseline = r.selected.Clone()
	r.seq++
	return &resp, nil
}

func (r *Reconciler) selectedConflictsLocked() []core.ConflictingStudent {
	var out []core.ConflictingStudent
	for _, sn := range sortedConflictSNs(r.conflicts) {
		if r.selected.Has(sn) {
			out = append(out, r.conflicts[sn])
		}
	}
	return out
}

func sortedConflictSNs(conflicts map[int]core.ConflictingStudent) []int {
	set := make(registry.StudentSet, len(conflicts))
	for sn := range conflicts {
		set.Add(sn)
	}
	return set.SNs()
}
