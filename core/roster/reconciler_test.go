package roster

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/registry"
)

type fakeStore struct {
	pool      []registry.Student
	linked    []registry.Student
	conflicts []core.ConflictingStudent

	listErr      error
	conflictsErr error
	replaceFunc  func(sns []int) (ReplaceResult, error)

	replacedWith []int
}

var _ Store = (*fakeStore)(nil)

func (s *fakeStore) ListStudents(_ context.Context, page, pageSize int) ([]registry.Student, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	start := (page - 1) * pageSize
	if start >= len(s.pool) {
		return nil, len(s.pool), nil
	}
	end := start + pageSize
	if end > len(s.pool) {
		end = len(s.pool)
	}
	return s.pool[start:end], len(s.pool), nil
}

func (s *fakeStore) ListSectionStudents(context.Context, int) ([]registry.Student, error) {
	return s.linked, nil
}

func (s *fakeStore) CheckSectionConflicts(context.Context, int, []int) ([]core.ConflictingStudent, error) {
	if s.conflictsErr != nil {
		return nil, s.conflictsErr
	}
	return s.conflicts, nil
}

func (s *fakeStore) ReplaceSectionStudents(_ context.Context, _ int, sns []int) (ReplaceResult, error) {
	s.replacedWith = sns
	if s.replaceFunc != nil {
		return s.replaceFunc(sns)
	}
	return ReplaceResult{TotalCount: len(sns)}, nil
}

func students(sns ...int) []registry.Student {
	out := make([]registry.Student, 0, len(sns))
	for _, sn := range sns {
		out = append(out, registry.Student{SN: sn, No: "1000", Name: "Student"})
	}
	return out
}

func conflict(sn int, classNo string) core.ConflictingStudent {
	return core.ConflictingStudent{StudentSN: sn, StudentNo: "1000", StudentName: "Student", ClassNo: classNo}
}

func loadedReconciler(t *testing.T, store *fakeStore) *Reconciler {
	t.Helper()
	rec := NewReconciler(store, 1, WithPageSize(2))
	if err := rec.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return rec
}

func TestReconciler_Load(t *testing.T) {
	store := &fakeStore{
		pool:   students(1, 2, 3, 4, 5),
		linked: students(2, 4),
	}
	rec := loadedReconciler(t, store)

	if got := rec.Pool(); len(got) != 5 {
		t.Errorf("Pool() len = %d, want 5", len(got))
	}
	if got, want := rec.Selected(), []int{2, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
	if got, want := rec.Baseline(), []int{2, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("Baseline() = %v, want %v", got, want)
	}
	if rec.Dirty() {
		t.Error("Dirty() = true after load, want false")
	}
	if !rec.ConflictsKnown() {
		t.Error("ConflictsKnown() = false after successful load")
	}
}

func TestReconciler_Load_conflictCheckFails(t *testing.T) {
	store := &fakeStore{
		pool:         students(1, 2),
		conflictsErr: errors.New("boom"),
	}
	rec := NewReconciler(store, 1, WithPageSize(2))
	if err := rec.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if rec.ConflictsKnown() {
		t.Error("ConflictsKnown() = true, want false when the check failed")
	}
	// selection stays usable
	if err := rec.Toggle(1); err != nil {
		t.Errorf("Toggle() failed: %v", err)
	}
}

func TestReconciler_Toggle(t *testing.T) {
	store := &fakeStore{
		pool:      students(1, 2, 3),
		linked:    students(1),
		conflicts: []core.ConflictingStudent{conflict(3, "30001-2026")},
	}
	rec := loadedReconciler(t, store)

	var confErr *core.ConflictError
	tests := []struct {
		name    string
		sn      int
		wantErr error
	}{
		{name: "unknown student", sn: 99, wantErr: ErrUnknownStudent},
		{name: "conflicting student", sn: 3, wantErr: confErr},
		{name: "select", sn: 2},
		{name: "deselect", sn: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rec.Toggle(tt.sn)
			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("Toggle(%d) failed: %v", tt.sn, err)
				}
			case *core.ConflictError:
				_ = want
				if !errors.As(err, &confErr) {
					t.Fatalf("Toggle(%d) error = %v, want ConflictError", tt.sn, err)
				}
			default:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Toggle(%d) error = %v, want %v", tt.sn, err, tt.wantErr)
				}
			}
		})
	}

	if got, want := rec.Selected(), []int{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
	added, removed := rec.Diff()
	if !reflect.DeepEqual(added, []int{2}) || !reflect.DeepEqual(removed, []int{1}) {
		t.Errorf("Diff() = +%v -%v, want +[2] -[1]", added, removed)
	}
}

func TestReconciler_Toggle_notLoaded(t *testing.T) {
	rec := NewReconciler(&fakeStore{}, 1)
	if err := rec.Toggle(1); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Toggle() error = %v, want %v", err, ErrNotLoaded)
	}
}

func TestReconciler_Toggle_roundTripIsClean(t *testing.T) {
	store := &fakeStore{pool: students(1, 2), linked: students(1)}
	rec := loadedReconciler(t, store)

	for _, sn := range []int{1, 2, 1, 2} {
		if err := rec.Toggle(sn); err != nil {
			t.Fatalf("Toggle(%d) failed: %v", sn, err)
		}
	}
	if rec.Dirty() {
		t.Error("Dirty() = true after round-trip toggles, want false")
	}
}

func TestReconciler_BatchSet(t *testing.T) {
	store := &fakeStore{
		pool:      students(1, 2, 3, 4),
		linked:    students(1, 2),
		conflicts: []core.ConflictingStudent{conflict(4, "30001-2026")},
	}
	rec := loadedReconciler(t, store)

	// unknown (99) and conflicting (4) are skipped, never errors
	if err := rec.BatchSet([]int{3, 4, 99}, true); err != nil {
		t.Fatalf("BatchSet() failed: %v", err)
	}
	if got, want := rec.Selected(), []int{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}

	if err := rec.BatchSet([]int{1, 2}, false); err != nil {
		t.Fatalf("BatchSet() failed: %v", err)
	}
	if got, want := rec.Selected(), []int{3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
}

func TestReconciler_Submit(t *testing.T) {
	store := &fakeStore{pool: students(1, 2, 3), linked: students(1)}
	rec := loadedReconciler(t, store)

	if _, err := rec.Submit(context.Background()); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("Submit() error = %v, want %v", err, ErrNoChanges)
	}

	_ = rec.Toggle(2)
	_ = rec.Toggle(1)
	res, err := rec.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if res.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", res.TotalCount)
	}
	if got, want := store.replacedWith, []int{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("submitted roster = %v, want %v", got, want)
	}
	if rec.Dirty() {
		t.Error("Dirty() = true after successful submit, want false")
	}
	if got, want := rec.Baseline(), []int{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Baseline() = %v, want %v", got, want)
	}
}

func TestReconciler_Submit_transportFailure(t *testing.T) {
	store := &fakeStore{pool: students(1, 2), linked: students(1)}
	rec := loadedReconciler(t, store)
	_ = rec.Toggle(2)

	store.replaceFunc = func([]int) (ReplaceResult, error) {
		return ReplaceResult{}, errors.New("connection refused")
	}
	if _, err := rec.Submit(context.Background()); err == nil {
		t.Fatal("Submit() succeeded, want transport error")
	}
	// nothing moved: the diff survives for a retry
	if got, want := rec.Selected(), []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
	if got, want := rec.Baseline(), []int{1}; !reflect.DeepEqual(got, want) {
		t.Errorf("Baseline() = %v, want %v", got, want)
	}
}

func TestReconciler_Submit_serverRejectsSubset(t *testing.T) {
	store := &fakeStore{pool: students(1, 2, 3), linked: students(1)}
	rec := loadedReconciler(t, store)
	_ = rec.Toggle(2)
	_ = rec.Toggle(3)

	// another operator linked 3 elsewhere between our conflict check and submit
	store.replaceFunc = func(sns []int) (ReplaceResult, error) {
		return ReplaceResult{
			Added:      []int{2},
			TotalCount: 2,
			Conflicts:  []core.ConflictingStudent{conflict(3, "30001-2027")},
		}, nil
	}

	res, err := rec.Submit(context.Background())
	var confErr *core.ConflictError
	if !errors.As(err, &confErr) {
		t.Fatalf("Submit() error = %v, want ConflictError", err)
	}
	if res == nil || res.TotalCount != 2 {
		t.Fatalf("Submit() result = %+v, want partial result", res)
	}

	// narrowed to the accepted subset and clean against it
	if got, want := rec.Selected(), []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
	if got, want := rec.Baseline(), []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Baseline() = %v, want %v", got, want)
	}
	if rec.Dirty() {
		t.Error("Dirty() = true after partial accept, want false")
	}
	// the rejected student is now a known conflict
	if err := rec.Toggle(3); err == nil {
		t.Error("Toggle(3) succeeded, want ConflictError after server rejection")
	}
}

func TestReconciler_Submit_selectedConflict(t *testing.T) {
	store := &fakeStore{pool: students(1, 2), linked: students(1, 2)}
	rec := loadedReconciler(t, store)
	_ = rec.Toggle(1) // make it dirty

	// conflict data arrives for an already-selected student
	store.conflicts = []core.ConflictingStudent{conflict(2, "30001-2027")}
	if err := rec.RefreshConflicts(context.Background()); err != nil {
		t.Fatalf("RefreshConflicts() failed: %v", err)
	}

	var confErr *core.ConflictError
	if _, err := rec.Submit(context.Background()); !errors.As(err, &confErr) {
		t.Fatalf("Submit() error = %v, want ConflictError", err)
	}
	if store.replacedWith != nil {
		t.Error("Submit() hit the network despite a selected conflict")
	}
}

func TestReconciler_Submit_superseded(t *testing.T) {
	store := &fakeStore{pool: students(1, 2, 3), linked: students(1)}
	rec := loadedReconciler(t, store)
	_ = rec.Toggle(2)

	store.replaceFunc = func(sns []int) (ReplaceResult, error) {
		// a local edit lands while the request is in flight
		if err := rec.Toggle(3); err != nil {
			t.Fatalf("Toggle(3) failed: %v", err)
		}
		return ReplaceResult{Added: []int{2}, TotalCount: 2}, nil
	}

	if _, err := rec.Submit(context.Background()); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Submit() error = %v, want %v", err, ErrSuperseded)
	}
	// the in-flight edit survives
	if got, want := rec.Selected(), []int{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
	if got, want := rec.Baseline(), []int{1}; !reflect.DeepEqual(got, want) {
		t.Errorf("Baseline() = %v, want %v", got, want)
	}
}

func TestReconciler_Filter(t *testing.T) {
	store := &fakeStore{
		pool: []registry.Student{
			{SN: 1, No: "1001", Name: "Amina Kazadi"},
			{SN: 2, No: "1002", Name: "Jean Ilunga"},
			{SN: 3, No: "2001", Name: "Grace Mwamba"},
		},
	}
	rec := loadedReconciler(t, store)

	tests := []struct {
		name    string
		term    string
		wantSNs []int
	}{
		{name: "empty term returns all", term: "", wantSNs: []int{1, 2, 3}},
		{name: "by number prefix", term: "100", wantSNs: []int{1, 2}},
		{name: "by name", term: "mwamba", wantSNs: []int{3}},
		{name: "fuzzy name typo", term: "amina kazdi", wantSNs: []int{1}},
		{name: "no match", term: "zzzzzz", wantSNs: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, stu := range rec.Filter(tt.term) {
				got = append(got, stu.SN)
			}
			if !reflect.DeepEqual(got, tt.wantSNs) {
				t.Errorf("Filter(%q) = %v, want %v", tt.term, got, tt.wantSNs)
			}
		})
	}
}
