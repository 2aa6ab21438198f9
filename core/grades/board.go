package grades

import (
	"github.com/volatiletech/null/v8"
)

// State of the grade board relative to the server.
//
//	Clean -> Dirty/PendingCommit (edit) -> Committing -> Clean | Dirty
//
// Stale is orthogonal: a version-poll mismatch can enter it from any state
// and forces a reload that wins over any in-flight commit.
type State int

const (
	StateClean State = iota
	StateDirty
	StatePendingCommit
	StateCommitting
	StateStale
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StatePendingCommit:
		return "pending-commit"
	case StateCommitting:
		return "committing"
	case StateStale:
		return "stale"
	}
	return "unknown"
}

type (
	// BoardRow is one roster line of the grade board. Grade is null until a
	// value has been entered.
	BoardRow struct {
		StudentSN   int          `json:"stu_sn"`
		StudentNo   string       `json:"stu_no"`
		StudentName string       `json:"stu_name"`
		Grade       null.Float64 `json:"grade"`
	}

	// GradeEntry is the wire shape of a single grade commit.
	GradeEntry struct {
		StudentSN int          `json:"stu_sn"`
		SectionSN int          `json:"class_sn"`
		Grade     null.Float64 `json:"grade"`
	}

	// ImportRecord is one line of a bulk grade import.
	ImportRecord struct {
		StudentNo string  `json:"stu_no"`
		Grade     float64 `json:"grade"`
	}

	// ImportStats is the server's 3-way import outcome count.
	ImportStats struct {
		Success int `json:"success"`
		Failed  int `json:"failed"`
		Invalid int `json:"invalid"`
	}

	// InvalidRecord is an import line rejected before submission.
	InvalidRecord struct {
		Record ImportRecord
		Reason string
	}

	// ImportReport combines server stats with locally rejected lines.
	ImportReport struct {
		Stats          ImportStats
		InvalidRecords []InvalidRecord
	}
)
