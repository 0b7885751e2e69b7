package domain

type ConflictType string

const (
	ConflictBlockedDate   ConflictType = "expert_blocked_date"
	ConflictTimeOverlap   ConflictType = "time_range_overlap"
	ConflictMinimumNotice ConflictType = "minimum_notice_violation"
)

type ConflictOutcome int

const (
	NoConflict ConflictOutcome = iota
	Conflict
	// Skipped means evaluation was aborted; callers keep the originally
	// scheduled data and must not recalculate.
	Skipped
)

type ConflictResult struct {
	Outcome ConflictOutcome
	Type    ConflictType
	Reason  string
	Details map[string]any
}
