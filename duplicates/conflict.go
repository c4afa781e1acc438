package duplicates

import "fmt"

const ConflictDetail = "Possible duplicate requisition detected."

// Criteria echoes what the check compared against.
type Criteria struct {
	HeaderIDs
	ItemsCount    int     `json:"items_count"`
	MinMatchRatio float64 `json:"min_match_ratio"`
}

// Result is the outcome of a duplicate check.
type Result struct {
	// Checked is false when the guard did not apply or was bypassed.
	Checked       bool     `json:"-"`
	Forced        bool     `json:"-"`
	HasDuplicates bool     `json:"has_duplicates"`
	WindowDays    int      `json:"window_days"`
	Criteria      Criteria `json:"criteria"`
	Duplicates    []Match  `json:"duplicates"`
}

// ConflictResponse is the body returned with a 409.
type ConflictResponse struct {
	Detail     string   `json:"detail"`
	WindowDays int      `json:"window_days"`
	Criteria   Criteria `json:"criteria"`
	Duplicates []Match  `json:"duplicates"`
}

func (r *Result) Conflict() ConflictResponse {
	return ConflictResponse{
		Detail:     ConflictDetail,
		WindowDays: r.WindowDays,
		Criteria:   r.Criteria,
		Duplicates: r.Duplicates,
	}
}

// ConflictError rejects a write that looks like a duplicate. The caller may
// retry with an explicit bypass.
type ConflictError struct {
	Response ConflictResponse
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("possible duplicate requisition: %d candidate(s) within %d day(s)", len(e.Response.Duplicates), e.Response.WindowDays)
}
