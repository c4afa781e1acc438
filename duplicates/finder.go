package duplicates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrStorageUnavailable wraps any failure of the candidate lookup. The guard
// never treats it as "no duplicates".
var ErrStorageUnavailable = errors.New("duplicate check: candidate storage unavailable")

// HeaderIDs are the administrative identifiers of a requisition. A nil field
// only matches a nil field.
type HeaderIDs struct {
	RequestingDepartment *int `json:"requesting_department"`
	Project              *int `json:"project"`
	FundingSource        *int `json:"funding_source"`
	BudgetUnit           *int `json:"budget_unit"`
	Agreement            *int `json:"agreement"`
	Tender               *int `json:"tender"`
	ExternalService      *int `json:"external_service"`
}

func (h HeaderIDs) Equal(o HeaderIDs) bool {
	return sameID(h.RequestingDepartment, o.RequestingDepartment) &&
		sameID(h.Project, o.Project) &&
		sameID(h.FundingSource, o.FundingSource) &&
		sameID(h.BudgetUnit, o.BudgetUnit) &&
		sameID(h.Agreement, o.Agreement) &&
		sameID(h.Tender, o.Tender) &&
		sameID(h.ExternalService, o.ExternalService)
}

func sameID(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Requester is the user on whose behalf the check runs.
type Requester struct {
	UserID     int
	Privileged bool
}

// Candidate is an existing requisition loaded for comparison.
type Candidate struct {
	ID        int
	Status    Status
	CreatedAt time.Time
	OwnerID   int
	Header    HeaderIDs
	Reason    string
	Items     []ItemRow
}

// CandidateQuery is what a CandidateSource must answer. Sources should apply
// every filter; the Finder re-checks them regardless.
type CandidateQuery struct {
	Header          HeaderIDs
	Since           time.Time
	Until           time.Time
	ExcludeID       *int
	ExcludeStatuses []Status
	// OwnerID restricts results to one user; nil for privileged callers.
	OwnerID *int
	Limit   int
}

type CandidateSource interface {
	FindCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)
}

// Finder selects the time-windowed candidate pool for a requisition.
type Finder struct {
	source CandidateSource
	cfg    Config
	now    func() time.Time
}

func NewFinder(source CandidateSource, cfg Config) *Finder {
	return &Finder{source: source, cfg: cfg.withDefaults(), now: time.Now}
}

// Query builds the lookup for the given subject without running it.
func (f *Finder) Query(currentID *int, header HeaderIDs, windowDays int, requester Requester) CandidateQuery {
	days := f.cfg.ClampWindow(windowDays)
	until := f.now()
	q := CandidateQuery{
		Header:          header,
		Since:           until.AddDate(0, 0, -days),
		Until:           until,
		ExcludeID:       currentID,
		ExcludeStatuses: []Status{StatusCancelled},
		Limit:           f.cfg.CandidateCap,
	}
	if !requester.Privileged {
		owner := requester.UserID
		q.OwnerID = &owner
	}
	return q
}

// Find returns candidates newest first, at most CandidateCap of them.
func (f *Finder) Find(ctx context.Context, currentID *int, header HeaderIDs, windowDays int, requester Requester) ([]Candidate, error) {
	if f.source == nil {
		return nil, fmt.Errorf("%w: no candidate source configured", ErrStorageUnavailable)
	}
	q := f.Query(currentID, header, windowDays, requester)

	found, err := f.source.FindCandidates(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(found))
	for _, c := range found {
		if q.accepts(c) {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID > candidates[j].ID
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}
	return candidates, nil
}

func (q CandidateQuery) accepts(c Candidate) bool {
	if q.ExcludeID != nil && c.ID == *q.ExcludeID {
		return false
	}
	for _, s := range q.ExcludeStatuses {
		if c.Status == s {
			return false
		}
	}
	if q.OwnerID != nil && c.OwnerID != *q.OwnerID {
		return false
	}
	if c.CreatedAt.Before(q.Since) || c.CreatedAt.After(q.Until) {
		return false
	}
	return q.Header.Equal(c.Header)
}
