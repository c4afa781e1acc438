package duplicates

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// memorySource answers queries from a slice and ignores the filters, so the
// Finder's own checks are exercised.
type memorySource struct {
	rows    []Candidate
	err     error
	queries []CandidateQuery
}

func (s *memorySource) FindCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEvaluator(source CandidateSource) *Evaluator {
	e := NewEvaluator(source, DefaultConfig(), quietLogger())
	e.finder.now = func() time.Time { return fixedNow }
	return e
}

func stored(id, owner int, daysAgo int, header HeaderIDs, reason string, items ...ItemRow) Candidate {
	return Candidate{
		ID:        id,
		Status:    StatusRegistered,
		CreatedAt: fixedNow.AddDate(0, 0, -daysAgo),
		OwnerID:   owner,
		Header:    header,
		Reason:    reason,
		Items:     items,
	}
}

func TestFinder_HeaderExactMatch(t *testing.T) {
	withDept := HeaderIDs{RequestingDepartment: intPtr(5)}
	source := &memorySource{rows: []Candidate{
		stored(1, 1, 1, withDept, "r"),
		stored(2, 1, 1, HeaderIDs{}, "r"),
	}}
	f := NewFinder(source, DefaultConfig())
	f.now = func() time.Time { return fixedNow }

	got, err := f.Find(context.Background(), nil, HeaderIDs{}, 30, Requester{UserID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("null department must only match null, got %+v", got)
	}

	got, err = f.Find(context.Background(), nil, withDept, 30, Requester{UserID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("department 5 must only match department 5, got %+v", got)
	}
}

func TestFinder_WindowExclusionsAndOrder(t *testing.T) {
	cancelled := stored(4, 1, 1, HeaderIDs{}, "r")
	cancelled.Status = StatusCancelled
	source := &memorySource{rows: []Candidate{
		stored(1, 1, 5, HeaderIDs{}, "r"),
		stored(2, 1, 40, HeaderIDs{}, "r"),
		stored(3, 1, 1, HeaderIDs{}, "r"),
		cancelled,
		stored(5, 1, 2, HeaderIDs{}, "r"),
	}}
	f := NewFinder(source, DefaultConfig())
	f.now = func() time.Time { return fixedNow }

	got, err := f.Find(context.Background(), intPtr(5), HeaderIDs{}, 30, Requester{UserID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
		t.Fatalf("expected [3 1], got %+v", got)
	}

	q := source.queries[0]
	if !q.Since.Equal(fixedNow.AddDate(0, 0, -30)) || q.Limit != 200 {
		t.Fatalf("unexpected query %+v", q)
	}
}

func TestFinder_WindowClamped(t *testing.T) {
	f := NewFinder(&memorySource{}, DefaultConfig())
	f.now = func() time.Time { return fixedNow }

	cases := []struct {
		in   int
		days int
	}{
		{0, 30}, {-3, 1}, {7, 7}, {1000, 365},
	}
	for _, tc := range cases {
		q := f.Query(nil, HeaderIDs{}, tc.in, Requester{Privileged: true})
		if !q.Since.Equal(fixedNow.AddDate(0, 0, -tc.days)) {
			t.Fatalf("window %d: expected %d days, got since %v", tc.in, tc.days, q.Since)
		}
	}
}

func TestEvaluator_PrivacyForNonPrivilegedUser(t *testing.T) {
	source := &memorySource{rows: []Candidate{
		stored(10, 2, 1, HeaderIDs{}, "need paper", productItem(1)),
		stored(11, 1, 1, HeaderIDs{}, "need paper", productItem(1)),
	}}
	e := newTestEvaluator(source)
	subject := Subject{Reason: "need paper", Items: []ItemRow{productItem(1)}}

	res, err := e.Check(context.Background(), subject, 30, Requester{UserID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, d := range res.Duplicates {
		if d.ID == 10 {
			t.Fatalf("requisition of another user leaked: %+v", res.Duplicates)
		}
	}
	if len(res.Duplicates) != 1 {
		t.Fatalf("expected own requisition only, got %+v", res.Duplicates)
	}
	if source.queries[0].OwnerID == nil || *source.queries[0].OwnerID != 1 {
		t.Fatalf("expected owner filter on query")
	}

	res, err = e.Check(context.Background(), subject, 30, Requester{UserID: 1, Privileged: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Duplicates) != 2 {
		t.Fatalf("privileged check should see both, got %+v", res.Duplicates)
	}
}

func TestEvaluateForWrite_ConflictResponse(t *testing.T) {
	header := HeaderIDs{Project: intPtr(3)}
	source := &memorySource{rows: []Candidate{stored(8, 1, 2, header, "Need paper", catalogItem(1, 2), catalogItem(3, 4))}}
	e := newTestEvaluator(source)

	subject := Subject{Header: header, Reason: "need PAPER", Items: []ItemRow{catalogItem(1, 2), catalogItem(3, 4)}}
	res, err := e.EvaluateForWrite(context.Background(), subject, WriteOptions{
		Transition: Transition{Kind: WriteCreate},
		WindowDays: 15,
		Requester:  Requester{UserID: 1},
	})

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	body := conflict.Response
	if body.Detail != ConflictDetail || body.WindowDays != 15 {
		t.Fatalf("unexpected conflict body %+v", body)
	}
	if body.Criteria.ItemsCount != 2 || body.Criteria.MinMatchRatio != 0.5 || *body.Criteria.Project != 3 {
		t.Fatalf("unexpected criteria %+v", body.Criteria)
	}
	if len(body.Duplicates) != 1 || body.Duplicates[0].ID != 8 || body.Duplicates[0].MatchCount != 2 {
		t.Fatalf("unexpected duplicates %+v", body.Duplicates)
	}
	if res == nil || !res.HasDuplicates {
		t.Fatalf("expected result alongside conflict")
	}
}

func TestEvaluateForWrite_NoRecheckWhileSent(t *testing.T) {
	source := &memorySource{rows: []Candidate{stored(8, 1, 2, HeaderIDs{}, "r", productItem(1))}}
	e := newTestEvaluator(source)
	subject := Subject{CurrentID: intPtr(9), Reason: "r", Items: []ItemRow{productItem(1)}}

	res, err := e.EvaluateForWrite(context.Background(), subject, WriteOptions{
		Transition: Transition{Kind: WriteUpdate, Previous: StatusSent, Target: StatusSent},
		Requester:  Requester{UserID: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Checked || len(source.queries) != 0 {
		t.Fatalf("guard must not run on a sent to sent save")
	}

	_, err = e.EvaluateForWrite(context.Background(), subject, WriteOptions{
		Transition: Transition{Kind: WriteUpdate, Previous: StatusRegistered, Target: StatusRegistered},
		Requester:  Requester{UserID: 1},
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("registered save must re-check, got %v", err)
	}
}

func TestEvaluateForWrite_ForceBypass(t *testing.T) {
	source := &memorySource{rows: []Candidate{stored(8, 1, 2, HeaderIDs{}, "r", productItem(1))}}
	e := newTestEvaluator(source)

	res, err := e.EvaluateForWrite(context.Background(), Subject{Reason: "r", Items: []ItemRow{productItem(1)}}, WriteOptions{
		Transition:  Transition{Kind: WriteCreate},
		Requester:   Requester{UserID: 1},
		ForceBypass: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Forced || res.Checked || len(source.queries) != 0 {
		t.Fatalf("expected explicit bypass without lookup, got %+v", res)
	}
}

func TestEvaluateForWrite_StorageFailureSurfaces(t *testing.T) {
	e := newTestEvaluator(&memorySource{err: errors.New("connection refused")})

	_, err := e.EvaluateForWrite(context.Background(), Subject{Reason: "r"}, WriteOptions{
		Transition: Transition{Kind: WriteCreate},
		Requester:  Requester{UserID: 1},
	})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestCheck_NoDuplicatesReturnsEmptyList(t *testing.T) {
	e := newTestEvaluator(&memorySource{})

	res, err := e.Check(context.Background(), Subject{Reason: "r", Items: []ItemRow{productItem(1)}}, 0, Requester{UserID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HasDuplicates || res.Duplicates == nil || res.WindowDays != 30 {
		t.Fatalf("unexpected result %+v", res)
	}
}
