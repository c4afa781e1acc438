package models

import (
	"context"
	"strings"
	"testing"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/duplicates"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dryRunDB renders statements without a server. Every rendered query is
// appended to captured.
func dryRunDB(t *testing.T, captured *[]string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/requisitions?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	err = db.Callback().Query().After("gorm:query").Register("test:capture_sql", func(tx *gorm.DB) {
		*captured = append(*captured, tx.Dialector.Explain(tx.Statement.SQL.String(), tx.Statement.Vars...))
	})
	if err != nil {
		t.Fatalf("register capture callback: %v", err)
	}
	return db
}

func requisitionQuery(t *testing.T, captured []string) string {
	t.Helper()
	for _, sql := range captured {
		if strings.Contains(sql, "FROM `requisitions`") {
			return sql
		}
	}
	t.Fatalf("no requisitions query captured in %v", captured)
	return ""
}

func TestCandidateSourceSQL(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		query    duplicates.CandidateQuery
		contains []string
		absent   []string
	}{
		{
			name: "owner scoped update",
			query: duplicates.CandidateQuery{
				Header:          duplicates.HeaderIDs{RequestingDepartment: intPtr(5)},
				Since:           now.AddDate(0, 0, -30),
				Until:           now,
				ExcludeID:       intPtr(4),
				ExcludeStatuses: []duplicates.Status{duplicates.StatusCancelled},
				OwnerID:         intPtr(9),
				Limit:           200,
			},
			contains: []string{
				"requesting_department_id = 5",
				"project_id IS NULL",
				"funding_source_id IS NULL",
				"external_service_id IS NULL",
				"status NOT IN ('cancelled')",
				"id <> 4",
				"user_id = 9",
				"ORDER BY created_at DESC, id DESC",
				"LIMIT 200",
			},
		},
		{
			name: "privileged create",
			query: duplicates.CandidateQuery{
				Header:          duplicates.HeaderIDs{Project: intPtr(3), Tender: intPtr(11)},
				Since:           now.AddDate(0, 0, -7),
				Until:           now,
				ExcludeStatuses: []duplicates.Status{duplicates.StatusCancelled},
				Limit:           50,
			},
			contains: []string{
				"requesting_department_id IS NULL",
				"project_id = 3",
				"tender_id = 11",
				"LIMIT 50",
			},
			absent: []string{"user_id =", "id <>"},
		},
	}

	for _, tc := range cases {
		var captured []string
		source := NewCandidateSource(dryRunDB(t, &captured))
		got, err := source.FindCandidates(context.Background(), tc.query)
		if err != nil {
			t.Fatalf("%s: FindCandidates error: %v", tc.name, err)
		}
		if len(got) != 0 {
			t.Fatalf("%s: dry run should return no rows, got %d", tc.name, len(got))
		}
		sql := requisitionQuery(t, captured)
		for _, want := range tc.contains {
			if !strings.Contains(sql, want) {
				t.Fatalf("%s: expected %q in\n%s", tc.name, want, sql)
			}
		}
		for _, unwanted := range tc.absent {
			if strings.Contains(sql, unwanted) {
				t.Fatalf("%s: did not expect %q in\n%s", tc.name, unwanted, sql)
			}
		}
	}
}

func TestCandidateSourceNotReady(t *testing.T) {
	var source *CandidateSource
	if _, err := source.FindCandidates(context.Background(), duplicates.CandidateQuery{}); err == nil {
		t.Fatalf("expected error from nil source")
	}
}
