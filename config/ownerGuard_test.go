package config

import (
	"context"
	"testing"

	"bitbucket.org/uniadq/requisitions_backend/appctx"
	"gorm.io/gorm/clause"
)

func TestWhereHasOwner(t *testing.T) {
	cases := []struct {
		name     string
		exprs    []clause.Expression
		expected bool
	}{
		{"eq column", []clause.Expression{clause.Eq{Column: clause.Column{Name: "user_id"}, Value: 1}}, true},
		{"eq string", []clause.Expression{clause.Eq{Column: "USER_ID", Value: 1}}, true},
		{"raw expr", []clause.Expression{clause.Expr{SQL: "requisitions.user_id = ?"}}, true},
		{"nested and", []clause.Expression{clause.AndConditions{Exprs: []clause.Expression{clause.IN{Column: "user_id"}}}}, true},
		{"other column", []clause.Expression{clause.Eq{Column: "status", Value: "sent"}}, false},
	}
	for _, tc := range cases {
		c := clause.Clause{Expression: clause.Where{Exprs: tc.exprs}}
		if got := whereHasOwner(c); got != tc.expected {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
	if whereHasOwner(clause.Clause{}) {
		t.Fatalf("empty clause must not report an owner filter")
	}
}

func TestOwnerScopeBypass(t *testing.T) {
	ctx := appctx.Set(context.Background(), appctx.ContextKeyUserId, 7)
	if shouldBypassOwnerScope(ctx) {
		t.Fatalf("plain user must be scoped")
	}
	if id, ok := ownerIdFromContext(ctx); !ok || id != 7 {
		t.Fatalf("expected owner 7, got %d %v", id, ok)
	}
	if !shouldBypassOwnerScope(appctx.Set(ctx, appctx.ContextKeyIsAdmin, true)) {
		t.Fatalf("admin must bypass owner scope")
	}
	if !shouldBypassOwnerScope(appctx.Set(ctx, appctx.ContextKeySkipOwnerScope, true)) {
		t.Fatalf("skip flag must bypass owner scope")
	}
	if _, ok := ownerIdFromContext(context.Background()); ok {
		t.Fatalf("missing user id must not scope")
	}
}

func TestDuplicateSettingsFromEnv(t *testing.T) {
	t.Setenv("DUPLICATE_WINDOW_DAYS", "900")
	t.Setenv("DUPLICATE_CANDIDATE_CAP", "50")
	t.Setenv("DUPLICATE_MIN_MATCH_RATIO", "abc")

	cfg := DuplicateSettings()
	if cfg.DefaultWindowDays != 365 {
		t.Fatalf("expected window clamped to 365, got %d", cfg.DefaultWindowDays)
	}
	if cfg.CandidateCap != 50 {
		t.Fatalf("expected cap 50, got %d", cfg.CandidateCap)
	}
	if cfg.MinMatchRatio != 0.5 {
		t.Fatalf("expected default ratio, got %v", cfg.MinMatchRatio)
	}
}

func TestForceDuplicatesAllowed(t *testing.T) {
	t.Setenv("DUPLICATE_FORCE_BYPASS", "")
	if !ForceDuplicatesAllowed() {
		t.Fatalf("bypass must be allowed by default")
	}
	t.Setenv("DUPLICATE_FORCE_BYPASS", "false")
	if ForceDuplicatesAllowed() {
		t.Fatalf("bypass must be disabled by DUPLICATE_FORCE_BYPASS=false")
	}
}
