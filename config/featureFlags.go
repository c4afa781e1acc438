package config

import (
	"os"
	"strings"

	"bitbucket.org/uniadq/requisitions_backend/duplicates"
)

// ForceDuplicatesAllowed reports whether callers may bypass the duplicate
// check with force_duplicates=1. Enabled unless turned off.
//
// Set via env:
// - DUPLICATE_FORCE_BYPASS=false
func ForceDuplicatesAllowed() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DUPLICATE_FORCE_BYPASS")))
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}

// DuplicateSettings overlays DUPLICATE_* variables on the default tunables.
//
// - DUPLICATE_WINDOW_DAYS (default 30)
// - DUPLICATE_CANDIDATE_CAP (default 200)
// - DUPLICATE_MIN_MATCH_RATIO (default 0.5)
func DuplicateSettings() duplicates.Config {
	cfg := duplicates.DefaultConfig()
	cfg.DefaultWindowDays = cfg.ClampWindow(intFromEnv("DUPLICATE_WINDOW_DAYS", cfg.DefaultWindowDays))
	if n := intFromEnv("DUPLICATE_CANDIDATE_CAP", cfg.CandidateCap); n > 0 {
		cfg.CandidateCap = n
	}
	if r := floatFromEnv("DUPLICATE_MIN_MATCH_RATIO", cfg.MinMatchRatio); r > 0 && r <= 1 {
		cfg.MinMatchRatio = r
	}
	return cfg
}
