package duplicates

import (
	"math"
	"sort"
	"time"
)

// Match is one requisition flagged as a possible duplicate.
type Match struct {
	ID                 int       `json:"id"`
	Status             Status    `json:"status"`
	Date               time.Time `json:"date"`
	MatchCount         int       `json:"match_count"`
	MatchRatio         float64   `json:"match_ratio"`
	MatchingSignatures []string  `json:"matching_signatures"`
}

// Matcher scores candidates against the signatures and reason of a requisition.
type Matcher struct {
	cfg Config
}

func NewMatcher(cfg Config) Matcher {
	return Matcher{cfg: cfg.withDefaults()}
}

type scored struct {
	match Match
	ratio float64
}

// Match ranks the accepted candidates by (ratio, count), best first. reason
// must already be normalized. Candidate order breaks ties, so callers pass
// them newest first.
func (m Matcher) Match(signatures SignatureSet, reason string, candidates []Candidate) []Match {
	var accepted []scored
	for _, c := range candidates {
		if Normalize(c.Reason) != reason {
			continue
		}

		result, ok := m.score(signatures, NewSignatureSet(c.Items))
		if !ok {
			continue
		}
		result.match.ID = c.ID
		result.match.Status = c.Status
		result.match.Date = c.CreatedAt
		accepted = append(accepted, result)
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].ratio != accepted[j].ratio {
			return accepted[i].ratio > accepted[j].ratio
		}
		return accepted[i].match.MatchCount > accepted[j].match.MatchCount
	})
	if len(accepted) > m.cfg.MaxResults {
		accepted = accepted[:m.cfg.MaxResults]
	}

	out := make([]Match, len(accepted))
	for i, a := range accepted {
		out[i] = a.match
	}
	return out
}

func (m Matcher) score(current, candidate SignatureSet) (scored, bool) {
	// header + reason alone is enough while the requisition has no lines yet
	if current.Len() == 0 {
		return scored{ratio: 1, match: Match{MatchRatio: 1, MatchingSignatures: []string{}}}, true
	}
	if candidate.Len() == 0 {
		return scored{}, false
	}

	overlap := current.Intersect(candidate)
	count := len(overlap)
	ratio := float64(count) / float64(current.Len())

	singleton := current.Len() == 1 && count == 1
	if ratio < m.cfg.MinMatchRatio && !singleton {
		return scored{}, false
	}

	if len(overlap) > m.cfg.MaxMatchingSignatures {
		overlap = overlap[:m.cfg.MaxMatchingSignatures]
	}
	if overlap == nil {
		overlap = []string{}
	}
	return scored{
		ratio: ratio,
		match: Match{
			MatchCount:         count,
			MatchRatio:         roundRatio(ratio),
			MatchingSignatures: overlap,
		},
	}, true
}

func roundRatio(r float64) float64 {
	return math.Round(r*1000) / 1000
}
