// Package score ranks instance profiles against routing requirements using
// hard disqualifiers and a weighted soft-scoring formula. Every adjustment is
// recorded as a reason code so the eventual route plan can explain itself.
package score

import (
	"fmt"
	"sort"

	"github.com/zen-systems/taskroute/pkg/schema"
)

// Weights parameterize the soft-scoring formula. The zero value is not
// usable; start from DefaultWeights.
type Weights struct {
	Base           float64 `yaml:"base"`
	NeedMatch      float64 `yaml:"need_match"`
	ContextBonus   float64 `yaml:"context_bonus"`
	ContextPenalty float64 `yaml:"context_penalty"`
	LatencyBonus   float64 `yaml:"latency_bonus"`
	LocalBonus     float64 `yaml:"local_bonus"`
	CloudPenalty   float64 `yaml:"cloud_penalty"`
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Base:           0.5,
		NeedMatch:      0.2,
		ContextBonus:   0.1,
		ContextPenalty: 0.2,
		LatencyBonus:   0.1,
		LocalBonus:     0.05,
		CloudPenalty:   0.02,
	}
}

// Rank scores profiles against requirements and returns eligible candidates
// ordered best-first. Disqualified profiles (not READY, or fingerprint
// mismatch against a pinned fingerprint) appear nowhere in the output.
// Ties break by fewer unmet preferences, then lexicographically smallest
// instance id, so ranking is deterministic for a given pool.
func Rank(req schema.Requirements, profiles []schema.InstanceProfile) []schema.ScoredCandidate {
	return RankWeighted(req, profiles, DefaultWeights())
}

// RankWeighted is Rank with explicit weights.
func RankWeighted(req schema.Requirements, profiles []schema.InstanceProfile, w Weights) []schema.ScoredCandidate {
	eligible := make([]schema.InstanceProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.State != schema.StateReady {
			continue
		}
		if req.PinnedFingerprint != "" && req.PinnedFingerprint != p.Fingerprint {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return nil
	}

	bestLatency := poolBestLatency(eligible)

	candidates := make([]schema.ScoredCandidate, 0, len(eligible))
	for _, p := range eligible {
		candidates = append(candidates, scoreOne(req, p, w, bestLatency))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.UnmetPrefs != b.UnmetPrefs {
			return a.UnmetPrefs < b.UnmetPrefs
		}
		return a.Profile.ID < b.Profile.ID
	})

	return candidates
}

func scoreOne(req schema.Requirements, p schema.InstanceProfile, w Weights, bestLatency int64) schema.ScoredCandidate {
	score := w.Base
	reasons := []string{string(schema.StateReady)}

	for _, need := range req.Needs {
		if p.HasTag(need) {
			score += w.NeedMatch
			reasons = append(reasons, fmt.Sprintf("tags_match=%s", need))
		} else {
			reasons = append(reasons, fmt.Sprintf("tags_missing=%s", need))
		}
	}

	if req.MinContextTokens > 0 {
		if p.ContextWindow >= req.MinContextTokens {
			score += w.ContextBonus
			reasons = append(reasons, fmt.Sprintf("ctx>=%d", req.MinContextTokens))
		} else {
			// Insufficient context degrades the score but never disqualifies;
			// the task may still proceed degraded.
			score -= w.ContextPenalty
			reasons = append(reasons, "ctx_below_min")
		}
	}

	if bestLatency > 0 && p.LatencyMillis > 0 {
		score += w.LatencyBonus * float64(bestLatency) / float64(p.LatencyMillis)
		if p.LatencyMillis == bestLatency {
			reasons = append(reasons, "latency_best")
		} else {
			reasons = append(reasons, "latency_ok")
		}
	}

	if req.Prefers(schema.PreferLocal) {
		switch p.Locality {
		case schema.LocalityLocal:
			score += w.LocalBonus
			reasons = append(reasons, "local_preferred")
		case schema.LocalityCloud:
			score -= w.CloudPenalty
			reasons = append(reasons, "cloud_penalty")
		}
	}

	return schema.ScoredCandidate{
		Profile:    p,
		Score:      score,
		Reasons:    reasons,
		UnmetPrefs: countUnmetPrefs(req, p, bestLatency),
	}
}

// countUnmetPrefs counts soft preferences the profile does not satisfy:
// local wants LOCAL, fast wants pool-best latency, quality wants a quality tag.
func countUnmetPrefs(req schema.Requirements, p schema.InstanceProfile, bestLatency int64) int {
	unmet := 0
	if req.Prefers(schema.PreferLocal) && p.Locality != schema.LocalityLocal {
		unmet++
	}
	if req.Prefers(schema.PreferFast) && (p.LatencyMillis <= 0 || p.LatencyMillis != bestLatency) {
		unmet++
	}
	if req.Prefers(schema.PreferQuality) && !p.HasTag(schema.TagQuality) {
		unmet++
	}
	return unmet
}

func poolBestLatency(profiles []schema.InstanceProfile) int64 {
	var best int64
	for _, p := range profiles {
		if p.LatencyMillis <= 0 {
			continue
		}
		if best == 0 || p.LatencyMillis < best {
			best = p.LatencyMillis
		}
	}
	return best
}
