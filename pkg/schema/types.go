package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RouterVersion identifies the routing algorithm revision recorded on plans.
const RouterVersion = "taskroute.router.v1"

// Tag is a coarse capability label carried by tasks and instances.
type Tag string

const (
	TagCoding      Tag = "coding"
	TagFrontend    Tag = "frontend"
	TagBackend     Tag = "backend"
	TagData        Tag = "data"
	TagTesting     Tag = "testing"
	TagLongContext Tag = "long-context"
	TagQuality     Tag = "quality"
)

// Preference is a soft routing preference derived from a task spec.
type Preference string

const (
	PreferLocal   Preference = "local"
	PreferFast    Preference = "fast"
	PreferQuality Preference = "quality"
)

// InstanceState describes the readiness of a provider instance.
type InstanceState string

const (
	StateReady       InstanceState = "READY"
	StateStarting    InstanceState = "STARTING"
	StateError       InstanceState = "ERROR"
	StateUnavailable InstanceState = "UNAVAILABLE"
)

// Locality describes where an instance runs.
type Locality string

const (
	LocalityLocal Locality = "LOCAL"
	LocalityCloud Locality = "CLOUD"
)

// PlanState tracks a route plan's lifecycle.
type PlanState string

const (
	PlanCreated    PlanState = "CREATED"
	PlanVerified   PlanState = "VERIFIED"
	PlanSuperseded PlanState = "SUPERSEDED"
)

// EventType discriminates route event variants.
type EventType string

const (
	EventRouted     EventType = "task.routed"
	EventVerified   EventType = "task.route_verified"
	EventRerouted   EventType = "task.rerouted"
	EventOverridden EventType = "task.route_overridden"
)

// TaskSpec is the immutable input to a routing attempt.
type TaskSpec struct {
	ID               string `json:"id" yaml:"id"`
	Title            string `json:"title" yaml:"title"`
	Description      string `json:"description,omitempty" yaml:"description,omitempty"`
	MinContextTokens int    `json:"min_context_tokens,omitempty" yaml:"min_context_tokens,omitempty"`
}

// Requirements is the structured capability demand derived from a task spec.
// It is never persisted on its own; it travels embedded in a RoutePlan.
type Requirements struct {
	Needs            []Tag        `json:"needs,omitempty"`
	Prefer           []Preference `json:"prefer,omitempty"`
	MinContextTokens int          `json:"min_context_tokens,omitempty"`
	// PinnedFingerprint, when set, hard-disqualifies any instance whose
	// fingerprint differs.
	PinnedFingerprint string `json:"pinned_fingerprint,omitempty"`
}

// HasNeed reports whether the tag is in the needs set.
func (r Requirements) HasNeed(tag Tag) bool {
	for _, t := range r.Needs {
		if t == tag {
			return true
		}
	}
	return false
}

// Prefers reports whether the preference is in the prefer set.
func (r Requirements) Prefers(p Preference) bool {
	for _, pref := range r.Prefer {
		if pref == p {
			return true
		}
	}
	return false
}

// Normalize sorts and deduplicates the needs and prefer sets in place.
func (r *Requirements) Normalize() {
	r.Needs = dedupTags(r.Needs)
	r.Prefer = dedupPrefs(r.Prefer)
}

// InstanceProfile is a point-in-time view of one provider instance. Profiles
// are rebuilt from a fresh registry snapshot on every routing attempt.
type InstanceProfile struct {
	ID            string        `json:"id"`
	State         InstanceState `json:"state"`
	Tags          []Tag         `json:"tags,omitempty"`
	ContextWindow int           `json:"context_window"`
	LatencyMillis int64         `json:"latency_ms"`
	Locality      Locality      `json:"locality"`
	Fingerprint   string        `json:"fingerprint"`
}

// HasTag reports whether the profile carries the capability tag.
func (p InstanceProfile) HasTag(tag Tag) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ScoredCandidate pairs a profile with its score and the reason codes that
// produced it. Candidates exist only during scoring.
type ScoredCandidate struct {
	Profile    InstanceProfile `json:"profile"`
	Score      float64         `json:"score"`
	Reasons    []string        `json:"reasons"`
	UnmetPrefs int             `json:"unmet_prefs"`
}

// RoutePlan is the durable record of a single routing decision. Plans are
// superseded, never mutated, by later attempts for the same task.
type RoutePlan struct {
	PlanID              string       `json:"plan_id"`
	TaskID              string       `json:"task_id"`
	Selected            string       `json:"selected"`
	SelectedFingerprint string       `json:"selected_fingerprint,omitempty"`
	Fallback            []string     `json:"fallback,omitempty"`
	Reasons             []string     `json:"reasons,omitempty"`
	Requirements        Requirements `json:"requirements"`
	RouterVersion       string       `json:"router_version"`
	State               PlanState    `json:"state"`
	CreatedAt           time.Time    `json:"created_at"`
}

// Validate checks the plan invariants: a selected instance, no duplicate
// fallback entries, and the selected instance absent from the fallback list.
func (p *RoutePlan) Validate() error {
	if strings.TrimSpace(p.TaskID) == "" {
		return fmt.Errorf("plan task_id required")
	}
	if strings.TrimSpace(p.Selected) == "" {
		return fmt.Errorf("plan selected instance required")
	}
	if p.RouterVersion == "" {
		return fmt.Errorf("plan router_version required")
	}
	seen := map[string]bool{p.Selected: true}
	for _, id := range p.Fallback {
		if seen[id] {
			return fmt.Errorf("plan fallback contains duplicate or selected instance %q", id)
		}
		seen[id] = true
	}
	return nil
}

// RouteEvent is an append-only audit record of a routing transition.
type RouteEvent struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	TaskID string    `json:"task_id"`
	PlanID string    `json:"plan_id"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Actor  string    `json:"actor,omitempty"`
	Time   time.Time `json:"time"`
}

// SaveCause records why a plan write happened, for stats accounting.
type SaveCause string

const (
	CauseRouted     SaveCause = "routed"
	CauseRerouted   SaveCause = "rerouted"
	CauseOverridden SaveCause = "overridden"
)

// RoutingStats aggregates decision counts across all tasks.
type RoutingStats struct {
	TotalRouted   int64 `json:"total_routed"`
	RerouteCount  int64 `json:"reroute_count"`
	OverrideCount int64 `json:"override_count"`
}

// Fingerprint computes a stable content hash over an instance's model and
// version configuration, used to detect drift between scoring and execution.
func Fingerprint(model, version string, extra ...string) string {
	parts := append([]string{model, version}, extra...)
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

func dedupTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[Tag]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupPrefs(prefs []Preference) []Preference {
	if len(prefs) == 0 {
		return nil
	}
	seen := make(map[Preference]bool, len(prefs))
	out := prefs[:0]
	for _, p := range prefs {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
