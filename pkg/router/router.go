// Package router orchestrates routing decisions: requirement extraction,
// profile building, scoring, plan construction, verification, re-routing and
// manual overrides. Every decision is persisted before it is considered
// final, and every transition emits an audit event.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zen-systems/taskroute/pkg/events"
	"github.com/zen-systems/taskroute/pkg/extract"
	"github.com/zen-systems/taskroute/pkg/registry"
	"github.com/zen-systems/taskroute/pkg/schema"
	"github.com/zen-systems/taskroute/pkg/score"
)

// Reroute reason codes.
const (
	ReasonSelectedUnready        = "selected_unready"
	ReasonSelectedMissing        = "selected_missing"
	ReasonFingerprintDrift       = "fingerprint_drift"
	ReasonAllCandidatesExhausted = "all_candidates_exhausted"
	ReasonManualOverride         = "manual_override"
)

// DefaultFallbackDepth is how many runners-up a plan records as fallbacks.
const DefaultFallbackDepth = 3

// PlanStore is the persistence boundary the router writes decisions through.
type PlanStore interface {
	SavePlan(ctx context.Context, plan *schema.RoutePlan, cause schema.SaveCause) error
	MarkVerified(ctx context.Context, taskID, planID string) error
	LoadPlan(ctx context.Context, taskID string) (*schema.RoutePlan, error)
}

// Extractor derives requirements from a task spec.
type Extractor interface {
	Extract(spec schema.TaskSpec) schema.Requirements
}

// Router makes and maintains routing decisions for tasks.
type Router struct {
	registry      registry.Registry
	store         PlanStore
	sink          events.Sink
	logger        *zap.Logger
	extractor     Extractor
	weights       score.Weights
	fallbackDepth int
	version       string
	now           func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithFallbackDepth sets how many fallback instances a plan records.
func WithFallbackDepth(n int) Option {
	return func(r *Router) {
		if n >= 0 {
			r.fallbackDepth = n
		}
	}
}

// WithWeights overrides the scoring weights.
func WithWeights(w score.Weights) Option {
	return func(r *Router) { r.weights = w }
}

// WithVersion overrides the router algorithm version stamped on plans.
func WithVersion(v string) Option {
	return func(r *Router) { r.version = v }
}

// WithExtractor substitutes the requirements extractor.
func WithExtractor(e Extractor) Option {
	return func(r *Router) { r.extractor = e }
}

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a router over the given registry, store and event sink.
func New(reg registry.Registry, store PlanStore, sink events.Sink, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		registry:      reg,
		store:         store,
		sink:          sink,
		logger:        logger,
		extractor:     extract.New(nil),
		weights:       score.DefaultWeights(),
		fallbackDepth: DefaultFallbackDepth,
		version:       schema.RouterVersion,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route extracts requirements, scores the current instance pool and persists
// a plan for the task. It fails with NoEligibleInstanceError when no READY,
// fingerprint-valid candidate exists; nothing is persisted in that case.
func (r *Router) Route(ctx context.Context, taskID string, spec schema.TaskSpec) (*schema.RoutePlan, error) {
	req := r.extractor.Extract(spec)

	profiles, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	ranked := score.RankWeighted(req, profiles, r.weights)
	if len(ranked) == 0 {
		return nil, &NoEligibleInstanceError{TaskID: taskID}
	}

	plan := r.buildPlan(taskID, req, ranked)
	if err := r.store.SavePlan(ctx, plan, schema.CauseRouted); err != nil {
		return nil, &PersistenceError{Op: "save", Err: err}
	}

	r.emit(events.NewRoutedEvent(plan, r.now()))
	r.logger.Info("task routed",
		zap.String("task_id", taskID),
		zap.String("selected", plan.Selected),
		zap.Strings("fallback", plan.Fallback),
		zap.Float64("score", ranked[0].Score))

	return plan, nil
}

// VerifyOrReroute re-checks a plan's selected instance against a fresh
// snapshot. A still-READY, fingerprint-stable instance leaves the plan
// unchanged (marked verified). Otherwise the full pool is re-scored using the
// requirements captured in the plan, and a superseding plan is persisted with
// exactly one task.rerouted event. The returned event is nil when no reroute
// happened.
func (r *Router) VerifyOrReroute(ctx context.Context, taskID string, plan *schema.RoutePlan) (*schema.RoutePlan, *schema.RouteEvent, error) {
	if plan == nil {
		return nil, nil, fmt.Errorf("no current plan for task %s", taskID)
	}

	profiles, err := r.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	reason := disqualifyReason(plan, profiles)
	if reason == "" {
		if err := r.store.MarkVerified(ctx, taskID, plan.PlanID); err != nil {
			return nil, nil, &PersistenceError{Op: "mark_verified", Err: err}
		}
		// Emit the audit-level verified event only on the first transition so
		// repeated checks stay idempotent.
		if plan.State != schema.PlanVerified {
			plan.State = schema.PlanVerified
			r.emit(events.NewVerifiedEvent(plan, r.now()))
		}
		return plan, nil, nil
	}

	// Re-score the full pool, not just the stale fallback list: conditions
	// may have changed broadly since the plan was created.
	ranked := score.RankWeighted(plan.Requirements, profiles, r.weights)
	if len(ranked) == 0 {
		return nil, nil, &NoEligibleInstanceError{TaskID: taskID, Reason: ReasonAllCandidatesExhausted}
	}

	newPlan := r.buildPlan(taskID, plan.Requirements, ranked)
	if err := r.store.SavePlan(ctx, newPlan, schema.CauseRerouted); err != nil {
		return nil, nil, &PersistenceError{Op: "save", Err: err}
	}

	ev := events.NewReroutedEvent(newPlan, plan.Selected, reason, r.now())
	r.emit(ev)
	r.logger.Info("task rerouted",
		zap.String("task_id", taskID),
		zap.String("from", plan.Selected),
		zap.String("to", newPlan.Selected),
		zap.String("reason", reason))

	return newPlan, &ev, nil
}

// OverrideRoute forces a task onto a specific instance. The target must be
// present in a fresh snapshot but is not required to be READY; a deliberate
// override of a non-ready instance is recorded as such along with the actor.
func (r *Router) OverrideRoute(ctx context.Context, taskID string, plan *schema.RoutePlan, newInstanceID, actor string) (*schema.RoutePlan, error) {
	if plan == nil {
		return nil, fmt.Errorf("no current plan for task %s", taskID)
	}

	profiles, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	target := findProfile(profiles, newInstanceID)
	if target == nil {
		return nil, &InvalidOverrideTargetError{TaskID: taskID, InstanceID: newInstanceID}
	}

	reasons := []string{ReasonManualOverride, fmt.Sprintf("actor=%s", actor)}
	if target.State != schema.StateReady {
		reasons = append(reasons, fmt.Sprintf("target_state=%s", target.State))
	}

	// Fallbacks still come from scoring so a failed override target has
	// sensible replacements recorded.
	ranked := score.RankWeighted(plan.Requirements, profiles, r.weights)
	fallback := make([]string, 0, r.fallbackDepth)
	for _, c := range ranked {
		if len(fallback) == r.fallbackDepth {
			break
		}
		if c.Profile.ID != newInstanceID {
			fallback = append(fallback, c.Profile.ID)
		}
	}

	newPlan := &schema.RoutePlan{
		PlanID:              uuid.NewString(),
		TaskID:              taskID,
		Selected:            newInstanceID,
		SelectedFingerprint: target.Fingerprint,
		Fallback:            fallback,
		Reasons:             reasons,
		Requirements:        plan.Requirements,
		RouterVersion:       r.version,
		State:               schema.PlanCreated,
		CreatedAt:           r.now(),
	}
	if err := r.store.SavePlan(ctx, newPlan, schema.CauseOverridden); err != nil {
		return nil, &PersistenceError{Op: "save", Err: err}
	}

	r.emit(events.NewOverriddenEvent(newPlan, plan.Selected, actor, r.now()))
	r.logger.Info("route overridden",
		zap.String("task_id", taskID),
		zap.String("from", plan.Selected),
		zap.String("to", newInstanceID),
		zap.String("actor", actor))

	return newPlan, nil
}

func (r *Router) snapshot(ctx context.Context) ([]schema.InstanceProfile, error) {
	entries, err := r.registry.Snapshot(ctx)
	if err != nil {
		return nil, &RegistryUnavailableError{Err: err}
	}
	return registry.BuildProfiles(entries), nil
}

func (r *Router) buildPlan(taskID string, req schema.Requirements, ranked []schema.ScoredCandidate) *schema.RoutePlan {
	top := ranked[0]

	fallback := make([]string, 0, r.fallbackDepth)
	for _, c := range ranked[1:] {
		if len(fallback) == r.fallbackDepth {
			break
		}
		fallback = append(fallback, c.Profile.ID)
	}

	return &schema.RoutePlan{
		PlanID:              uuid.NewString(),
		TaskID:              taskID,
		Selected:            top.Profile.ID,
		SelectedFingerprint: top.Profile.Fingerprint,
		Fallback:            fallback,
		Reasons:             top.Reasons,
		Requirements:        req,
		RouterVersion:       r.version,
		State:               schema.PlanCreated,
		CreatedAt:           r.now(),
	}
}

// emit delivers an event to the sink. Emission failures are logged and
// swallowed: a routing decision's correctness does not depend on audit-log
// delivery.
func (r *Router) emit(ev schema.RouteEvent) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Emit(ev); err != nil {
		r.logger.Warn("event emission failed",
			zap.String("type", string(ev.Type)),
			zap.String("task_id", ev.TaskID),
			zap.Error(err))
	}
}

// disqualifyReason returns the reroute reason for a plan's selected instance
// against a fresh profile snapshot, or "" when the selection still holds.
func disqualifyReason(plan *schema.RoutePlan, profiles []schema.InstanceProfile) string {
	selected := findProfile(profiles, plan.Selected)
	if selected == nil {
		return ReasonSelectedMissing
	}
	if selected.State != schema.StateReady {
		return ReasonSelectedUnready
	}
	if plan.SelectedFingerprint != "" && selected.Fingerprint != plan.SelectedFingerprint {
		return ReasonFingerprintDrift
	}
	return ""
}

func findProfile(profiles []schema.InstanceProfile, id string) *schema.InstanceProfile {
	for i := range profiles {
		if profiles[i].ID == id {
			return &profiles[i]
		}
	}
	return nil
}
