// Package events carries routing domain events to the event bus. Emission is
// fire-and-forget from the router's perspective: delivery failures are logged
// by the caller, never retried synchronously.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/zen-systems/taskroute/pkg/schema"
)

// Sink accepts routing domain events for downstream audit consumption.
// Delivery is at-least-once from the bus's perspective.
type Sink interface {
	Emit(ev schema.RouteEvent) error
}

// NewRoutedEvent builds the task.routed event for a freshly created plan.
func NewRoutedEvent(plan *schema.RoutePlan, now time.Time) schema.RouteEvent {
	return schema.RouteEvent{
		ID:     uuid.NewString(),
		Type:   schema.EventRouted,
		TaskID: plan.TaskID,
		PlanID: plan.PlanID,
		To:     plan.Selected,
		Reason: firstReason(plan),
		Time:   now,
	}
}

// NewVerifiedEvent builds the audit-level task.route_verified event.
func NewVerifiedEvent(plan *schema.RoutePlan, now time.Time) schema.RouteEvent {
	return schema.RouteEvent{
		ID:     uuid.NewString(),
		Type:   schema.EventVerified,
		TaskID: plan.TaskID,
		PlanID: plan.PlanID,
		To:     plan.Selected,
		Reason: "route_verified",
		Time:   now,
	}
}

// NewReroutedEvent builds the task.rerouted event for a superseding plan.
func NewReroutedEvent(newPlan *schema.RoutePlan, from, reason string, now time.Time) schema.RouteEvent {
	return schema.RouteEvent{
		ID:     uuid.NewString(),
		Type:   schema.EventRerouted,
		TaskID: newPlan.TaskID,
		PlanID: newPlan.PlanID,
		From:   from,
		To:     newPlan.Selected,
		Reason: reason,
		Time:   now,
	}
}

// NewOverriddenEvent builds the task.route_overridden event.
func NewOverriddenEvent(newPlan *schema.RoutePlan, from, actor string, now time.Time) schema.RouteEvent {
	return schema.RouteEvent{
		ID:     uuid.NewString(),
		Type:   schema.EventOverridden,
		TaskID: newPlan.TaskID,
		PlanID: newPlan.PlanID,
		From:   from,
		To:     newPlan.Selected,
		Reason: "manual_override",
		Actor:  actor,
		Time:   now,
	}
}

func firstReason(plan *schema.RoutePlan) string {
	if len(plan.Reasons) > 0 {
		return plan.Reasons[0]
	}
	return ""
}
