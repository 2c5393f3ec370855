package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zen-systems/taskroute/pkg/schema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func plan(taskID, planID, selected string) *schema.RoutePlan {
	return &schema.RoutePlan{
		PlanID:        planID,
		TaskID:        taskID,
		Selected:      selected,
		Fallback:      []string{"fb-1", "fb-2"},
		Reasons:       []string{"READY"},
		RouterVersion: schema.RouterVersion,
		State:         schema.PlanCreated,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestSaveAndLoadPlan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePlan(ctx, plan("t1", "p1", "inst-a"), schema.CauseRouted))

	got, err := s.LoadPlan(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "inst-a", got.Selected)
	require.Equal(t, []string{"fb-1", "fb-2"}, got.Fallback)
	require.Equal(t, schema.PlanCreated, got.State)
}

func TestLoadPlanAbsent(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LoadPlan(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSavePlanSupersedes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePlan(ctx, plan("t1", "p1", "inst-a"), schema.CauseRouted))
	require.NoError(t, s.SavePlan(ctx, plan("t1", "p2", "inst-b"), schema.CauseRerouted))

	// Load returns only the most recent plan.
	got, err := s.LoadPlan(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "p2", got.PlanID)
	require.Equal(t, "inst-b", got.Selected)

	// Both plans remain in history, oldest first.
	history, err := s.History(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "p1", history[0].PlanID)
	require.Equal(t, "p2", history[1].PlanID)
}

func TestSavePlanRejectsInvalid(t *testing.T) {
	s := openTestStore(t)

	bad := plan("t1", "p1", "inst-a")
	bad.Fallback = []string{"inst-a"}
	require.Error(t, s.SavePlan(context.Background(), bad, schema.CauseRouted))

	got, err := s.LoadPlan(context.Background(), "t1")
	require.NoError(t, err)
	require.Nil(t, got, "invalid plan must not be persisted")
}

func TestMarkVerified(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePlan(ctx, plan("t1", "p1", "inst-a"), schema.CauseRouted))
	require.NoError(t, s.MarkVerified(ctx, "t1", "p1"))

	got, err := s.LoadPlan(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, schema.PlanVerified, got.State)

	// Verifying a stale plan id is a no-op.
	require.NoError(t, s.MarkVerified(ctx, "t1", "p0"))
	got, err = s.LoadPlan(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "p1", got.PlanID)
}

func TestStatsCounters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePlan(ctx, plan("t1", "p1", "a"), schema.CauseRouted))
	require.NoError(t, s.SavePlan(ctx, plan("t2", "p2", "a"), schema.CauseRouted))
	require.NoError(t, s.SavePlan(ctx, plan("t1", "p3", "b"), schema.CauseRerouted))
	require.NoError(t, s.SavePlan(ctx, plan("t2", "p4", "c"), schema.CauseOverridden))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalRouted)
	require.Equal(t, int64(1), stats.RerouteCount)
	require.Equal(t, int64(1), stats.OverrideCount)
}

func TestSavePlanUnknownCause(t *testing.T) {
	s := openTestStore(t)
	require.Error(t, s.SavePlan(context.Background(), plan("t1", "p1", "a"), schema.SaveCause("bogus")))
}
