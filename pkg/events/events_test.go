package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zen-systems/taskroute/pkg/schema"
)

func testPlan() *schema.RoutePlan {
	return &schema.RoutePlan{
		PlanID:        "p1",
		TaskID:        "t1",
		Selected:      "inst-a",
		Reasons:       []string{"READY", "tags_match=coding"},
		RouterVersion: schema.RouterVersion,
		State:         schema.PlanCreated,
	}
}

func TestEventConstructors(t *testing.T) {
	now := time.Now()
	plan := testPlan()

	routed := NewRoutedEvent(plan, now)
	if routed.Type != schema.EventRouted || routed.To != "inst-a" || routed.Reason != "READY" {
		t.Fatalf("unexpected routed event: %+v", routed)
	}
	if routed.ID == "" {
		t.Fatalf("event id missing")
	}

	rerouted := NewReroutedEvent(plan, "inst-old", "selected_unready", now)
	if rerouted.From != "inst-old" || rerouted.Reason != "selected_unready" {
		t.Fatalf("unexpected rerouted event: %+v", rerouted)
	}

	overridden := NewOverriddenEvent(plan, "inst-old", "ops@example", now)
	if overridden.Reason != "manual_override" || overridden.Actor != "ops@example" {
		t.Fatalf("unexpected overridden event: %+v", overridden)
	}
}

func TestAuditSinkAppendsJSONL(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewAuditSink(dir)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	plan := testPlan()
	if err := sink.Emit(NewRoutedEvent(plan, now)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Emit(NewVerifiedEvent(plan, now)); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "t1.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var types []schema.EventType
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev schema.RouteEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad jsonl line: %v", err)
		}
		types = append(types, ev.Type)
	}

	if len(types) != 2 || types[0] != schema.EventRouted || types[1] != schema.EventVerified {
		t.Fatalf("unexpected audit contents: %v", types)
	}
}

func TestCaptureSinkByType(t *testing.T) {
	sink := &CaptureSink{}
	now := time.Now()
	plan := testPlan()

	_ = sink.Emit(NewRoutedEvent(plan, now))
	_ = sink.Emit(NewReroutedEvent(plan, "x", "selected_unready", now))
	_ = sink.Emit(NewReroutedEvent(plan, "y", "fingerprint_drift", now))

	if got := len(sink.ByType(schema.EventRerouted)); got != 2 {
		t.Fatalf("expected 2 rerouted events, got %d", got)
	}
	if got := len(sink.ByType(schema.EventOverridden)); got != 0 {
		t.Fatalf("expected 0 overridden events, got %d", got)
	}
}
