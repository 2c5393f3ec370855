package extract

import (
	"testing"

	"github.com/zen-systems/taskroute/pkg/schema"
)

func TestExtractAccumulatesNeeds(t *testing.T) {
	req := Extract(schema.TaskSpec{
		ID:    "t1",
		Title: "Fix the REST api",
		Description: "The database query in the user endpoint returns stale " +
			"rows; add a test for it",
	})

	for _, want := range []schema.Tag{schema.TagBackend, schema.TagCoding, schema.TagTesting} {
		if !req.HasNeed(want) {
			t.Fatalf("expected need %s, got %v", want, req.Needs)
		}
	}
	if req.HasNeed(schema.TagFrontend) {
		t.Fatalf("unexpected frontend need: %v", req.Needs)
	}
}

func TestExtractDefaultsToLocal(t *testing.T) {
	req := Extract(schema.TaskSpec{Title: "summarize meeting notes"})
	if !req.Prefers(schema.PreferLocal) {
		t.Fatalf("expected default local preference, got %v", req.Prefer)
	}

	req = Extract(schema.TaskSpec{Title: "run this against the hosted model in the cloud"})
	if req.Prefers(schema.PreferLocal) {
		t.Fatalf("cloud term should drop local preference, got %v", req.Prefer)
	}
}

func TestExtractUrgencyAndQuality(t *testing.T) {
	req := Extract(schema.TaskSpec{Title: "urgent: production hotfix"})
	if !req.Prefers(schema.PreferFast) {
		t.Fatalf("expected fast preference, got %v", req.Prefer)
	}
	if !req.Prefers(schema.PreferQuality) {
		t.Fatalf("expected quality preference, got %v", req.Prefer)
	}
}

func TestExtractLongContextImpliesMinimum(t *testing.T) {
	req := Extract(schema.TaskSpec{Title: "review the entire repository"})
	if !req.HasNeed(schema.TagLongContext) {
		t.Fatalf("expected long-context need, got %v", req.Needs)
	}
	if req.MinContextTokens != DefaultLongContextTokens {
		t.Fatalf("expected implied min context %d, got %d", DefaultLongContextTokens, req.MinContextTokens)
	}

	// An explicit minimum wins over the implied default.
	req = Extract(schema.TaskSpec{Title: "review the entire repository", MinContextTokens: 32768})
	if req.MinContextTokens != 32768 {
		t.Fatalf("explicit min context overridden: %d", req.MinContextTokens)
	}
}

func TestExtractNeverFails(t *testing.T) {
	req := Extract(schema.TaskSpec{})
	if len(req.Needs) != 0 {
		t.Fatalf("expected empty needs for empty spec, got %v", req.Needs)
	}
	if !req.Prefers(schema.PreferLocal) {
		t.Fatalf("expected local default even for empty spec")
	}
}

func TestExtractWordBoundaries(t *testing.T) {
	// "ui" must not match inside "build" or "guide".
	req := Extract(schema.TaskSpec{Title: "write a user guide"})
	if req.HasNeed(schema.TagFrontend) {
		t.Fatalf("boundary violation: %v", req.Needs)
	}

	req = Extract(schema.TaskSpec{Title: "polish the ui spacing"})
	if !req.HasNeed(schema.TagFrontend) {
		t.Fatalf("expected frontend for standalone ui, got %v", req.Needs)
	}
}

func TestExtractExtraRules(t *testing.T) {
	ex := New(map[schema.Tag][]string{
		schema.TagData: {"warehouse"},
	})
	req := ex.Extract(schema.TaskSpec{Title: "load the warehouse tables"})
	if !req.HasNeed(schema.TagData) {
		t.Fatalf("extra rule not applied: %v", req.Needs)
	}
}
