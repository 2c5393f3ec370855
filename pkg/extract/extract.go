// Package extract derives structured routing requirements from free-text
// task specs using fixed keyword tables. It is a fast triage, not semantic
// understanding; downstream scoring tolerates false positives.
package extract

import (
	"strings"

	"github.com/zen-systems/taskroute/pkg/schema"
)

// DefaultLongContextTokens is the implied minimum context window when a task
// matches long-context keywords but carries no explicit minimum.
const DefaultLongContextTokens = 8192

// needRules maps trigger keywords to capability tags. Multiple matching rules
// accumulate into the needs set.
var needRules = map[schema.Tag][]string{
	schema.TagFrontend:    {"react", "vue", "ui", "css", "component", "frontend"},
	schema.TagBackend:     {"api", "rest", "database", "sql", "server", "backend", "endpoint"},
	schema.TagCoding:      {"code", "implement", "function", "refactor", "bug", "fix"},
	schema.TagData:        {"data", "etl", "pipeline", "csv", "analytics"},
	schema.TagTesting:     {"test", "pytest", "coverage", "unit test"},
	schema.TagLongContext: {"long", "multiple files", "entire", "whole repo", "large"},
}

var fastTriggers = []string{"urgent", "quick", "asap", "fast"}

var qualityTriggers = []string{"careful", "thorough", "production", "quality"}

// cloudTriggers suppress the default local preference.
var cloudTriggers = []string{"cloud", "hosted", "remote api"}

// Extractor turns task specs into requirements. The zero value uses the
// built-in keyword tables; extra rules from configuration are additive.
type Extractor struct {
	extra map[schema.Tag][]string
}

// New creates an extractor with optional extra keyword rules merged on top of
// the built-in tables.
func New(extra map[schema.Tag][]string) *Extractor {
	return &Extractor{extra: extra}
}

// Extract derives requirements from the spec. It is pure and never fails:
// unparseable input yields an empty-needs requirements with the default
// local preference.
func (e *Extractor) Extract(spec schema.TaskSpec) schema.Requirements {
	text := strings.ToLower(spec.Title + " " + spec.Description)

	req := schema.Requirements{MinContextTokens: spec.MinContextTokens}

	for tag, triggers := range needRules {
		if matchesAny(text, triggers) {
			req.Needs = append(req.Needs, tag)
		}
	}
	for tag, triggers := range e.extra {
		if matchesAny(text, triggers) {
			req.Needs = append(req.Needs, tag)
		}
	}

	// Local is the default preference; an explicit cloud/hosted term drops it.
	if !matchesAny(text, cloudTriggers) {
		req.Prefer = append(req.Prefer, schema.PreferLocal)
	}
	if matchesAny(text, fastTriggers) {
		req.Prefer = append(req.Prefer, schema.PreferFast)
	}
	if matchesAny(text, qualityTriggers) {
		req.Prefer = append(req.Prefer, schema.PreferQuality)
	}

	if req.MinContextTokens == 0 {
		for _, tag := range req.Needs {
			if tag == schema.TagLongContext {
				req.MinContextTokens = DefaultLongContextTokens
				break
			}
		}
	}

	req.Normalize()
	return req
}

// Extract runs the default extractor.
func Extract(spec schema.TaskSpec) schema.Requirements {
	return New(nil).Extract(spec)
}

func matchesAny(text string, triggers []string) bool {
	for _, trigger := range triggers {
		if containsTrigger(text, strings.ToLower(trigger)) {
			return true
		}
	}
	return false
}

// containsTrigger checks if the text contains the trigger phrase on word
// boundaries, so "ui" does not match "build".
func containsTrigger(text, trigger string) bool {
	if trigger == "" {
		return false
	}
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], trigger)
		if idx == -1 {
			return false
		}
		idx += start

		boundedBefore := idx == 0 || !isWordChar(text[idx-1])
		end := idx + len(trigger)
		boundedAfter := end >= len(text) || !isWordChar(text[end])
		if boundedBefore && boundedAfter {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
