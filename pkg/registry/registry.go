// Package registry is the read-only boundary to the provider registry: the
// external source of truth for which instances exist and their live state.
package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/zen-systems/taskroute/pkg/schema"
)

// Entry is one provider registry record as reported by a snapshot.
type Entry struct {
	ID            string   `yaml:"id" json:"id"`
	State         string   `yaml:"state" json:"state"`
	Tags          []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	ContextWindow int      `yaml:"context_window" json:"context_window"`
	LatencyMillis int64    `yaml:"latency_ms" json:"latency_ms"`
	Locality      string   `yaml:"locality" json:"locality"`
	Model         string   `yaml:"model,omitempty" json:"model,omitempty"`
	Version       string   `yaml:"version,omitempty" json:"version,omitempty"`
	Fingerprint   string   `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`
}

// Registry exposes a point-in-time read of the provider registry. Snapshots
// carry no freshness guarantee beyond "valid at call time"; callers must not
// cache them across routing attempts.
type Registry interface {
	Snapshot(ctx context.Context) ([]Entry, error)
}

// BuildProfiles flattens a registry snapshot into instance profiles for
// scoring. An empty snapshot yields an empty slice, not an error. Entries
// without an explicit fingerprint get one computed from model and version.
func BuildProfiles(entries []Entry) []schema.InstanceProfile {
	profiles := make([]schema.InstanceProfile, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			continue
		}
		fp := e.Fingerprint
		if fp == "" {
			fp = schema.Fingerprint(e.Model, e.Version)
		}
		profiles = append(profiles, schema.InstanceProfile{
			ID:            e.ID,
			State:         parseState(e.State),
			Tags:          parseTags(e.Tags),
			ContextWindow: e.ContextWindow,
			LatencyMillis: e.LatencyMillis,
			Locality:      parseLocality(e.Locality),
			Fingerprint:   fp,
		})
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles
}

func parseState(s string) schema.InstanceState {
	switch schema.InstanceState(strings.ToUpper(strings.TrimSpace(s))) {
	case schema.StateReady:
		return schema.StateReady
	case schema.StateStarting:
		return schema.StateStarting
	case schema.StateError:
		return schema.StateError
	default:
		return schema.StateUnavailable
	}
}

func parseLocality(s string) schema.Locality {
	if schema.Locality(strings.ToUpper(strings.TrimSpace(s))) == schema.LocalityLocal {
		return schema.LocalityLocal
	}
	return schema.LocalityCloud
}

func parseTags(raw []string) []schema.Tag {
	tags := make([]schema.Tag, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags = append(tags, schema.Tag(t))
		}
	}
	return tags
}
