package registry

import "context"

// StaticRegistry serves fixed entries for local runs and tests. Entries can
// be swapped between snapshots to simulate state transitions, and Fail forces
// snapshot errors to exercise registry-unavailable handling.
type StaticRegistry struct {
	Entries []Entry
	Fail    error
}

// NewStaticRegistry creates a static registry with the given entries.
func NewStaticRegistry(entries ...Entry) *StaticRegistry {
	return &StaticRegistry{Entries: entries}
}

// Snapshot returns the configured entries, or the configured failure.
func (r *StaticRegistry) Snapshot(_ context.Context) ([]Entry, error) {
	if r.Fail != nil {
		return nil, r.Fail
	}
	out := make([]Entry, len(r.Entries))
	copy(out, r.Entries)
	return out, nil
}

// SetState updates the state of the entry with the given id, if present.
func (r *StaticRegistry) SetState(id, state string) {
	for i := range r.Entries {
		if r.Entries[i].ID == id {
			r.Entries[i].State = state
		}
	}
}
