package frame

import (
	"time"

	"github.com/google/pprof/profile"
)

// Snapshot renders the frame table's current occupancy as a pprof-format
// profile, so an operator can feed it to `go tool pprof` to visualize
// physical-memory fragmentation the same way they'd inspect a heap profile.
// This is the nearest embeddable surface google/pprof exposes — the rest of
// that module is a profile *viewer*, not a profile *producer* API.
func (t *Table) Snapshot(now time.Time) *profile.Profile {
	t.mu.Lock()
	defer t.mu.Unlock()

	free, inUse := 0, 0
	for _, e := range t.entries {
		if e.inUse {
			inUse++
		} else {
			free++
		}
	}

	valType := &profile.ValueType{Type: "frames", Unit: "count"}
	return &profile.Profile{
		SampleType:    []*profile.ValueType{valType},
		PeriodType:    valType,
		Period:        1,
		TimeNanos:     now.UnixNano(),
		DurationNanos: 0,
		Sample: []*profile.Sample{
			{
				Value: []int64{int64(free)},
				Label: map[string][]string{"state": {"free"}},
			},
			{
				Value: []int64{int64(inUse)},
				Label: map[string][]string{"state": {"in_use"}},
			},
		},
	}
}
