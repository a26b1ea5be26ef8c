// Package ingest drives the catalog synchronization pipeline: it pages
// through the source listing, resolves each payload entry to a media item and
// applies the newer-wins upsert policy.
package ingest

import (
	"fmt"
	"sort"
	"strings"
)

// Action classifies the outcome of processing one payload entry.
type Action string

const (
	ActionCreated              Action = "created"
	ActionUpdated              Action = "updated"
	ActionSkipped              Action = "skipped"
	ActionSkippedNoIDs         Action = "skipped_no_ids"
	ActionSkippedMissingTitle  Action = "skipped_missing_title"
	ActionSkippedMappingFailed Action = "skipped_mapping_failed"
	ActionSkippedBadTimestamp  Action = "skipped_bad_timestamp"
	ActionError                Action = "error"
)

// Stats counts processing outcomes per action.
type Stats map[Action]int

// Add increments the counter for one outcome.
func (s Stats) Add(a Action) { s[a]++ }

// Merge folds other into s.
func (s Stats) Merge(other Stats) {
	for a, n := range other {
		s[a] += n
	}
}

// Total returns the number of entries counted.
func (s Stats) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Summary renders the counters as a stable one-line report.
func (s Stats) Summary() string {
	if len(s) == 0 {
		return "no items processed"
	}
	actions := make([]string, 0, len(s))
	for a := range s {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, fmt.Sprintf("%s=%d", a, s[Action(a)]))
	}
	return strings.Join(parts, " ")
}
