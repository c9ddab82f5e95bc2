// Package manager implements the discovery cycle (§4.7): target-set
// computation, ensureRunning/stopGracefully lifecycle, and graceful shutdown.
package manager

import "sort"

// target pairs an eligible instance id with the priority the control plane
// reported for it.
type target struct {
	ID       string
	Priority int
}

// prioritize implements the stable prioritization of §4.7 step 4: sort by
// priority descending, tie-break by original index (stable sort preserves it).
func prioritize(ids []string, priorityOf map[string]int) []target {
	ordered := make([]target, len(ids))
	for i, id := range ids {
		ordered[i] = target{ID: id, Priority: priorityOf[id]}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}

// selectTargets implements §4.7 step 5: take the first N by priority, or all
// of them when N is 0 (fallback, no cap enforced).
func selectTargets(ordered []target, n int) []target {
	if n <= 0 {
		return ordered
	}
	if n > len(ordered) {
		n = len(ordered)
	}
	return ordered[:n]
}
