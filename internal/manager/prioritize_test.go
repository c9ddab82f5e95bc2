package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrioritize_SortsByPriorityDescending(t *testing.T) {
	ids := []string{"a", "b", "c"}
	priorities := map[string]int{"a": 1, "b": 5, "c": 3}
	got := prioritize(ids, priorities)
	assert.Equal(t, []string{"b", "c", "a"}, idsOf(got))
}

func TestPrioritize_TieBreaksByOriginalIndex(t *testing.T) {
	ids := []string{"first", "second", "third"}
	priorities := map[string]int{"first": 5, "second": 5, "third": 5}
	got := prioritize(ids, priorities)
	assert.Equal(t, []string{"first", "second", "third"}, idsOf(got))
}

func TestSelectTargets_CapsAtN(t *testing.T) {
	ordered := []target{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := selectTargets(ordered, 2)
	assert.Equal(t, []string{"a", "b"}, idsOf(got))
}

func TestSelectTargets_ZeroNReturnsAll(t *testing.T) {
	ordered := []target{{ID: "a"}, {ID: "b"}}
	got := selectTargets(ordered, 0)
	assert.Equal(t, []string{"a", "b"}, idsOf(got))
}

func TestSelectTargets_NLargerThanListReturnsAll(t *testing.T) {
	ordered := []target{{ID: "a"}}
	got := selectTargets(ordered, 50)
	assert.Equal(t, []string{"a"}, idsOf(got))
}

func idsOf(ts []target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}
