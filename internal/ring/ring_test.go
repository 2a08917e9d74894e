package ring

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestFindNodesDeterministic(t *testing.T) {
	nodes := []string{"A", "B", "C", "D", "E"}
	r1 := New(nodes, DefaultReplicas)
	r2 := New(nodes, DefaultReplicas)

	p1, a1 := r1.FindNodes("x", 3, nil)
	p2, a2 := r2.FindNodes("x", 3, nil)
	assert.DeepEqual(t, p1, p2)
	assert.DeepEqual(t, a1, a2)
}

func TestFindNodesNoDuplicates(t *testing.T) {
	nodes := []string{"A", "B", "C", "D", "E"}
	r := New(nodes, DefaultReplicas)
	preferred, _ := r.FindNodes("somekey", 3, nil)
	assert.Equal(t, len(preferred), 3)

	seen := map[string]bool{}
	for _, n := range preferred {
		assert.Check(t, !seen[n])
		seen[n] = true
	}
}

func TestFindNodesSkipsAvoided(t *testing.T) {
	nodes := []string{"A", "B", "C", "D", "E"}
	r := New(nodes, DefaultReplicas)
	full, _ := r.FindNodes("k", 5, nil)
	assert.Equal(t, len(full), 5)

	preferred, avoided := r.FindNodes("k", 3, []string{full[0]})
	assert.Equal(t, len(preferred), 3)
	for _, n := range preferred {
		assert.Check(t, n != full[0])
	}
	assert.Check(t, len(avoided) >= 1)
	assert.Equal(t, avoided[0], full[0])
}

func TestFindNodesFewerThanNAvailable(t *testing.T) {
	nodes := []string{"A", "B"}
	r := New(nodes, DefaultReplicas)
	preferred, _ := r.FindNodes("k", 3, nil)
	assert.Equal(t, len(preferred), 2)
}

func TestFindNodesEmptyRing(t *testing.T) {
	r := New(nil, DefaultReplicas)
	preferred, avoided := r.FindNodes("k", 3, nil)
	assert.Check(t, preferred == nil)
	assert.Check(t, avoided == nil)
}
