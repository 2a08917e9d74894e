package vclock

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestUpdateRejectsRegression(t *testing.T) {
	c := New()
	assert.NilError(t, c.Update("a", 1))
	assert.NilError(t, c.Update("a", 2))
	assert.Check(t, is.ErrorContains(c.Update("a", 2), "regression"))
	assert.Check(t, is.ErrorContains(c.Update("a", 1), "regression"))
}

func TestCompareDominance(t *testing.T) {
	a := Clock{"a": 2, "b": 1}
	b := Clock{"a": 1, "b": 1}
	assert.Equal(t, Compare(a, b), Greater)
	assert.Equal(t, Compare(b, a), Less)
	assert.Equal(t, Compare(a, a), Equal)

	c := Clock{"a": 1, "b": 2}
	assert.Equal(t, Compare(a, c), Concurrent)
}

func TestCompareMissingCoordinateIsZero(t *testing.T) {
	a := Clock{"a": 1}
	b := Clock{}
	assert.Equal(t, Compare(a, b), Greater)
	assert.Equal(t, Compare(b, a), Less)
}

func TestConverge(t *testing.T) {
	a := Clock{"a": 1, "b": 3}
	b := Clock{"a": 2, "c": 1}
	merged := Converge(a, b)
	assert.DeepEqual(t, merged, Clock{"a": 2, "b": 3, "c": 1})
}

func TestCoalesceMergesEqualValues(t *testing.T) {
	versions := []Versioned{
		{Value: "v1", Clock: Clock{"a": 1}},
		{Value: "v1", Clock: Clock{"b": 1}},
	}
	out := Coalesce(versions)
	assert.Equal(t, len(out), 1)
	assert.DeepEqual(t, out[0].Clock, Clock{"a": 1, "b": 1})
}

func TestCoalesceDropsDominatedBucket(t *testing.T) {
	versions := []Versioned{
		{Value: "old", Clock: Clock{"a": 1}},
		{Value: "new", Clock: Clock{"a": 2}},
	}
	out := Coalesce(versions)
	assert.Equal(t, len(out), 1)
	assert.Equal(t, out[0].Value, "new")
}

func TestCoalesceKeepsConcurrentValues(t *testing.T) {
	versions := []Versioned{
		{Value: "a", Clock: Clock{"coord1": 1}},
		{Value: "b", Clock: Clock{"coord2": 1}},
	}
	out := Coalesce(versions)
	assert.Equal(t, len(out), 2)
}

func TestCoalesceIdempotent(t *testing.T) {
	versions := []Versioned{
		{Value: "a", Clock: Clock{"coord1": 1}},
		{Value: "b", Clock: Clock{"coord2": 1}},
		{Value: "a", Clock: Clock{"coord1": 1, "coord3": 2}},
	}
	once := Coalesce(versions)
	twice := Coalesce(once)
	assert.Equal(t, len(once), len(twice))
}
