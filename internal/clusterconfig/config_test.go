package clusterconfig

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestValidateRejectsUnsafeQuorum(t *testing.T) {
	cfg := &Config{
		Peers:             []PeerConfig{{NodeID: "A"}},
		ReplicationFactor: 3,
		ReadQuorum:        1,
		WriteQuorum:       1,
		RingReplicas:      10,
	}
	assert.Check(t, is.ErrorContains(Validate(cfg), "unsafe quorum"))
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Default([]string{"A", "B", "C", "D", "E"})
	assert.NilError(t, Validate(cfg))
}

func TestDefaultNodeIDs(t *testing.T) {
	cfg := Default([]string{"A", "B"})
	assert.DeepEqual(t, cfg.NodeIDs(), []string{"A", "B"})
}
