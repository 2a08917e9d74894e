// Package clusterconfig loads the YAML-described bootstrap topology and
// tunables for a simulated cluster, validating the quorum invariant before
// any node is constructed.
package clusterconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PeerConfig names one simulated storage node.
type PeerConfig struct {
	NodeID string `yaml:"node_id"`
}

// Config is the full bootstrap description of a cluster run.
type Config struct {
	Peers             []PeerConfig `yaml:"peers"`
	ReplicationFactor int          `yaml:"replication_factor"`
	ReadQuorum        int          `yaml:"read_quorum"`
	WriteQuorum       int          `yaml:"write_quorum"`
	RingReplicas      int          `yaml:"ring_replicas"`
	HTTPAddr          string       `yaml:"http_addr"`
}

// Default returns the tunables spec.md names as defaults: N=3, R=2, W=2,
// T=10.
func Default(nodeIDs []string) *Config {
	peers := make([]PeerConfig, len(nodeIDs))
	for i, id := range nodeIDs {
		peers[i] = PeerConfig{NodeID: id}
	}
	return &Config{
		Peers:             peers,
		ReplicationFactor: 3,
		ReadQuorum:        2,
		WriteQuorum:       2,
		RingReplicas:      10,
	}
}

// Load reads and validates a cluster config file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("clusterconfig: read error: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("clusterconfig: parse error: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("clusterconfig: validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the quorum safety invariant R + W > N and that node
// identities are present.
func Validate(cfg *Config) error {
	if len(cfg.Peers) == 0 {
		return fmt.Errorf("cluster must declare at least one peer")
	}
	if cfg.ReadQuorum <= 0 || cfg.WriteQuorum <= 0 || cfg.ReplicationFactor <= 0 {
		return fmt.Errorf("N, R and W must be positive integers")
	}
	if cfg.ReadQuorum+cfg.WriteQuorum <= cfg.ReplicationFactor {
		return fmt.Errorf("unsafe quorum: R(%d) + W(%d) <= N(%d)",
			cfg.ReadQuorum, cfg.WriteQuorum, cfg.ReplicationFactor)
	}
	if cfg.RingReplicas <= 0 {
		return fmt.Errorf("ring_replicas must be positive")
	}
	return nil
}

// NodeIDs returns the configured peer identities in declaration order.
func (c *Config) NodeIDs() []string {
	ids := make([]string, len(c.Peers))
	for i, p := range c.Peers {
		ids[i] = p.NodeID
	}
	return ids
}
