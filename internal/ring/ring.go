// Package ring implements the consistent hash ring that maps a key to an
// ordered preference list of storage nodes, skipping a caller-supplied
// avoid set.
package ring

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// DefaultReplicas is the number of virtual positions placed on the ring per
// physical node (spec's T, default 10).
const DefaultReplicas = 10

type vnode struct {
	hash uint64
	node string
	seq  int // insertion order, breaks hash ties deterministically
}

// Ring is an immutable-after-construction consistent hash ring. A rebuild
// replaces the value wholesale; there is no in-place membership change.
type Ring struct {
	replicas int
	vnodes   []vnode
}

// New builds a ring over nodes with T virtual positions each. The node
// order given is preserved as the tie-break order for equal hash values.
func New(nodes []string, replicas int) *Ring {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	r := &Ring{replicas: replicas}
	seq := 0
	for _, node := range nodes {
		for i := 0; i < replicas; i++ {
			r.vnodes = append(r.vnodes, vnode{
				hash: hashPosition(node, i),
				node: node,
				seq:  seq,
			})
			seq++
		}
	}
	sort.Slice(r.vnodes, func(i, j int) bool {
		if r.vnodes[i].hash != r.vnodes[j].hash {
			return r.vnodes[i].hash < r.vnodes[j].hash
		}
		return r.vnodes[i].seq < r.vnodes[j].seq
	})
	return r
}

func hashPosition(node string, repeat int) uint64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", node, repeat)))
	var h uint64
	for i := 0; i < 8; i++ {
		h = h<<8 | uint64(sum[i])
	}
	return h
}

func hashKey(key string) uint64 {
	sum := sha256.Sum256([]byte(key))
	var h uint64
	for i := 0; i < 8; i++ {
		h = h<<8 | uint64(sum[i])
	}
	return h
}

// FindNodes walks clockwise from the first ring position at or after
// hash(key), collecting up to n distinct node identities into preferred.
// Any identity present in avoid is skipped and instead appended to
// avoided, in the order encountered. If fewer than n non-avoided
// identities exist, FindNodes returns as many as it found.
func (r *Ring) FindNodes(key string, n int, avoid []string) (preferred, avoided []string) {
	if len(r.vnodes) == 0 || n <= 0 {
		return nil, nil
	}

	avoidSet := make(map[string]bool, len(avoid))
	for _, node := range avoid {
		avoidSet[node] = true
	}

	h := hashKey(key)
	start := sort.Search(len(r.vnodes), func(i int) bool {
		return r.vnodes[i].hash >= h
	})
	if start == len(r.vnodes) {
		start = 0
	}

	seen := make(map[string]bool)
	avoidedSeen := make(map[string]bool)

	for i := 0; i < len(r.vnodes) && len(preferred) < n; i++ {
		v := r.vnodes[(start+i)%len(r.vnodes)]
		if seen[v.node] {
			continue
		}
		if avoidSet[v.node] {
			if !avoidedSeen[v.node] {
				avoided = append(avoided, v.node)
				avoidedSeen[v.node] = true
			}
			continue
		}
		seen[v.node] = true
		preferred = append(preferred, v.node)
	}
	return preferred, avoided
}
