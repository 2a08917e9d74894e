// Package cluster owns the process-wide set of simulated storage nodes and
// the single deterministic scheduler that drives them. It is the
// Go-idiomatic replacement for the source's process-level mutable globals
// (spec §9, Design Note 1): instead of a shared result buffer the scheduler
// writes into and the HTTP layer polls, every operation returns its own
// completion handle.
package cluster

import (
	"fmt"
	"sync"

	"module/internal/clusterconfig"
	"module/internal/dynamonode"
	"module/internal/framework"
	"module/internal/message"
	"module/internal/ring"
	"module/internal/vclock"

	"github.com/sirupsen/logrus"
)

// PutResult is the per-operation completion handle for a PUT: the
// coordinator that served it and the clock it committed.
type PutResult struct {
	Coordinator string
	Clock       vclock.Clock
}

// GetResult is the per-operation completion handle for a GET: the coalesced
// sibling values and their clocks, parallel by index. An empty Values means
// the key was never written (§7, "key not found on GET").
type GetResult struct {
	Coordinator string
	Values      []any
	Clocks      []vclock.Clock
}

// Cluster is the process-wide collaborator the HTTP boundary talks to. The
// scheduler inside it is single-threaded, so every exported method that
// touches the scheduler or the nodes takes mu (NodeIDs only reads the
// immutable id list and does not): concurrent HTTP requests serialize onto
// one simulated timeline, the
// same way the source's single-process event loop always did.
type Cluster struct {
	mu    sync.Mutex
	sched *framework.Scheduler
	nodes map[string]*dynamonode.StorageNode
	ids   []string
	log   *logrus.Entry
	opSeq int64
}

// New builds a cluster from cfg: a consistent hash ring over cfg.NodeIDs(),
// one StorageNode per peer sharing that ring, and a retry timer armed on
// each node (§4.6). log, if nil, falls back to the standard logger.
func New(cfg *clusterconfig.Config, log *logrus.Entry) *Cluster {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ids := cfg.NodeIDs()
	sched := framework.NewScheduler(log)
	r := ring.New(ids, cfg.RingReplicas)

	nodes := make(map[string]*dynamonode.StorageNode, len(ids))
	for _, id := range ids {
		n := dynamonode.NewStorageNode(id, sched, r, cfg.ReplicationFactor, cfg.ReadQuorum, cfg.WriteQuorum, log)
		nodes[id] = n
		sched.RegisterNode(n)
		n.StartRetryTimer()
	}

	return &Cluster{sched: sched, nodes: nodes, ids: ids, log: log}
}

func (c *Cluster) nextClientID(op string) string {
	c.opSeq++
	return fmt.Sprintf("http-%s-%d", op, c.opSeq)
}

// Put submits a single PUT through a fresh client node addressed at dest
// (or a random node, if dest is empty) and drives the shared scheduler
// until that client's own response arrives before returning — not to full
// quiescence, since the cluster's storage nodes carry a permanently
// repeating retry timer (§4.6) that never lets the scheduler go idle on
// its own. Mirrors the HTTP boundary's "construct a fresh client, submit
// one operation, await its completion" contract (§6).
func (c *Cluster) Put(key string, value any, dest string) (*PutResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextClientID("put")
	client := dynamonode.NewClientNode(id, c.sched, c.ids, c.log)
	c.sched.RegisterNode(client)
	defer c.sched.UnregisterNode(id)

	client.Put(key, nil, value, dest)
	c.sched.RunUntil(func() bool { return client.LastMsg() != nil })

	rsp, ok := client.LastMsg().(*message.ClientPutRsp)
	if !ok {
		return nil, fmt.Errorf("cluster: put did not complete")
	}
	return &PutResult{Coordinator: rsp.Coordinator, Clock: rsp.Clock}, nil
}

// Get submits a single GET the same way Put does.
func (c *Cluster) Get(key string, dest string) (*GetResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextClientID("get")
	client := dynamonode.NewClientNode(id, c.sched, c.ids, c.log)
	c.sched.RegisterNode(client)
	defer c.sched.UnregisterNode(id)

	client.Get(key, dest)
	c.sched.RunUntil(func() bool { return client.LastMsg() != nil })

	rsp, ok := client.LastMsg().(*message.ClientGetRsp)
	if !ok {
		return nil, fmt.Errorf("cluster: get did not complete")
	}
	return &GetResult{Coordinator: rsp.Coordinator, Values: rsp.Values, Clocks: rsp.Clocks}, nil
}

// NodeIDs returns the cluster's peer identities in bootstrap order.
func (c *Cluster) NodeIDs() []string {
	return c.ids
}

// Stats returns the operation counters summary for node id, or nil if no
// such node exists.
func (c *Cluster) Stats(id string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return nil
	}
	return n.Stats.Summary()
}
