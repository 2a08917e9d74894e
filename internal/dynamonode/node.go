// Package dynamonode implements the per-node state machine: coordinator
// PUT/GET fan-out and quorum collection, replica storage, failure
// detection with hinted handoff, and the client node that issues
// operations and retries on timeout.
package dynamonode

import (
	"fmt"

	"module/internal/framework"
	"module/internal/message"
	"module/internal/ring"
	"module/internal/vclock"

	"github.com/sirupsen/logrus"
)

// TimerPriority values; storage node retry probes fire ahead of client
// retries when deadlines coincide, mirroring the teacher's convention of
// giving background maintenance timers a lower (earlier) priority number
// than foreground request timers.
const (
	StorageNodeTimerPriority = 15
	ClientNodeTimerPriority  = 20
)

// RetryInterval is the simulated-time period between periodic ping probes
// of the oldest entry in failed_nodes.
const RetryInterval int64 = 200

// StorageNode is a single simulated replica / coordinator. Every storage
// node in a cluster runs identical logic; which role a node plays for a
// given key is decided per-request by where it falls on that key's
// preference list.
type StorageNode struct {
	id  string
	fw  framework.Framework
	ring *ring.Ring

	n, r, w int

	localStore map[string]vclock.Versioned

	pendingPutMsg map[int64]*message.ClientPut
	pendingPutRsp map[int64]map[string]bool

	pendingGetMsg map[int64]*message.ClientGet
	pendingGetRsp map[int64][]vclock.Versioned

	// pendingReq[kind][seqno] holds every outbound request sent for that
	// seqno, answered or not, keyed by request kind (PutReq or GetReq); the
	// seqno's entry is removed as a whole once its quorum is met.
	pendingReq map[message.Kind]map[int64][]message.KeyedRequest

	// failedNodes preserves duplicates: each append records one
	// independently observed failure, and a single PingRsp clears every
	// occurrence of its sender at once.
	failedNodes []string

	pendingHandoffs map[string]map[string]bool

	seq int64

	Stats *Stats

	log *logrus.Entry
}

// NewStorageNode constructs a node. The ring passed in is shared read-only
// across every node in the cluster; it is rebuilt (replaced wholesale) only
// when the node set changes, never mutated in place.
func NewStorageNode(id string, fw framework.Framework, r *ring.Ring, n, rQuorum, wQuorum int, log *logrus.Entry) *StorageNode {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &StorageNode{
		id:            id,
		fw:            fw,
		ring:          r,
		n:             n,
		r:             rQuorum,
		w:             wQuorum,
		localStore:    make(map[string]vclock.Versioned),
		pendingPutMsg: make(map[int64]*message.ClientPut),
		pendingPutRsp: make(map[int64]map[string]bool),
		pendingGetMsg: make(map[int64]*message.ClientGet),
		pendingGetRsp: make(map[int64][]vclock.Versioned),
		pendingReq: map[message.Kind]map[int64][]message.KeyedRequest{
			message.KindPutReq: {},
			message.KindGetReq: {},
		},
		pendingHandoffs: make(map[string]map[string]bool),
		Stats:           &Stats{},
		log:             log.WithField("node_id", id),
	}
}

func (n *StorageNode) ID() string          { return n.id }
func (n *StorageNode) TimerPriority() int  { return StorageNodeTimerPriority }

func (n *StorageNode) nextSeqno() int64 {
	n.seq++
	return n.seq
}

// StartRetryTimer arms the periodic failed-node probe. Call once after the
// node is registered with the scheduler.
func (n *StorageNode) StartRetryTimer() {
	n.fw.StartTimer(n, "retry", StorageNodeTimerPriority, RetryInterval, n.onRetryTimer)
}

func (n *StorageNode) onRetryTimer(reason string) {
	if len(n.failedNodes) > 0 {
		target := n.failedNodes[0]
		n.failedNodes = n.failedNodes[1:]
		ping := message.NewPingReq(n.id, target, n.nextSeqno())
		n.fw.SendMessage(ping)
	}
	n.fw.StartTimer(n, "retry", StorageNodeTimerPriority, RetryInterval, n.onRetryTimer)
}

// RcvMsg dispatches by message kind — the single type switch the tagged
// variant design replaces runtime-type dispatch with.
func (n *StorageNode) RcvMsg(msg message.Message) {
	switch m := msg.(type) {
	case *message.ClientPut:
		n.handleClientPut(m)
	case *message.ClientGet:
		n.handleClientGet(m)
	case *message.PutReq:
		n.handlePutReq(m)
	case *message.PutRsp:
		n.handlePutRsp(m)
	case *message.GetReq:
		n.handleGetReq(m)
	case *message.GetRsp:
		n.handleGetRsp(m)
	case *message.PingReq:
		n.handlePingReq(m)
	case *message.PingRsp:
		n.handlePingRsp(m)
	default:
		panic(fmt.Sprintf("dynamonode: unknown message kind %v at %s", msg.Kind(), n.id))
	}
}

func (n *StorageNode) handleClientPut(msg *message.ClientPut) {
	n.Stats.recordPut()
	preferred, avoided := n.ring.FindNodes(msg.Key, n.n, n.failedNodes)
	if len(avoided) > n.n {
		avoided = avoided[:n.n]
	}
	nonExtra := n.n - len(avoided)

	if !contains(preferred, n.id) {
		n.Stats.recordForward()
		n.log.WithField("key", msg.Key).Debug("forwarding put to coordinator")
		n.fw.ForwardMessage(msg, preferred[0])
		return
	}

	seqno := n.nextSeqno()
	clock := msg.Clock.Clone()
	if err := clock.Update(n.id, seqno); err != nil {
		panic(fmt.Sprintf("dynamonode: %v", err))
	}

	n.pendingPutMsg[seqno] = msg
	n.pendingPutRsp[seqno] = make(map[string]bool)
	n.pendingReq[message.KindPutReq][seqno] = nil

	for i, node := range preferred {
		var handoff []string
		if i >= nonExtra {
			handoff = avoided
		}
		req := message.NewPutReq(n.id, node, msg.Key, msg.Value, clock.Clone(), seqno, handoff)
		n.pendingReq[message.KindPutReq][seqno] = append(n.pendingReq[message.KindPutReq][seqno], req)
		n.fw.SendMessage(req)
	}
}

func (n *StorageNode) handleClientGet(msg *message.ClientGet) {
	n.Stats.recordGet()
	preferred, _ := n.ring.FindNodes(msg.Key, n.n, n.failedNodes)

	if !contains(preferred, n.id) {
		n.Stats.recordForward()
		n.log.WithField("key", msg.Key).Debug("forwarding get to coordinator")
		n.fw.ForwardMessage(msg, preferred[0])
		return
	}

	seqno := n.nextSeqno()
	n.pendingGetMsg[seqno] = msg
	n.pendingGetRsp[seqno] = nil
	n.pendingReq[message.KindGetReq][seqno] = nil

	for _, node := range preferred {
		req := message.NewGetReq(n.id, node, msg.Key, seqno)
		n.pendingReq[message.KindGetReq][seqno] = append(n.pendingReq[message.KindGetReq][seqno], req)
		n.fw.SendMessage(req)
	}
}

func (n *StorageNode) handlePutRsp(msg *message.PutRsp) {
	rspSet, ok := n.pendingPutRsp[msg.Seqno()]
	if !ok {
		return // superfluous reply
	}
	rspSet[msg.From()] = true
	if len(rspSet) < n.w {
		return
	}

	clientMsg := n.pendingPutMsg[msg.Seqno()]
	delete(n.pendingPutRsp, msg.Seqno())
	delete(n.pendingPutMsg, msg.Seqno())
	delete(n.pendingReq[message.KindPutReq], msg.Seqno())

	n.Stats.recordSuccessfulPut()
	rsp := message.NewClientPutRsp(n.id, clientMsg.From(), clientMsg.Key, msg.Clock.Clone(), n.id, clientMsg.Seqno())
	n.fw.SendMessage(rsp)
}

func (n *StorageNode) handleGetRsp(msg *message.GetRsp) {
	clientMsg, ok := n.pendingGetMsg[msg.Seqno()]
	if !ok {
		return // superfluous reply
	}
	n.pendingGetRsp[msg.Seqno()] = append(n.pendingGetRsp[msg.Seqno()], vclock.Versioned{Value: msg.Value, Clock: msg.Clock})
	if len(n.pendingGetRsp[msg.Seqno()]) < n.r {
		return
	}

	versions := n.pendingGetRsp[msg.Seqno()]
	delete(n.pendingGetRsp, msg.Seqno())
	delete(n.pendingGetMsg, msg.Seqno())
	delete(n.pendingReq[message.KindGetReq], msg.Seqno())

	present := make([]vclock.Versioned, 0, len(versions))
	for _, v := range versions {
		if v.Value != nil {
			present = append(present, v)
		}
	}
	coalesced := vclock.Coalesce(present)

	values := make([]any, len(coalesced))
	clocks := make([]vclock.Clock, len(coalesced))
	for i, c := range coalesced {
		values[i] = c.Value
		clocks[i] = c.Clock
	}

	n.Stats.recordSuccessfulGet()
	rsp := message.NewClientGetRsp(n.id, clientMsg.From(), clientMsg.Key, values, clocks, n.id, clientMsg.Seqno())
	n.fw.SendMessage(rsp)
}

func (n *StorageNode) handlePutReq(msg *message.PutReq) {
	n.localStore[msg.Key] = vclock.Versioned{Value: msg.Value, Clock: msg.Clock}

	if len(msg.Handoff) > 0 {
		for _, failedID := range msg.Handoff {
			n.failedNodes = append(n.failedNodes, failedID)
			if n.pendingHandoffs[failedID] == nil {
				n.pendingHandoffs[failedID] = make(map[string]bool)
			}
			n.pendingHandoffs[failedID][msg.Key] = true
			n.Stats.recordHintStored()
		}
	}

	rsp := message.NewPutRsp(n.id, msg.From(), msg.Key, msg.Value, msg.Clock, msg.Seqno())
	n.fw.SendMessage(rsp)
}

func (n *StorageNode) handleGetReq(msg *message.GetReq) {
	v, ok := n.localStore[msg.Key]
	if !ok {
		n.fw.SendMessage(message.NewGetRsp(n.id, msg.From(), msg.Key, nil, nil, msg.Seqno()))
		return
	}
	n.fw.SendMessage(message.NewGetRsp(n.id, msg.From(), msg.Key, v.Value, v.Clock.Clone(), msg.Seqno()))
}

func (n *StorageNode) handlePingReq(msg *message.PingReq) {
	n.fw.SendMessage(message.NewPingRsp(n.id, msg.From(), msg.Seqno()))
}

func (n *StorageNode) handlePingRsp(msg *message.PingRsp) {
	recovered := msg.From()
	n.removeFailedNode(recovered)

	keys := n.pendingHandoffs[recovered]
	for key := range keys {
		v, ok := n.localStore[key]
		if !ok {
			continue
		}
		req := message.NewPutReq(n.id, recovered, key, v.Value, v.Clock.Clone(), n.nextSeqno(), nil)
		n.fw.SendMessage(req)
		n.Stats.recordHintDelivered()
	}
	delete(n.pendingHandoffs, recovered)
}

func (n *StorageNode) removeFailedNode(id string) {
	out := n.failedNodes[:0]
	for _, f := range n.failedNodes {
		if f != id {
			out = append(out, f)
		}
	}
	n.failedNodes = out
}

// RspTimerPop handles a missed response to a request this node sent as a
// coordinator (PutReq/GetReq) or as the periodic prober (PingReq).
func (n *StorageNode) RspTimerPop(req message.Message) {
	failedDest := req.To()

	if req.Kind() == message.KindPingReq {
		// The probe itself went unanswered: the peer is still down. Re-append
		// it to failed_nodes so the next retry tick probes it again — the
		// ping was popped off failed_nodes to be sent, so without this the
		// peer would be dropped from tracking after a single failed probe.
		n.failedNodes = append(n.failedNodes, failedDest)
		return
	}

	n.log.WithField("peer", failedDest).Info("treating peer as failed")
	n.failedNodes = append(n.failedNodes, failedDest)

	cancelled := n.fw.CancelTimersTo(failedDest)
	pending := append([]message.Message{req}, cancelled...)
	for _, r := range pending {
		kr, ok := r.(message.KeyedRequest)
		if !ok {
			continue
		}
		n.retryRequest(kr)
	}
}

func (n *StorageNode) retryRequest(req message.KeyedRequest) {
	bucket, ok := n.pendingReq[req.Kind()]
	if !ok {
		return
	}
	inFlight, ok := bucket[req.Seqno()]
	if !ok {
		return // already completed; nothing left to retry
	}

	preferred, _ := n.ring.FindNodes(req.GetKey(), n.n, n.failedNodes)

	sentTo := make(map[string]bool, len(inFlight)+1)
	for _, sent := range inFlight {
		sentTo[sent.To()] = true
	}
	sentTo[req.To()] = true

	for _, candidate := range preferred {
		if sentTo[candidate] {
			continue
		}
		clone := req.CloneTo(candidate).(message.KeyedRequest)
		bucket[req.Seqno()] = append(bucket[req.Seqno()], clone)
		n.fw.SendMessage(clone)
		return
	}
}

func contains(nodes []string, target string) bool {
	for _, n := range nodes {
		if n == target {
			return true
		}
	}
	return false
}
