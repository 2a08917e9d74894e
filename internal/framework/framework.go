// Package framework provides the deterministic, single-threaded event
// scheduling substrate that delivers messages and fires timers for the
// simulated cluster. It is an external collaborator from the core's point
// of view (the core only depends on the Framework/Node contracts) but is
// implemented here as the reference substrate the simulation and its tests
// run against.
package framework

import (
	"container/heap"
	"sort"
	"strconv"

	"module/internal/message"

	"github.com/sirupsen/logrus"
)

// Node is the contract every simulated participant (storage node or client
// node) must satisfy.
type Node interface {
	ID() string
	RcvMsg(msg message.Message)
	RspTimerPop(req message.Message)
	// TimerPriority is the tie-break value used when this node's timers
	// share a deadline with another node's; lower fires first.
	TimerPriority() int
}

// Framework is the contract the core consumes: it never touches the
// scheduler's internals directly.
type Framework interface {
	SendMessage(msg message.Message)
	ForwardMessage(msg message.Message, newDest string)
	CancelTimersTo(node string) []message.Message
	CancelTimer(msg message.Message)
	StartTimer(owner Node, reason string, priority int, delay int64, callback func(reason string))
}

// ResponseTimeout is the simulated-time delay before an unanswered request
// fires RspTimerPop on its sender.
const ResponseTimeout int64 = 100

type timerEntry struct {
	deadline int64
	priority int
	seq      int // insertion order, final tie-break
	owner    Node
	callback func(reason string)
	reason   string
	// reqMsg is set for response-timers armed implicitly by SendMessage;
	// nil for application-scheduled timers (e.g. periodic retry probes).
	reqMsg  message.Message
	active  bool
	timerID uint64
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Scheduler is the reference Framework + delivery loop implementation.
// It is single-threaded and deterministic: no goroutines are spawned, and
// the caller drives progress entirely through Schedule or RunUntil.
type Scheduler struct {
	nodes map[string]Node
	queue []message.Message
	heap  timerHeap

	now         int64
	nextSeq     int
	nextTimer   uint64
	timersByID  map[uint64]*timerEntry
	// timersByKey indexes pending response-timers by the (requester,
	// destination, seqno) triple so an arriving response — a distinct
	// Message value from the request it answers — can find and cancel the
	// timer armed for that request.
	timersByKey map[string]*timerEntry

	blocked map[string]bool

	log *logrus.Entry
}

func timerKey(owner, peer string, seqno int64) string {
	return owner + "|" + peer + "|" + strconv.FormatInt(seqno, 10)
}

// NewScheduler constructs an empty scheduler. Register nodes with
// RegisterNode before sending messages addressed to them.
func NewScheduler(log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		nodes:       make(map[string]Node),
		timersByID:  make(map[uint64]*timerEntry),
		timersByKey: make(map[string]*timerEntry),
		blocked:     make(map[string]bool),
		log:         log,
	}
}

// RegisterNode makes a node reachable by its ID.
func (s *Scheduler) RegisterNode(n Node) {
	s.nodes[n.ID()] = n
}

// UnregisterNode removes a node from the reachable set. Used to retire the
// short-lived client node a single HTTP request constructs, once its
// operation has completed, so the registry does not grow without bound
// across the process lifetime.
func (s *Scheduler) UnregisterNode(id string) {
	delete(s.nodes, id)
}

// NodeCount reports how many nodes are currently registered.
func (s *Scheduler) NodeCount() int {
	return len(s.nodes)
}

// BlockDestination makes every message addressed to dest undeliverable —
// it is still enqueued and its response-timer still arms, but RcvMsg is
// never invoked, simulating an unreachable peer for test scenarios.
func (s *Scheduler) BlockDestination(dest string) {
	s.blocked[dest] = true
}

// UnblockDestination reverses BlockDestination.
func (s *Scheduler) UnblockDestination(dest string) {
	delete(s.blocked, dest)
}

// SendMessage enqueues msg for delivery. If msg is a request, a
// response-timer is armed at the sender using the sender's declared
// priority; it is cancelled automatically when CancelTimer observes the
// matching response, or in bulk via CancelTimersTo.
func (s *Scheduler) SendMessage(msg message.Message) {
	s.queue = append(s.queue, msg)
	if msg.IsRequest() {
		sender, ok := s.nodes[msg.From()]
		if !ok {
			return
		}
		entry := &timerEntry{
			deadline: s.now + ResponseTimeout,
			priority: sender.TimerPriority(),
			seq:      s.nextSeq,
			owner:    sender,
			reqMsg:   msg,
			active:   true,
		}
		s.nextSeq++
		s.nextTimer++
		entry.timerID = s.nextTimer
		msg.SetTimerID(entry.timerID)
		s.timersByID[entry.timerID] = entry
		s.timersByKey[timerKey(msg.From(), msg.To(), msg.Seqno())] = entry
		heap.Push(&s.heap, entry)
	}
}

// ForwardMessage redirects msg to newDest, preserving From. Any
// response-timer armed for msg's previous destination is retired first, so
// exactly one timer tracks the request's current destination — whichever
// node ultimately handles it is the one whose non-response triggers
// RspTimerPop.
func (s *Scheduler) ForwardMessage(msg message.Message, newDest string) {
	oldKey := timerKey(msg.From(), msg.To(), msg.Seqno())
	if entry, ok := s.timersByKey[oldKey]; ok {
		entry.active = false
		delete(s.timersByKey, oldKey)
		delete(s.timersByID, entry.timerID)
	}
	msg.SetTo(newDest)
	s.SendMessage(msg)
}

// CancelTimer cancels the response-timer awaiting the response that msg
// represents — msg.From()/To() are the response's sender/recipient, the
// inverse of the original request's, so the lookup key swaps them back.
func (s *Scheduler) CancelTimer(msg message.Message) {
	key := timerKey(msg.To(), msg.From(), msg.Seqno())
	entry, ok := s.timersByKey[key]
	if !ok {
		return
	}
	entry.active = false
	delete(s.timersByKey, key)
	delete(s.timersByID, entry.timerID)
}

// CancelTimersTo cancels every outstanding response-timer whose request is
// addressed to node, returning the requests that were cancelled in the
// order their timers were armed. Used during failure escalation to find
// every sibling request stranded by the same destination.
func (s *Scheduler) CancelTimersTo(node string) []message.Message {
	var cancelled []message.Message
	for id, entry := range s.timersByID {
		if !entry.active || entry.reqMsg == nil {
			continue
		}
		if entry.reqMsg.To() == node {
			entry.active = false
			cancelled = append(cancelled, entry.reqMsg)
			delete(s.timersByID, id)
			delete(s.timersByKey, timerKey(entry.reqMsg.From(), entry.reqMsg.To(), entry.reqMsg.Seqno()))
		}
	}
	sort.Slice(cancelled, func(i, j int) bool {
		return cancelled[i].TimerID() < cancelled[j].TimerID()
	})
	return cancelled
}

// StartTimer arms a logical timer that invokes callback(reason) on owner
// after delay simulated-time units, ordered by (deadline, priority,
// insertion order) against every other pending timer.
func (s *Scheduler) StartTimer(owner Node, reason string, priority int, delay int64, callback func(reason string)) {
	entry := &timerEntry{
		deadline: s.now + delay,
		priority: priority,
		seq:      s.nextSeq,
		owner:    owner,
		callback: callback,
		reason:   reason,
		active:   true,
	}
	s.nextSeq++
	heap.Push(&s.heap, entry)
}

// Schedule drains the message queue fully, then fires the next timer,
// repeating until both are empty. Delivering a message never arms a new
// message without that enqueue being observed before the next timer pop,
// guaranteeing FIFO-per-pair delivery and that no handler interleaves with
// another's execution.
//
// Schedule is only safe to call on a scheduler with no perpetually
// self-re-arming timers (the retry probe started by
// dynamonode.StorageNode.StartRetryTimer never goes idle); use RunUntil
// against a cluster that carries one.
func (s *Scheduler) Schedule() {
	s.RunUntil(func() bool { return false })
}

// RunUntil drives delivery and timer-firing exactly as Schedule does, but
// stops as soon as done reports true, even with messages or timers still
// pending. This is what lets a single request-scoped operation be driven
// to its own completion on a cluster whose storage nodes carry a
// permanently repeating retry timer (§4.6): the operation's own messages
// are processed in FIFO order same as Schedule, and everything left
// outstanding — including the retry timer — simply waits in the queue or
// heap for the next call.
func (s *Scheduler) RunUntil(done func() bool) {
	for (len(s.queue) > 0 || s.heap.Len() > 0) && !done() {
		for len(s.queue) > 0 && !done() {
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.deliver(msg)
		}
		if done() || s.heap.Len() == 0 {
			continue
		}
		entry := heap.Pop(&s.heap).(*timerEntry)
		if !entry.active {
			continue
		}
		if entry.reqMsg != nil {
			delete(s.timersByID, entry.timerID)
		}
		s.now = entry.deadline
		if entry.reqMsg != nil {
			entry.owner.RspTimerPop(entry.reqMsg)
		} else if entry.callback != nil {
			entry.callback(entry.reason)
		}
	}
}

func (s *Scheduler) deliver(msg message.Message) {
	if s.blocked[msg.To()] {
		return
	}
	node, ok := s.nodes[msg.To()]
	if !ok {
		s.log.WithField("to", msg.To()).Warn("dropping message to unknown node")
		return
	}
	if !msg.IsRequest() {
		// A response: cancel the sender-side timer that was waiting for it.
		s.CancelTimer(msg)
	}
	node.RcvMsg(msg)
}
