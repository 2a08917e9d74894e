package dynamonode

import (
	"math/rand"

	"module/internal/framework"
	"module/internal/message"
	"module/internal/vclock"

	"github.com/sirupsen/logrus"
)

// ClientNode issues a single PUT or GET and retries the whole operation
// against a freshly chosen destination on timeout. It holds no storage of
// its own.
type ClientNode struct {
	id       string
	fw       framework.Framework
	allNodes []string
	seq      int64
	log      *logrus.Entry

	// lastMsg is the most recent message this node has received — the HTTP
	// boundary inspects it once the scheduler has delivered the operation's
	// response to build its own response. This is the per-operation
	// completion handle's observation point; see cluster.Cluster for the
	// handle itself.
	lastMsg message.Message
}

// NewClientNode constructs a client addressed as id, able to pick a random
// destination from allNodes when none is specified.
func NewClientNode(id string, fw framework.Framework, allNodes []string, log *logrus.Entry) *ClientNode {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ClientNode{id: id, fw: fw, allNodes: allNodes, log: log.WithField("node_id", id)}
}

func (c *ClientNode) ID() string         { return c.id }
func (c *ClientNode) TimerPriority() int { return ClientNodeTimerPriority }

func (c *ClientNode) nextSeqno() int64 {
	c.seq++
	return c.seq
}

func (c *ClientNode) randomDest() string {
	return c.allNodes[rand.Intn(len(c.allNodes))]
}

// Put issues a PUT. metadata is the sequence of clocks the caller has
// observed for key so far; a nil or empty sequence starts from an empty
// clock, otherwise the clocks are converged — a PUT always asserts
// causal convergence over everything the caller has seen. dest, if
// non-empty, pins the initial destination; otherwise one is chosen
// uniformly at random.
func (c *ClientNode) Put(key string, metadata []vclock.Clock, value any, dest string) *message.ClientPut {
	var clock vclock.Clock
	if len(metadata) == 0 {
		clock = vclock.New()
	} else {
		clock = vclock.Converge(metadata...)
	}
	if dest == "" {
		dest = c.randomDest()
	}
	msg := message.NewClientPut(c.id, dest, key, value, clock, c.nextSeqno())
	c.fw.SendMessage(msg)
	return msg
}

// Get issues a GET against dest, or a random node if dest is empty.
func (c *ClientNode) Get(key string, dest string) *message.ClientGet {
	if dest == "" {
		dest = c.randomDest()
	}
	msg := message.NewClientGet(c.id, dest, key, c.nextSeqno())
	c.fw.SendMessage(msg)
	return msg
}

// RcvMsg records the terminal response so the caller can inspect it once
// Schedule() returns.
func (c *ClientNode) RcvMsg(msg message.Message) {
	c.lastMsg = msg
}

// LastMsg returns the most recently received response, or nil if none has
// arrived yet.
func (c *ClientNode) LastMsg() message.Message {
	return c.lastMsg
}

// RspTimerPop retries the entire operation against a fresh random
// destination. The clock resent is always the client's original
// pre-coordinator-update clock: retries rely on vector-clock coalescing at
// the coordinator for idempotence, not on remembering any partial progress.
func (c *ClientNode) RspTimerPop(req message.Message) {
	switch m := req.(type) {
	case *message.ClientPut:
		c.log.WithField("key", m.Key).Info("put timed out, retrying")
		c.Put(m.Key, []vclock.Clock{m.Clock}, m.Value, "")
	case *message.ClientGet:
		c.log.WithField("key", m.Key).Info("get timed out, retrying")
		c.Get(m.Key, "")
	}
}
