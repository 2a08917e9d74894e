package framework

import (
	"testing"

	"module/internal/message"

	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
)

// recorder is a minimal Node that logs everything it receives, for
// exercising the scheduler's delivery and timer semantics directly.
type recorder struct {
	id        string
	priority  int
	received  []message.Message
	timeouts  []message.Message
	onRcv     func(msg message.Message)
}

func (r *recorder) ID() string         { return r.id }
func (r *recorder) TimerPriority() int { return r.priority }
func (r *recorder) RcvMsg(msg message.Message) {
	r.received = append(r.received, msg)
	if r.onRcv != nil {
		r.onRcv(msg)
	}
}
func (r *recorder) RspTimerPop(req message.Message) {
	r.timeouts = append(r.timeouts, req)
}

func newEntry() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestFIFODeliveryOrder(t *testing.T) {
	s := NewScheduler(newEntry())
	a := &recorder{id: "A"}
	b := &recorder{id: "B"}
	s.RegisterNode(a)
	s.RegisterNode(b)

	s.SendMessage(message.NewPingRsp("B", "A", 1))
	s.SendMessage(message.NewPingRsp("B", "A", 2))
	s.SendMessage(message.NewPingRsp("B", "A", 3))
	s.Schedule()

	assert.Equal(t, len(a.received), 3)
	assert.Equal(t, a.received[0].Seqno(), int64(1))
	assert.Equal(t, a.received[1].Seqno(), int64(2))
	assert.Equal(t, a.received[2].Seqno(), int64(3))
}

func TestUnansweredRequestFiresTimeout(t *testing.T) {
	s := NewScheduler(newEntry())
	a := &recorder{id: "A", priority: 10}
	s.RegisterNode(a)
	// B is never registered, so the PingReq to it is simply dropped and no
	// PingRsp ever answers — the response-timer must still fire.
	req := message.NewPingReq("A", "B", 1)
	s.SendMessage(req)
	s.Schedule()

	assert.Equal(t, len(a.timeouts), 1)
	assert.Equal(t, a.timeouts[0].Seqno(), int64(1))
}

func TestResponseCancelsTimer(t *testing.T) {
	s := NewScheduler(newEntry())
	a := &recorder{id: "A", priority: 10}
	b := &recorder{id: "B", priority: 10}
	s.RegisterNode(a)
	s.RegisterNode(b)
	b.onRcv = func(msg message.Message) {
		s.SendMessage(message.NewPingRsp("B", "A", msg.Seqno()))
	}

	s.SendMessage(message.NewPingReq("A", "B", 1))
	s.Schedule()

	assert.Equal(t, len(a.timeouts), 0)
	assert.Equal(t, len(a.received), 1)
}

func TestBlockDestinationDropsDelivery(t *testing.T) {
	s := NewScheduler(newEntry())
	a := &recorder{id: "A", priority: 10}
	b := &recorder{id: "B", priority: 10}
	s.RegisterNode(a)
	s.RegisterNode(b)
	s.BlockDestination("B")

	s.SendMessage(message.NewPingReq("A", "B", 1))
	s.Schedule()

	assert.Equal(t, len(b.received), 0)
	assert.Equal(t, len(a.timeouts), 1)

	s.UnblockDestination("B")
	s.SendMessage(message.NewPingReq("A", "B", 2))
	s.Schedule()
	assert.Equal(t, len(b.received), 1)
}

func TestForwardMessageCancelsOriginalTimer(t *testing.T) {
	s := NewScheduler(newEntry())
	a := &recorder{id: "A", priority: 10}
	b := &recorder{id: "B", priority: 10}
	c := &recorder{id: "C", priority: 10}
	s.RegisterNode(a)
	s.RegisterNode(b)
	s.RegisterNode(c)

	// B forwards everything it receives to C; C answers directly.
	b.onRcv = func(msg message.Message) {
		s.ForwardMessage(msg, "C")
	}
	c.onRcv = func(msg message.Message) {
		s.SendMessage(message.NewPingRsp("C", msg.From(), msg.Seqno()))
	}

	s.SendMessage(message.NewPingReq("A", "B", 1))
	s.Schedule()

	// The response came from C, answering the forwarded request, and must
	// have cancelled A's original timer — not left it to fire later.
	assert.Equal(t, len(a.timeouts), 0)
	assert.Equal(t, len(a.received), 1)
	assert.Equal(t, a.received[0].From(), "C")
}

func TestStartTimerOrdersByDeadlineThenPriority(t *testing.T) {
	s := NewScheduler(newEntry())
	a := &recorder{id: "A", priority: 1}
	s.RegisterNode(a)

	var order []string
	s.StartTimer(a, "third", 5, 20, func(reason string) { order = append(order, reason) })
	s.StartTimer(a, "second", 3, 10, func(reason string) { order = append(order, reason) })
	s.StartTimer(a, "first", 1, 10, func(reason string) { order = append(order, reason) })
	s.Schedule()

	assert.DeepEqual(t, order, []string{"first", "second", "third"})
}
