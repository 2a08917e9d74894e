// Package message defines the tagged set of messages exchanged between
// clients, coordinators, and replicas, replacing runtime-type dispatch with
// a sealed Kind enum and a single type switch at each node's receiver.
package message

import "module/internal/vclock"

// Kind tags every message with its variant, so Node.RcvMsg can dispatch via
// one type switch instead of runtime type assertions scattered by caller.
type Kind int

const (
	KindClientPut Kind = iota
	KindClientGet
	KindClientPutRsp
	KindClientGetRsp
	KindPutReq
	KindPutRsp
	KindGetReq
	KindGetRsp
	KindPingReq
	KindPingRsp
)

func (k Kind) String() string {
	switch k {
	case KindClientPut:
		return "ClientPut"
	case KindClientGet:
		return "ClientGet"
	case KindClientPutRsp:
		return "ClientPutRsp"
	case KindClientGetRsp:
		return "ClientGetRsp"
	case KindPutReq:
		return "PutReq"
	case KindPutRsp:
		return "PutRsp"
	case KindGetReq:
		return "GetReq"
	case KindGetRsp:
		return "GetRsp"
	case KindPingReq:
		return "PingReq"
	case KindPingRsp:
		return "PingRsp"
	default:
		return "Unknown"
	}
}

// Message is the common envelope every variant satisfies. IsRequest tells
// the framework whether to arm a response-timer on send. TimerID is owned
// by the framework: it stamps the id of the response-timer armed for this
// message so the handler can address it later for cancellation.
type Message interface {
	Kind() Kind
	From() string
	To() string
	SetTo(string)
	IsRequest() bool
	Seqno() int64
	TimerID() uint64
	SetTimerID(uint64)
}

type envelope struct {
	from, to string
	seqno    int64
	timerID  uint64
}

func (e *envelope) From() string         { return e.from }
func (e *envelope) To() string           { return e.to }
func (e *envelope) SetTo(to string)      { e.to = to }
func (e *envelope) Seqno() int64         { return e.seqno }
func (e *envelope) TimerID() uint64      { return e.timerID }
func (e *envelope) SetTimerID(id uint64) { e.timerID = id }

// KeyedRequest is implemented by the internal requests that retry logic
// must re-address and re-send: PutReq and GetReq.
type KeyedRequest interface {
	Message
	GetKey() string
	CloneTo(dest string) Message
}

// ClientPut is submitted by a client node to initiate a write.
type ClientPut struct {
	envelope
	Key   string
	Value any
	Clock vclock.Clock
}

func NewClientPut(from, to, key string, value any, clock vclock.Clock, seqno int64) *ClientPut {
	return &ClientPut{envelope: envelope{from: from, to: to, seqno: seqno}, Key: key, Value: value, Clock: clock}
}

func (m *ClientPut) Kind() Kind      { return KindClientPut }
func (m *ClientPut) IsRequest() bool { return true }

// ClientGet is submitted by a client node to initiate a read.
type ClientGet struct {
	envelope
	Key string
}

func NewClientGet(from, to, key string, seqno int64) *ClientGet {
	return &ClientGet{envelope: envelope{from: from, to: to, seqno: seqno}, Key: key}
}

func (m *ClientGet) Kind() Kind      { return KindClientGet }
func (m *ClientGet) IsRequest() bool { return true }

// ClientPutRsp carries the coordinator's updated clock back to the client.
type ClientPutRsp struct {
	envelope
	Key         string
	Clock       vclock.Clock
	Coordinator string
}

func NewClientPutRsp(from, to, key string, clock vclock.Clock, coordinator string, seqno int64) *ClientPutRsp {
	return &ClientPutRsp{envelope: envelope{from: from, to: to, seqno: seqno}, Key: key, Clock: clock, Coordinator: coordinator}
}

func (m *ClientPutRsp) Kind() Kind      { return KindClientPutRsp }
func (m *ClientPutRsp) IsRequest() bool { return false }

// ClientGetRsp carries the coalesced value set back to the client.
type ClientGetRsp struct {
	envelope
	Key         string
	Values      []any
	Clocks      []vclock.Clock
	Coordinator string
}

func NewClientGetRsp(from, to, key string, values []any, clocks []vclock.Clock, coordinator string, seqno int64) *ClientGetRsp {
	return &ClientGetRsp{envelope: envelope{from: from, to: to, seqno: seqno}, Key: key, Values: values, Clocks: clocks, Coordinator: coordinator}
}

func (m *ClientGetRsp) Kind() Kind      { return KindClientGetRsp }
func (m *ClientGetRsp) IsRequest() bool { return false }

// PutReq is sent by a coordinator to a replica. Handoff, when non-empty,
// names failed nodes whose load this replica is covering; the replica
// records hint metadata for them.
type PutReq struct {
	envelope
	Key     string
	Value   any
	Clock   vclock.Clock
	Handoff []string
}

func NewPutReq(from, to, key string, value any, clock vclock.Clock, seqno int64, handoff []string) *PutReq {
	return &PutReq{envelope: envelope{from: from, to: to, seqno: seqno}, Key: key, Value: value, Clock: clock, Handoff: handoff}
}

func (m *PutReq) Kind() Kind      { return KindPutReq }
func (m *PutReq) IsRequest() bool { return true }
func (m *PutReq) GetKey() string  { return m.Key }

func (m *PutReq) CloneTo(dest string) Message {
	clone := &PutReq{
		envelope: envelope{from: m.from, to: dest, seqno: m.seqno},
		Key:      m.Key,
		Value:    m.Value,
		Clock:    m.Clock,
		Handoff:  m.Handoff,
	}
	return clone
}

// PutRsp acknowledges a PutReq.
type PutRsp struct {
	envelope
	Key   string
	Value any
	Clock vclock.Clock
}

func NewPutRsp(from, to, key string, value any, clock vclock.Clock, seqno int64) *PutRsp {
	return &PutRsp{envelope: envelope{from: from, to: to, seqno: seqno}, Key: key, Value: value, Clock: clock}
}

func (m *PutRsp) Kind() Kind      { return KindPutRsp }
func (m *PutRsp) IsRequest() bool { return false }

// GetReq is sent by a coordinator to a replica to fetch a key.
type GetReq struct {
	envelope
	Key string
}

func NewGetReq(from, to, key string, seqno int64) *GetReq {
	return &GetReq{envelope: envelope{from: from, to: to, seqno: seqno}, Key: key}
}

func (m *GetReq) Kind() Kind     { return KindGetReq }
func (m *GetReq) IsRequest() bool { return true }
func (m *GetReq) GetKey() string { return m.Key }

func (m *GetReq) CloneTo(dest string) Message {
	return &GetReq{envelope: envelope{from: m.from, to: dest, seqno: m.seqno}, Key: m.Key}
}

// GetRsp answers a GetReq. Value and Clock are nil when the key is absent.
type GetRsp struct {
	envelope
	Key   string
	Value any
	Clock vclock.Clock
}

func NewGetRsp(from, to, key string, value any, clock vclock.Clock, seqno int64) *GetRsp {
	return &GetRsp{envelope: envelope{from: from, to: to, seqno: seqno}, Key: key, Value: value, Clock: clock}
}

func (m *GetRsp) Kind() Kind      { return KindGetRsp }
func (m *GetRsp) IsRequest() bool { return false }

// PingReq probes a peer suspected failed.
type PingReq struct {
	envelope
}

func NewPingReq(from, to string, seqno int64) *PingReq {
	return &PingReq{envelope: envelope{from: from, to: to, seqno: seqno}}
}

func (m *PingReq) Kind() Kind      { return KindPingReq }
func (m *PingReq) IsRequest() bool { return true }

func (m *PingReq) CloneTo(dest string) Message {
	return &PingReq{envelope: envelope{from: m.from, to: dest, seqno: m.seqno}}
}

// PingRsp answers a PingReq, signalling recovery.
type PingRsp struct {
	envelope
}

func NewPingRsp(from, to string, seqno int64) *PingRsp {
	return &PingRsp{envelope: envelope{from: from, to: to, seqno: seqno}}
}

func (m *PingRsp) Kind() Kind      { return KindPingRsp }
func (m *PingRsp) IsRequest() bool { return false }
