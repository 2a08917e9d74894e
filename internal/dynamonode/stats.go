package dynamonode

import "sync"

// Stats tracks per-node operation counters, adapted from the teacher's
// NodeStats to the simulated protocol (no on-disk size estimation, since
// local_store never touches a disk).
type Stats struct {
	mu sync.Mutex

	PutCount       int64
	GetCount       int64
	SuccessfulPuts int64
	SuccessfulGets int64
	HintsStored    int64
	HintsDelivered int64
	Forwarded      int64
}

func (s *Stats) recordPut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCount++
}

func (s *Stats) recordSuccessfulPut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SuccessfulPuts++
}

func (s *Stats) recordGet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCount++
}

func (s *Stats) recordSuccessfulGet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SuccessfulGets++
}

func (s *Stats) recordForward() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Forwarded++
}

func (s *Stats) recordHintStored() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HintsStored++
}

func (s *Stats) recordHintDelivered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HintsDelivered++
}

// Summary mirrors the shape of the teacher's GetSummary for observability
// endpoints, trimmed to fields this simulation actually tracks.
func (s *Stats) Summary() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"put_count":       s.PutCount,
		"get_count":       s.GetCount,
		"successful_puts": s.SuccessfulPuts,
		"successful_gets": s.SuccessfulGets,
		"forwarded":       s.Forwarded,
		"hints_stored":    s.HintsStored,
		"hints_delivered": s.HintsDelivered,
	}
}
