package infra

import (
	"context"
	"sync"

	"admission-gateway/middleware/admission/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes, desenvolvimento e o endpoint de stats do gateway.
//
// Não faz expiração e não é indicada para retenção longa.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      Counters
	byReason   map[domain.Reason]int64
	byAction   map[domain.Action]Counters
	byIdentity map[domain.Identity]Counters

	trackIdentities bool
}

type MemoryStatsOption func(*MemoryStatsStore)

// WithTrackIdentities habilita contadores por identidade.
// Cuidado com cardinalidade em tráfego aberto.
func WithTrackIdentities(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackIdentities = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byReason:   make(map[domain.Reason]int64),
		byAction:   make(map[domain.Action]Counters),
		byIdentity: make(map[domain.Identity]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byReason[ev.Reason]++

	c := s.byAction[ev.Action]
	if ev.Allowed {
		s.total.Allowed++
		c.Allowed++
	} else {
		s.total.Denied++
		c.Denied++
	}
	s.byAction[ev.Action] = c

	if s.trackIdentities {
		k := s.byIdentity[ev.Identity]
		if ev.Allowed {
			k.Allowed++
		} else {
			k.Denied++
		}
		s.byIdentity[ev.Identity] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByReason() map[domain.Reason]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Reason]int64, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByAction() map[domain.Action]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Action]Counters, len(s.byAction))
	for k, v := range s.byAction {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByIdentity() map[domain.Identity]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Identity]Counters, len(s.byIdentity))
	for k, v := range s.byIdentity {
		out[k] = v
	}
	return out
}
