package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// BlockList mantém, por identidade, o instante de desbloqueio.
// Entradas expiradas são removidas na primeira consulta após expirar,
// ou pela varredura periódica.
type BlockList struct {
	mu      sync.Mutex
	entries map[domain.Identity]time.Time // unblockAt
}

func NewBlockList() *BlockList {
	return &BlockList{entries: make(map[domain.Identity]time.Time)}
}

// Block implementa domain.BlockList. O bloqueio mais recente vence:
// durações não acumulam.
func (b *BlockList) Block(id domain.Identity, now time.Time, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[id] = now.Add(d)
}

// IsBlocked implementa domain.BlockList.
func (b *BlockList) IsBlocked(id domain.Identity, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.entries[id]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(b.entries, id)
		return false
	}
	return true
}

// RemainingBlock implementa domain.BlockList. Assim como IsBlocked, remove
// preguiçosamente a entrada se já expirou.
func (b *BlockList) RemainingBlock(id domain.Identity, now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.entries[id]
	if !ok {
		return 0
	}
	if !now.Before(until) {
		delete(b.entries, id)
		return 0
	}
	return until.Sub(now)
}

// ActiveBlocks implementa domain.BlockList.
func (b *BlockList) ActiveBlocks(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, until := range b.entries {
		if now.Before(until) {
			n++
		}
	}
	return n
}

// Sweep remove entradas já expiradas.
func (b *BlockList) Sweep(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, until := range b.entries {
		if !now.Before(until) {
			delete(b.entries, id)
		}
	}
}
