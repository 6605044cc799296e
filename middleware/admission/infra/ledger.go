package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

const (
	// DefaultViolationWindow é a janela móvel considerada pelo ledger.
	DefaultViolationWindow = 1 * time.Hour
	// DefaultBlockThreshold é o número de violações dentro da janela que
	// converte o throttle em bloqueio temporário.
	DefaultBlockThreshold = 10
	// DefaultBlockDuration é a duração do bloqueio disparado pela escalada.
	DefaultBlockDuration = 1 * time.Hour
)

type violation struct {
	action domain.Action
	at     time.Time
}

// Ledger acumula violações por identidade em janela móvel e escala para a
// BlockList quando o total podado atinge o limiar.
//
// A regra de escalada não distingue a causa: estouros de limite, rejeições
// de user-agent e qualquer outro evento suspeito reportado passam pelo mesmo
// ponto de entrada, guardando apenas o nome da ação para diagnóstico.
type Ledger struct {
	mu      sync.Mutex
	entries map[domain.Identity][]violation

	window    time.Duration
	threshold int
	blockFor  time.Duration
	blocks    domain.BlockList
}

type LedgerOption func(*Ledger)

func WithViolationWindow(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.window = d }
}

func WithBlockThreshold(n int) LedgerOption {
	return func(l *Ledger) { l.threshold = n }
}

func WithBlockDuration(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.blockFor = d }
}

func NewLedger(blocks domain.BlockList, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		entries:   make(map[domain.Identity][]violation),
		window:    DefaultViolationWindow,
		threshold: DefaultBlockThreshold,
		blockFor:  DefaultBlockDuration,
		blocks:    blocks,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record implementa domain.ViolationLedger.
func (l *Ledger) Record(id domain.Identity, action domain.Action, now time.Time) {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	recs := l.entries[id]
	i := 0
	for i < len(recs) && !recs[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		recs = append(recs[:0], recs[i:]...)
	}
	recs = append(recs, violation{action: action, at: now})
	l.entries[id] = recs
	escalate := len(recs) >= l.threshold
	l.mu.Unlock()

	// fora do lock do ledger: a BlockList tem o próprio lock
	if escalate && l.blocks != nil {
		l.blocks.Block(id, now, l.blockFor)
	}
}

// Violations retorna quantas violações a identidade tem dentro da janela.
func (l *Ledger) Violations(id domain.Identity, now time.Time) int {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, rec := range l.entries[id] {
		if rec.at.After(cutoff) {
			n++
		}
	}
	return n
}

// ActiveIdentities implementa domain.ViolationLedger.
func (l *Ledger) ActiveIdentities(now time.Time) int {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, recs := range l.entries {
		for _, rec := range recs {
			if rec.at.After(cutoff) {
				n++
				break
			}
		}
	}
	return n
}

// Sweep poda as sequências e remove identidades sem violações vivas.
func (l *Ledger) Sweep(now time.Time) {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, recs := range l.entries {
		i := 0
		for i < len(recs) && !recs[i].at.After(cutoff) {
			i++
		}
		if i == len(recs) {
			delete(l.entries, id)
			continue
		}
		if i > 0 {
			l.entries[id] = append(recs[:0], recs[i:]...)
		}
	}
}
