package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// WindowStore é a implementação em memória das janelas deslizantes por
// (identidade, ação), com poda preguiçosa no acesso e varredura periódica.
//
// A poda é feita sempre pelo início da sequência: como now é não-decrescente
// por chamada, inserção em ordem == ordem temporal, e expirar custa
// O(expirados) em vez de um scan completo.
type WindowStore struct {
	mu      sync.Mutex
	windows map[windowKey]*windowEntry
	idleTTL time.Duration
}

type windowKey struct {
	id     domain.Identity
	action domain.Action
}

type windowEntry struct {
	stamps []time.Time
	// window guarda a duração da última política aplicada à chave, para a
	// varredura e a contagem de janelas ativas saberem o corte de expiração.
	window   time.Duration
	lastSeen time.Time
}

type WindowOption func(*WindowStore)

// WithWindowIdleTTL ajusta por quanto tempo uma janela vazia sobrevive antes
// de ser removida pela varredura.
func WithWindowIdleTTL(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.idleTTL = d }
}

func NewWindowStore(opts ...WindowOption) *WindowStore {
	s := &WindowStore{
		windows: make(map[windowKey]*windowEntry),
		idleTTL: 1 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryAdmit implementa domain.WindowStore.
func (s *WindowStore) TryAdmit(id domain.Identity, action domain.Action, p domain.Policy, now time.Time) (bool, time.Duration) {
	cutoff := now.Add(-p.Window)

	s.mu.Lock()
	defer s.mu.Unlock()

	k := windowKey{id: id, action: action}
	ent, ok := s.windows[k]
	if !ok {
		ent = &windowEntry{}
		s.windows[k] = ent
	}
	ent.window = p.Window
	ent.lastSeen = now

	ent.stamps = pruneFront(ent.stamps, cutoff)

	if len(ent.stamps) >= p.MaxRequests {
		// a próxima vaga abre quando o timestamp mais antigo sair da janela
		retry := p.Window
		if len(ent.stamps) > 0 {
			retry = ent.stamps[0].Add(p.Window).Sub(now)
		}
		return false, retry
	}
	ent.stamps = append(ent.stamps, now)
	return true, 0
}

// ActiveWindows implementa domain.WindowStore.
func (s *WindowStore) ActiveWindows(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, ent := range s.windows {
		cutoff := now.Add(-ent.window)
		for _, ts := range ent.stamps {
			if ts.After(cutoff) {
				n++
				break
			}
		}
	}
	return n
}

// Sweep poda todas as janelas e remove as que ficaram vazias por mais tempo
// que o idleTTL. Não é necessária para a correção das decisões (todo lookup
// se auto-poda), apenas para limitar a memória total.
func (s *WindowStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.windows {
		ent.stamps = pruneFront(ent.stamps, now.Add(-ent.window))
		if len(ent.stamps) == 0 && now.Sub(ent.lastSeen) > s.idleTTL {
			delete(s.windows, k)
		}
	}
}

// Len retorna o número de janelas retidas (vazias incluídas).
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// pruneFront descarta do início tudo que não é posterior ao corte,
// reaproveitando o array subjacente.
func pruneFront(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
