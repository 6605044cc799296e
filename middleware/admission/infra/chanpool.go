package infra

import "context"

// ChanPool é um pool de vagas baseado em channel. A capacidade do channel
// é o teto de concorrência; InUse/Cap expõem a saturação para snapshots.
type ChanPool struct {
	sem chan struct{}
}

// NewSlotPool cria um pool de vagas com capacidade `max`.
func NewSlotPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InUse retorna quantas vagas estão ocupadas neste instante.
func (p *ChanPool) InUse() int {
	return len(p.sem)
}

// Cap retorna o total de vagas do pool.
func (p *ChanPool) Cap() int {
	return cap(p.sem)
}
