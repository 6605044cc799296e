package application

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// DefaultSweepInterval é o intervalo da varredura de estado expirado.
const DefaultSweepInterval = 5 * time.Minute

// defaultRetryAfter é o piso da recomendação de Retry-After em rejeições
// por limite, quando não configurado.
const defaultRetryAfter = 1 * time.Second

// Engine orquestra a decisão de admissão por requisição.
//
// A ordem das checagens é deliberada: bloqueio ativo primeiro (checagem mais
// barata, sinal mais forte); user-agent suspeito antes do limite quantitativo
// (para não gastar vaga da janela com ruído scriptado); e só então a janela
// deslizante.
//
// Risco de tuning preservado de propósito: rejeições por user-agent
// alimentam o mesmo ledger que estouros de limite, então health-checks
// automatizados sem user-agent de navegador podem acumular violações até
// serem bloqueados. Quem opera deve ajeitar os padrões do classificador ou
// isentar esses clientes na camada de transporte.
//
// O engine é o único dono dos stores; instancie um por processo e injete por
// referência nos handlers (sem globals de pacote).
type Engine struct {
	policies   domain.PolicyTable
	windows    domain.WindowStore
	ledger     domain.ViolationLedger
	blocks     domain.BlockList
	agents     domain.UserAgentClassifier
	retryAfter time.Duration

	totalRequests atomic.Int64
	lastSweep     atomic.Int64 // unix nanos da última varredura completa
}

// EngineConfig agrega as dependências do engine.
type EngineConfig struct {
	// Policies é opcional; o valor zero usa a tabela de referência.
	Policies domain.PolicyTable
	Windows  domain.WindowStore
	Ledger   domain.ViolationLedger
	Blocks   domain.BlockList
	Agents   domain.UserAgentClassifier
	// RetryAfter é o piso da recomendação em rejeições por limite: o valor
	// real é o tempo até a vaga mais antiga da janela expirar, nunca menor
	// que este piso. Se 0, usa 1s.
	RetryAfter time.Duration
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Windows == nil {
		return nil, errors.New("window store is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("violation ledger is required")
	}
	if cfg.Blocks == nil {
		return nil, errors.New("block list is required")
	}
	if cfg.Agents == nil {
		return nil, errors.New("user-agent classifier is required")
	}
	if cfg.Policies.Empty() {
		cfg.Policies = domain.NewPolicyTable(nil)
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = defaultRetryAfter
	}
	return &Engine{
		policies:   cfg.Policies,
		windows:    cfg.Windows,
		ledger:     cfg.Ledger,
		blocks:     cfg.Blocks,
		agents:     cfg.Agents,
		retryAfter: cfg.RetryAfter,
	}, nil
}

// Check decide se a requisição pode prosseguir. Sempre retorna uma Decision,
// nunca um erro; cada chamada é computação limitada em memória.
//
// userAgent vazio significa "não informado" e pula a heurística — a checagem
// de user-agent só roda quando o transporte forneceu o valor.
func (e *Engine) Check(id domain.Identity, action domain.Action, userAgent string, now time.Time) domain.Decision {
	e.totalRequests.Add(1)

	// uma única consulta: bloqueado sse resta tempo de bloqueio (evita a
	// janela entre duas aquisições de lock em que o bloqueio expira)
	if remaining := e.blocks.RemainingBlock(id, now); remaining > 0 {
		return domain.Decision{
			Allowed:    false,
			Reason:     domain.ReasonIPBlocked,
			Message:    "origin temporarily blocked",
			RetryAfter: remaining,
		}
	}

	if userAgent != "" && e.agents.Suspicious(userAgent) {
		e.ledger.Record(id, domain.ActionSuspiciousUserAgent, now)
		return domain.Decision{
			Allowed: false,
			Reason:  domain.ReasonSuspiciousUserAgent,
			Message: "client rejected",
		}
	}

	policy := e.policies.Get(action)
	if ok, retryAfter := e.windows.TryAdmit(id, action, policy, now); !ok {
		e.ledger.Record(id, action, now)
		if retryAfter < e.retryAfter {
			retryAfter = e.retryAfter
		}
		return domain.Decision{
			Allowed:    false,
			Reason:     domain.ReasonRateLimitExceeded,
			Message:    "too many requests, retry later",
			RetryAfter: retryAfter,
		}
	}

	return domain.Decision{
		Allowed: true,
		Reason:  domain.ReasonAllowed,
		Message: "request admitted",
	}
}

// Stats retorna o snapshot operacional. Não muta nada.
func (e *Engine) Stats(now time.Time) domain.EngineStats {
	return domain.EngineStats{
		TotalRequests:        e.totalRequests.Load(),
		BlockedIdentities:    e.blocks.ActiveBlocks(now),
		SuspiciousActivities: e.ledger.ActiveIdentities(now),
		ActiveRateLimits:     e.windows.ActiveWindows(now),
	}
}

type sweepable interface {
	Sweep(now time.Time)
}

// Sweep varre os stores, removendo estado expirado. Cada store usa o próprio
// lock, os mesmos do caminho de requisição.
func (e *Engine) Sweep(now time.Time) {
	for _, store := range []any{e.windows, e.ledger, e.blocks} {
		if s, ok := store.(sweepable); ok {
			s.Sweep(now)
		}
	}
}

// StartSweeper inicia a goroutine que varre estado expirado periodicamente.
// Pare cancelando o contexto. Se uma varredura não completa dentro de 2x o
// intervalo, loga um aviso (sinal operacional de crescimento de memória).
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	e.lastSweep.Store(time.Now().UnixNano())

	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				if last := time.Unix(0, e.lastSweep.Load()); now.Sub(last) > 2*interval {
					log.Printf("admission: sweep overdue, last completed %s ago", now.Sub(last).Round(time.Second))
				}
				e.Sweep(now)
				e.lastSweep.Store(time.Now().UnixNano())
			}
		}
	}()
}
