package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão para fins de estatística.
//
// Ele é propositalmente "agnóstico de HTTP": Identity/Action são strings
// genéricas e podem ser usadas para web, gRPC, etc.
//
// Observação: cuidado com cardinalidade (ex.: gravar Identity sem controle
// pode explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Identity Identity
	Action   Action

	Allowed bool
	Reason  Reason

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de admissão.
//
// Implementações podem armazenar em Redis, memória, etc.
// O middleware deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// EngineStats é o snapshot operacional exposto pelo engine para dashboards.
// Somente leitura; nenhum campo dispara mutação.
type EngineStats struct {
	TotalRequests        int64 `json:"total_requests"`
	BlockedIdentities    int   `json:"blocked_identities"`
	SuspiciousActivities int   `json:"suspicious_activities"`
	ActiveRateLimits     int   `json:"active_rate_limits"`
}
