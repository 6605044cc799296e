package domain

// Camada de domínio da admissão.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Identity é a chave opaca que identifica a origem da requisição
// (normalmente o IP do cliente, fornecido pela camada de transporte —
// este engine nunca deriva o IP sozinho).
type Identity string

// Action nomeia a operação protegida (login, register, contact, ...).
// Ações desconhecidas caem na política de DefaultAction.
type Action string

// ActionSuspiciousUserAgent é a "ação" registrada no ledger quando o
// user-agent do cliente é classificado como automatizado.
const ActionSuspiciousUserAgent Action = "suspicious_user_agent"

// Reason identifica o motivo de uma decisão de admissão.
type Reason string

const (
	ReasonAllowed             Reason = "ALLOWED"
	ReasonIPBlocked           Reason = "IP_BLOCKED"
	ReasonSuspiciousUserAgent Reason = "SUSPICIOUS_USER_AGENT"
	ReasonRateLimitExceeded   Reason = "RATE_LIMIT_EXCEEDED"
)

// Decision é o resultado de uma checagem de admissão.
//
// Toda checagem produz uma Decision — nunca um erro. Quem chama deve tratar
// qualquer decisão não permitida como rejeição da requisição, não como falha
// interna passível de retry.
type Decision struct {
	Allowed bool
	Reason  Reason
	Message string
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// WindowStore mantém janelas deslizantes de timestamps por (identidade, ação).
//
// A implementação deve podar de forma preguiçosa (no acesso, não por timer),
// de modo que só tráfego ativo gere trabalho.
type WindowStore interface {
	// TryAdmit poda a janela da chave e admite (registrando now) ou rejeita.
	// Rejeição deve ser reportada ao ledger por quem chama; retryAfter
	// informa quanto falta para a vaga mais antiga da janela expirar
	// (0 na admissão).
	TryAdmit(id Identity, action Action, p Policy, now time.Time) (ok bool, retryAfter time.Duration)

	// ActiveWindows conta janelas com ao menos um timestamp ainda vivo.
	ActiveWindows(now time.Time) int
}

// ViolationLedger acumula violações por identidade em janela móvel.
//
// Qualquer componente pode reportar por este único ponto de entrada; o
// ledger não distingue a causa além de registrar o nome da ação para
// diagnóstico. Ao cruzar o limiar, a implementação escala para a BlockList.
type ViolationLedger interface {
	Record(id Identity, action Action, now time.Time)

	// ActiveIdentities conta identidades com ao menos uma violação viva.
	ActiveIdentities(now time.Time) int
}

// BlockList mantém bloqueios temporários por identidade.
type BlockList interface {
	// Block define unblockAt = now + d, sobrescrevendo entrada existente
	// (durações não acumulam — o bloqueio mais recente vence).
	Block(id Identity, now time.Time, d time.Duration)

	// IsBlocked retorna true sse existe entrada e now < unblockAt.
	// Entradas expiradas são removidas preguiçosamente.
	IsBlocked(id Identity, now time.Time) bool

	// RemainingBlock retorna quanto falta para desbloquear (0 se livre).
	RemainingBlock(id Identity, now time.Time) time.Duration

	// ActiveBlocks conta bloqueios ainda vigentes.
	ActiveBlocks(now time.Time) int
}

// UserAgentClassifier decide se um user-agent aparenta ser automatizado.
//
// É uma heurística, não uma fronteira de segurança: falsos positivos e
// negativos são esperados. Existe para encarecer abuso trivialmente
// scriptado, não para autenticar clientes.
type UserAgentClassifier interface {
	Suspicious(userAgent string) bool
}
