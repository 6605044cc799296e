package domain

import "time"

// Policy é o par imutável {janela, máximo de requisições} de uma ação.
// Carregada na construção da tabela; nunca mutada em runtime.
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

// DefaultAction é a política aplicada a qualquer ação não reconhecida.
const DefaultAction Action = "general"

// DefaultPolicies retorna a tabela de referência de políticas por ação.
func DefaultPolicies() map[Action]Policy {
	return map[Action]Policy{
		"login":       {Window: 15 * time.Minute, MaxRequests: 5},
		"register":    {Window: 60 * time.Minute, MaxRequests: 3},
		"contact":     {Window: 5 * time.Minute, MaxRequests: 3},
		"form_submit": {Window: 1 * time.Minute, MaxRequests: 10},
		"api_call":    {Window: 1 * time.Minute, MaxRequests: 100},
		DefaultAction: {Window: 5 * time.Minute, MaxRequests: 50},
	}
}

// PolicyTable resolve a política de uma ação. Lookup puro, sem modo de
// falha: ações desconhecidas caem na política de DefaultAction.
type PolicyTable struct {
	policies map[Action]Policy
	fallback Policy
}

// NewPolicyTable constrói a tabela a partir do mapa dado, completando com as
// políticas de referência. Passar nil usa apenas os valores de referência.
func NewPolicyTable(policies map[Action]Policy) PolicyTable {
	merged := DefaultPolicies()
	for action, p := range policies {
		if p.Window > 0 && p.MaxRequests > 0 {
			merged[action] = p
		}
	}
	return PolicyTable{policies: merged, fallback: merged[DefaultAction]}
}

// Empty informa se a tabela ainda não foi construída via NewPolicyTable.
func (t PolicyTable) Empty() bool { return t.policies == nil }

// Get retorna a política da ação, ou a política default se desconhecida.
func (t PolicyTable) Get(action Action) Policy {
	if p, ok := t.policies[action]; ok {
		return p
	}
	return t.fallback
}
