// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: janela deslizante de timestamps por (identidade, ação)
//   - Ledger + BlockList: acúmulo de violações com escalada para bloqueio
//   - AgentClassifier: heurística de user-agent automatizado
//   - MemoryStatsStore / RedisStatsStore: sinks de estatísticas de decisão
package infra
