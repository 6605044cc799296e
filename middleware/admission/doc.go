// Package admission fornece adapters HTTP (net/http) para o engine de
// admissão de requisições e mitigação de abuso.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão de admissão, varredura, vagas de
//     concorrência) sem net/http
//   - infra: implementações concretas (janela deslizante, ledger de
//     violações, block list, heurística de user-agent, sinks de estatística)
//   - admission (este pacote): middlewares HTTP + extração de chave/ação +
//     tradução de motivo para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (IP/header/XFF) e a ação da rota
//  2. Chama o engine: bloqueio ativo → user-agent → janela deslizante
//  3. Se rejeitado, responde 403 (bloqueio/user-agent) ou 429 (limite)
//  4. Se admitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como POLICY_FILE, SWEEP_INTERVAL, THROTTLE_RPS e
// CONCURRENCY_MAX.
package admission
