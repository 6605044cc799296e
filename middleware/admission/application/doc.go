// Package application contém os casos de uso da admissão de requisições.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Engine.Check(identidade, ação, user-agent, now) retorna uma Decision
// (allow/deny + motivo + retry-after).
package application
