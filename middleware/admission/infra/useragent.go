package infra

import "strings"

// padrões (minúsculos) associados a clientes automatizados
var suspiciousAgentPatterns = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"python",
	"curl",
	"wget",
	"postman",
	"automated",
	"script",
	"tool",
}

// AgentClassifier implementa domain.UserAgentClassifier por comparação de
// substrings case-insensitive sobre um conjunto fixo de padrões.
//
// User-agent vazio também conta como suspeito: clientes legítimos de
// navegador sempre enviam algum.
type AgentClassifier struct {
	patterns []string
}

// NewAgentClassifier cria o classificador com os padrões fixos, mais os
// extras informados (comparados em minúsculas).
func NewAgentClassifier(extra ...string) *AgentClassifier {
	patterns := make([]string, 0, len(suspiciousAgentPatterns)+len(extra))
	patterns = append(patterns, suspiciousAgentPatterns...)
	for _, p := range extra {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &AgentClassifier{patterns: patterns}
}

// Suspicious implementa domain.UserAgentClassifier.
func (c *AgentClassifier) Suspicious(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return true
	}
	for _, p := range c.patterns {
		if strings.Contains(ua, p) {
			return true
		}
	}
	return false
}
