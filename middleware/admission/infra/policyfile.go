package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"admission-gateway/middleware/admission/domain"

	"gopkg.in/yaml.v3"
)

// Formato do arquivo de políticas:
//
//	policies:
//	  login:
//	    window: 15m
//	    max_requests: 5
//	  api_call:
//	    window: 1m
//	    max_requests: 100
//
// As entradas sobrescrevem a tabela de referência; ações ausentes mantêm
// os valores default.
type policyFile struct {
	Policies map[string]policySpec `yaml:"policies"`
}

type policySpec struct {
	Window      string `yaml:"window"`
	MaxRequests int    `yaml:"max_requests"`
}

// LoadPolicyFile lê um arquivo YAML de políticas e retorna o mapa de
// overrides, pronto para ser passado a domain.NewPolicyTable.
func LoadPolicyFile(path string) (map[domain.Action]domain.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing policy file: %w", err)
	}

	out := make(map[domain.Action]domain.Policy, len(pf.Policies))
	for name, spec := range pf.Policies {
		action := domain.Action(strings.TrimSpace(name))
		if action == "" {
			continue
		}
		window, err := time.ParseDuration(strings.TrimSpace(spec.Window))
		if err != nil {
			return nil, fmt.Errorf("policy %q: invalid window %q: %w", name, spec.Window, err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("policy %q: window must be > 0", name)
		}
		if spec.MaxRequests <= 0 {
			return nil, fmt.Errorf("policy %q: max_requests must be > 0", name)
		}
		out[action] = domain.Policy{Window: window, MaxRequests: spec.MaxRequests}
	}
	return out, nil
}
