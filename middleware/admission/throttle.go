package admission

import (
	"net/http"

	"golang.org/x/time/rate"
)

// ThrottleOptions configura o teto global de vazão do processo.
type ThrottleOptions struct {
	// RPS é a taxa sustentada; <= 0 desabilita o middleware.
	RPS float64
	// Burst é a rajada tolerada; <= 0 usa max(1, int(RPS)).
	Burst        int
	RejectStatus int
	// AddThrottleHeaders expõe a taxa configurada em headers de diagnóstico.
	AddThrottleHeaders bool
}

// ThrottleMiddleware aplica um token bucket global na frente do engine de
// admissão: protege contra inundações volumétricas antes de qualquer
// contabilidade por identidade. A contabilidade por identidade continua sendo
// da janela deslizante; aqui é só o teto do processo.
func ThrottleMiddleware(opts ThrottleOptions) func(next http.Handler) http.Handler {
	if opts.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Burst <= 0 {
		opts.Burst = int(opts.RPS)
		if opts.Burst < 1 {
			opts.Burst = 1
		}
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}

	lim := rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.AddThrottleHeaders {
				w.Header().Set("X-Throttle-RPS", formatFloat(opts.RPS))
				w.Header().Set("X-Throttle-Burst", formatInt(opts.Burst))
			}
			if !lim.Allow() {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
