package admission

import (
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

type ConcurrencyOptions struct {
	Max          int
	RejectStatus int
	// Pool permite compartilhar um pool já construído (por exemplo para
	// expor a saturação em um snapshot). Se nil, um pool de Max vagas é
	// criado internamente.
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita quantas requisições são atendidas ao mesmo
// tempo atrás do gateway. Complementa a admissão por identidade: mesmo
// tráfego admitido não pode esgotar o upstream.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		opts.Pool = infra.NewSlotPool(opts.Max)
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
