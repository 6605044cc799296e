package admission

import (
	"net"
	"net/http"
	"strings"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

type KeyFunc func(r *http.Request) string

type ActionFunc func(r *http.Request) domain.Action

type Options struct {
	Engine *application.Engine
	Stats  domain.StatsStore

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	ActionFn ActionFunc
	// Action é a ação fixa aplicada quando ActionFn/PathActions não resolvem.
	Action domain.Action
	// PathActions mapeia prefixo de path para ação; o prefixo mais longo vence.
	PathActions map[string]domain.Action

	AddAdmissionHeaders bool
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original);
			// só confie nisso atrás de um reverse proxy verificado
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
			if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
				return realIP
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func DefaultActionFunc(fixed domain.Action, pathActions map[string]domain.Action) ActionFunc {
	return func(r *http.Request) domain.Action {
		var (
			best   string
			action domain.Action
		)
		for prefix, a := range pathActions {
			if strings.HasPrefix(r.URL.Path, prefix) && len(prefix) > len(best) {
				best = prefix
				action = a
			}
		}
		if best != "" {
			return action
		}
		if fixed != "" {
			return fixed
		}
		return domain.DefaultAction
	}
}

// retryAfterSeconds arredonda a duração para cima em segundos inteiros.
// Truncar faria um resto subsegundo virar "Retry-After: 0".
func retryAfterSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// rejectStatus traduz o motivo da rejeição para o status HTTP.
// Limite estourado é throttling (429); bloqueio e user-agent são recusa (403).
func rejectStatus(reason domain.Reason) int {
	if reason == domain.ReasonRateLimitExceeded {
		return http.StatusTooManyRequests
	}
	return http.StatusForbidden
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Engine == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.ActionFn == nil {
		opts.ActionFn = DefaultActionFunc(opts.Action, opts.PathActions)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			action := opts.ActionFn(r)
			now := time.Now()

			dec := opts.Engine.Check(domain.Identity(key), action, r.UserAgent(), now)

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Identity: domain.Identity(key),
					Action:   action,
					Allowed:  dec.Allowed,
					Reason:   dec.Reason,
					At:       now,
				})
			}

			if opts.AddAdmissionHeaders {
				w.Header().Set("X-Admission-Key", key)
				w.Header().Set("X-Admission-Action", string(action))
			}

			if !dec.Allowed {
				if opts.AddAdmissionHeaders {
					w.Header().Set("X-Admission-Reason", string(dec.Reason))
				}
				if dec.RetryAfter > 0 {
					w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				}
				http.Error(w, dec.Message, rejectStatus(dec.Reason))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
