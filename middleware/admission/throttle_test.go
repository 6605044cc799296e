package admission

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestThrottleMiddleware_RejectsPastBurst(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := ThrottleMiddleware(ThrottleOptions{RPS: 0.01, Burst: 1, AddThrottleHeaders: true})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-Throttle-RPS"); got != "0.01" {
		t.Fatalf("expected X-Throttle-RPS=0.01, got %q", got)
	}

	// rajada esgotada e taxa baixa demais para repor um token já
	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request 429, got %d", w2.Code)
	}
}

func TestThrottleMiddleware_DisabledWhenNoRPS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := ThrottleMiddleware(ThrottleOptions{})(next)

	for i := 0; i < 10; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected pass-through when disabled, got %d", w.Code)
		}
	}
}
