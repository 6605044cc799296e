package infra

import (
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"
)

var loginPolicy = domain.Policy{Window: 15 * time.Minute, MaxRequests: 5}

func TestWindowStore_AdmitsUpToLimitThenRejects(t *testing.T) {
	s := NewWindowStore()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < loginPolicy.MaxRequests; i++ {
		now := t0.Add(time.Duration(i) * time.Second)
		if ok, _ := s.TryAdmit("203.0.113.5", "login", loginPolicy, now); !ok {
			t.Fatalf("expected request %d to be admitted", i+1)
		}
	}

	if ok, _ := s.TryAdmit("203.0.113.5", "login", loginPolicy, t0.Add(5*time.Second)); ok {
		t.Fatalf("expected request over the limit to be rejected")
	}
}

func TestWindowStore_RejectionReportsWindowRemainder(t *testing.T) {
	s := NewWindowStore()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < loginPolicy.MaxRequests; i++ {
		now := t0.Add(time.Duration(i) * time.Second)
		if ok, _ := s.TryAdmit("k", "login", loginPolicy, now); !ok {
			t.Fatalf("expected request %d to be admitted", i+1)
		}
	}

	// a vaga mais antiga (t0) abre quando a janela inteira passa desde t0
	ok, retry := s.TryAdmit("k", "login", loginPolicy, t0.Add(5*time.Second))
	if ok {
		t.Fatalf("expected rejection over the limit")
	}
	if want := loginPolicy.Window - 5*time.Second; retry != want {
		t.Fatalf("expected retryAfter %s, got %s", want, retry)
	}
}

func TestWindowStore_AdmissionReportsZeroRetryAfter(t *testing.T) {
	s := NewWindowStore()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	ok, retry := s.TryAdmit("k", "login", loginPolicy, t0)
	if !ok {
		t.Fatalf("expected admission")
	}
	if retry != 0 {
		t.Fatalf("expected retryAfter 0 on admission, got %s", retry)
	}
}

func TestWindowStore_WindowSlidesInsteadOfResetting(t *testing.T) {
	s := NewWindowStore()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// esgota o limite com a primeira requisição em t0
	for i := 0; i < loginPolicy.MaxRequests; i++ {
		if ok, _ := s.TryAdmit("k", "login", loginPolicy, t0.Add(time.Duration(i)*time.Second)); !ok {
			t.Fatalf("expected request %d to be admitted", i+1)
		}
	}

	// a primeira expira quando a janela inteira passa desde t0
	if ok, _ := s.TryAdmit("k", "login", loginPolicy, t0.Add(loginPolicy.Window)); !ok {
		t.Fatalf("expected admission after the first timestamp slid out of the window")
	}

	// mas só abriu uma vaga: a próxima ainda bate no limite
	if ok, _ := s.TryAdmit("k", "login", loginPolicy, t0.Add(loginPolicy.Window)); ok {
		t.Fatalf("expected rejection, only one slot should have opened")
	}
}

func TestWindowStore_ActionsAreIndependent(t *testing.T) {
	s := NewWindowStore()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	contact := domain.Policy{Window: 5 * time.Minute, MaxRequests: 3}

	for i := 0; i < contact.MaxRequests; i++ {
		if ok, _ := s.TryAdmit("k", "contact", contact, t0); !ok {
			t.Fatalf("expected contact request %d to be admitted", i+1)
		}
	}
	if ok, _ := s.TryAdmit("k", "contact", contact, t0); ok {
		t.Fatalf("expected contact to be exhausted")
	}

	// mesma identidade, outra ação: janela própria, segue admitindo
	if ok, _ := s.TryAdmit("k", "login", loginPolicy, t0); !ok {
		t.Fatalf("expected login to be unaffected by contact exhaustion")
	}
}

func TestWindowStore_IdentitiesAreIndependent(t *testing.T) {
	s := NewWindowStore()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := domain.Policy{Window: time.Minute, MaxRequests: 1}

	if ok, _ := s.TryAdmit("a", "api_call", p, t0); !ok {
		t.Fatalf("expected first identity to be admitted")
	}
	if ok, _ := s.TryAdmit("b", "api_call", p, t0); !ok {
		t.Fatalf("expected second identity to be admitted")
	}
}

func TestWindowStore_ActiveWindowsCountsLiveEntriesOnly(t *testing.T) {
	s := NewWindowStore()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := domain.Policy{Window: time.Minute, MaxRequests: 10}

	s.TryAdmit("a", "api_call", p, t0)
	s.TryAdmit("b", "form_submit", p, t0)

	if got := s.ActiveWindows(t0); got != 2 {
		t.Fatalf("expected 2 active windows, got %d", got)
	}
	// depois da janela, nenhum timestamp continua vivo
	if got := s.ActiveWindows(t0.Add(2 * time.Minute)); got != 0 {
		t.Fatalf("expected 0 active windows after expiry, got %d", got)
	}
}

func TestWindowStore_SweepEvictsIdleEmptyWindows(t *testing.T) {
	s := NewWindowStore(WithWindowIdleTTL(30 * time.Minute))
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := domain.Policy{Window: time.Minute, MaxRequests: 10}

	s.TryAdmit("k", "api_call", p, t0)

	// janela expirada mas ainda dentro do idleTTL: entrada fica retida
	s.Sweep(t0.Add(10 * time.Minute))
	if s.Len() != 1 {
		t.Fatalf("expected entry to be retained within idle TTL, len=%d", s.Len())
	}

	// além do idleTTL: removida
	s.Sweep(t0.Add(31 * time.Minute))
	if s.Len() != 0 {
		t.Fatalf("expected entry to be evicted after idle TTL, len=%d", s.Len())
	}
}
