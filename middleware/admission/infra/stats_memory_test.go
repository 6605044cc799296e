package infra

import (
	"context"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"
)

func TestMemoryStatsStore_CountsByReasonAndAction(t *testing.T) {
	s := NewMemoryStatsStore()
	ctx := context.Background()
	now := time.Now()

	events := []domain.StatsEvent{
		{Identity: "a", Action: "login", Allowed: true, Reason: domain.ReasonAllowed, At: now},
		{Identity: "a", Action: "login", Allowed: false, Reason: domain.ReasonRateLimitExceeded, At: now},
		{Identity: "b", Action: "contact", Allowed: false, Reason: domain.ReasonSuspiciousUserAgent, At: now},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("unexpected record error: %v", err)
		}
	}

	total := s.Total()
	if total.Allowed != 1 || total.Denied != 2 {
		t.Fatalf("unexpected totals: %+v", total)
	}

	byReason := s.ByReason()
	if byReason[domain.ReasonRateLimitExceeded] != 1 || byReason[domain.ReasonSuspiciousUserAgent] != 1 {
		t.Fatalf("unexpected reason counters: %+v", byReason)
	}

	login := s.ByAction()["login"]
	if login.Allowed != 1 || login.Denied != 1 {
		t.Fatalf("unexpected login counters: %+v", login)
	}
}

func TestMemoryStatsStore_TracksIdentitiesOnlyWhenEnabled(t *testing.T) {
	ctx := context.Background()
	ev := domain.StatsEvent{Identity: "a", Action: "login", Allowed: true, Reason: domain.ReasonAllowed}

	off := NewMemoryStatsStore()
	_ = off.Record(ctx, ev)
	if len(off.ByIdentity()) != 0 {
		t.Fatalf("expected no identity tracking by default")
	}

	on := NewMemoryStatsStore(WithTrackIdentities(true))
	_ = on.Record(ctx, ev)
	if got := on.ByIdentity()["a"]; got.Allowed != 1 {
		t.Fatalf("unexpected identity counters: %+v", got)
	}
}
