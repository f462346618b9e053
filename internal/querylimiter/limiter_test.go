package querylimiter

import "testing"

func TestLimiterBasic(t *testing.T) {
	l := New(Limits{MaxConcurrentPerOrg: 2, MaxConcurrentGlobal: 5})

	g1, err := l.TryAcquire("org-1")
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	g2, err := l.TryAcquire("org-1")
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	defer g1.Release()
	defer g2.Release()

	if _, err := l.TryAcquire("org-1"); err == nil {
		t.Fatal("expected org limit error on third acquire")
	} else if limitErr, ok := err.(*LimitError); !ok || limitErr.Global {
		t.Fatalf("expected org limit error, got %v", err)
	}

	if stats := l.Stats(); stats.TotalQueries != 2 {
		t.Errorf("TotalQueries = %d, want 2", stats.TotalQueries)
	}
}

func TestLimiterRelease(t *testing.T) {
	l := New(Limits{MaxConcurrentPerOrg: 2, MaxConcurrentGlobal: 5})

	g, err := l.TryAcquire("org-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if l.Stats().TotalQueries != 1 {
		t.Fatalf("expected 1 in flight")
	}
	g.Release()
	if l.Stats().TotalQueries != 0 {
		t.Fatalf("expected 0 in flight after release")
	}
}

func TestLimiterReleaseIsIdempotent(t *testing.T) {
	l := New(Limits{MaxConcurrentPerOrg: 2, MaxConcurrentGlobal: 5})
	g, _ := l.TryAcquire("org-1")
	g.Release()
	g.Release()
	if l.Stats().TotalQueries != 0 {
		t.Fatalf("double release must not go negative")
	}
}

func TestGlobalLimit(t *testing.T) {
	l := New(Limits{MaxConcurrentPerOrg: 10, MaxConcurrentGlobal: 2})

	g1, err := l.TryAcquire("org-1")
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	defer g1.Release()
	g2, err := l.TryAcquire("org-2")
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	defer g2.Release()

	_, err = l.TryAcquire("org-1")
	if err == nil {
		t.Fatal("expected global limit error")
	}
	if limitErr, ok := err.(*LimitError); !ok || !limitErr.Global {
		t.Fatalf("expected global limit error, got %v", err)
	}
}
