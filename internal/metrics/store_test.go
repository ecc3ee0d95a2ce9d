package metrics

import (
	"context"
	"testing"
	"time"
)

func openTest(t *testing.T, now *time.Time) *Store {
	t.Helper()
	s, err := Open(":memory:", WithSalt("pepper"), WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHashIP(t *testing.T) {
	now := time.Now()
	s := openTest(t, &now)
	a, b := s.HashIP("10.0.0.1"), s.HashIP("10.0.0.1")
	if a != b || len(a) != 16 {
		t.Fatalf("expected stable 16 char hash, got %q %q", a, b)
	}
	if a == s.HashIP("10.0.0.2") {
		t.Fatalf("different IPs must hash differently")
	}
	if a == "10.0.0.1" {
		t.Fatalf("raw IP leaked")
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := openTest(t, &now)

	visits := []struct {
		ago  time.Duration
		ip   string
		path string
	}{
		{0, "1.1.1.1", "/"},
		{time.Hour, "1.1.1.1", "/api/stats"},
		{3 * 24 * time.Hour, "2.2.2.2", "/"},
		{30 * 24 * time.Hour, "3.3.3.3", "/"},
	}
	for _, v := range visits {
		now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC).Add(-v.ago)
		if err := s.RecordVisit(ctx, v.ip, "test-agent", v.path); err != nil {
			t.Fatalf("record visit: %v", err)
		}
	}
	now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for _, kind := range []string{"delivered", "delivered", "upstream_rejected"} {
		if err := s.RecordDelivery(ctx, kind, 200, false); err != nil {
			t.Fatalf("record delivery: %v", err)
		}
	}

	sum, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalVisitors != 4 || sum.UniqueVisitors != 3 {
		t.Fatalf("unexpected totals %+v", sum)
	}
	if sum.VisitorsToday != 2 || sum.VisitorsThisWeek != 3 {
		t.Fatalf("unexpected windows today=%d week=%d", sum.VisitorsToday, sum.VisitorsThisWeek)
	}
	if len(sum.TopPaths) == 0 || sum.TopPaths[0].Path != "/" || sum.TopPaths[0].Count != 3 {
		t.Fatalf("unexpected top paths %+v", sum.TopPaths)
	}
	if sum.Deliveries["delivered"] != 2 || sum.Deliveries["upstream_rejected"] != 1 {
		t.Fatalf("unexpected deliveries %+v", sum.Deliveries)
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s := openTest(t, &now)

	old := now
	now = old.Add(-2 * Retention)
	_ = s.RecordVisit(ctx, "1.1.1.1", "", "/")
	_ = s.RecordDelivery(ctx, "delivered", 200, false)
	now = old
	_ = s.RecordVisit(ctx, "1.1.1.1", "", "/")

	n, err := s.Cleanup(ctx, Retention)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows removed, got %d", n)
	}
	sum, _ := s.Summary(ctx)
	if sum.TotalVisitors != 1 {
		t.Fatalf("expected recent visit kept, got %d", sum.TotalVisitors)
	}
}
