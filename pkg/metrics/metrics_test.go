package metrics

import "testing"

func TestNewRegistersAllMetrics(t *testing.T) {
	r := New()
	r.IngestedChunks.Inc()
	r.HNSWSize.Set(42)

	mfs, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestHealthAggregatesChecks(t *testing.T) {
	h := NewHealth()
	h.Register("storage", func() Status { return Status{Healthy: true} })
	h.Register("sync", func() Status { return Status{Healthy: false, Detail: "peer unreachable"} })

	statuses, healthy := h.Check()
	if healthy {
		t.Fatal("expected overall unhealthy when one check fails")
	}
	if statuses["storage"].Healthy != true {
		t.Fatal("expected storage check healthy")
	}
	if statuses["sync"].Detail != "peer unreachable" {
		t.Fatalf("expected detail preserved, got %q", statuses["sync"].Detail)
	}
}

func TestHealthAllHealthy(t *testing.T) {
	h := NewHealth()
	h.Register("storage", func() Status { return Status{Healthy: true} })

	_, healthy := h.Check()
	if !healthy {
		t.Fatal("expected overall healthy when all checks pass")
	}
}
