package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.Transition("subscribe", "ok")
	m.Transition("subscribe", "ok")
	m.Receipt("paypal")
	m.IPN("dropped")
	m.CatalogCache(true)
	m.CatalogCache(false)
	m.GatewayRequest("capture_order", errors.New("boom"), 10*time.Millisecond)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() != "memberships_ledger_transitions_total" {
			continue
		}
		found = true
		if got := family.GetMetric()[0].GetCounter().GetValue(); got != 2 {
			t.Fatalf("expected 2 transitions, got %v", got)
		}
	}
	if !found {
		t.Fatal("transitions metric not gathered")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Transition("cancel", "ok")
	m.Receipt("free")
	m.Notification("user", "ok")
	m.IPN("verified")
	m.GatewayRequest("create_order", nil, time.Millisecond)
	m.CatalogCache(true)
	m.ExpirySweep("expired")
	m.RPC("/memberships.v1.MembershipsService/GetMembership", "OK", time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ExpirySweep("stale")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `memberships_expiry_sweep_total{outcome="stale"} 1`) {
		t.Fatalf("metric not exposed: %s", rec.Body.String())
	}
}
