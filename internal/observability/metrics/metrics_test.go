package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveTransition("free", "booked", "ok")
	m.ObserveTransition("free", "booked", "conflict")
	m.ObserveTransition("free", "booked", "conflict")
	m.ObserveHold("acquire", "ok")
	m.ObserveSwept(3)
	m.ObserveSwept(0)
	m.ObserveBooking("request", "ok")
	m.ObserveQueryLatency("ok", 0.02)
	m.ObserveSearch("doctors")

	if got := testutil.ToFloat64(m.slotTransitions.WithLabelValues("free", "booked", "conflict")); got != 2 {
		t.Fatalf("expected 2 conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.holdsSwept); got != 3 {
		t.Fatalf("expected 3 swept holds, got %v", got)
	}
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveTransition("free", "held", "ok")
	m.ObserveHold("release", "ok")
	m.ObserveSwept(1)
	m.ObserveBooking("cancel", "ok")
	m.ObserveQueryLatency("ok", 0.1)
	m.ObserveSearch("patients")
}
