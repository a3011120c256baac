package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the scheduling core.
// A nil *SchedulingMetrics is valid and records nothing.
type SchedulingMetrics struct {
	slotTransitions *prometheus.CounterVec
	holds           *prometheus.CounterVec
	holdsSwept      prometheus.Counter
	bookings        *prometheus.CounterVec
	queryLatency    *prometheus.HistogramVec
	searches        *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		slotTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "calendar",
			Name:      "slot_transitions_total",
			Help:      "Slot compare-and-set attempts by edge and outcome",
		}, []string{"from", "to", "result"}),
		holds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "holds",
			Name:      "operations_total",
			Help:      "Hold operations by kind and outcome",
		}, []string{"op", "result"}),
		holdsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "holds",
			Name:      "swept_total",
			Help:      "Lapsed holds released by the sweeper",
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Booking engine operations by kind and outcome",
		}, []string{"op", "result"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "availability",
			Name:      "query_seconds",
			Help:      "Latency of availability queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Record searches by index",
		}, []string{"index"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotTransitions, m.holds, m.holdsSwept, m.bookings, m.queryLatency, m.searches)
	return m
}

func (m *SchedulingMetrics) ObserveTransition(from, to, result string) {
	if m == nil {
		return
	}
	m.slotTransitions.WithLabelValues(from, to, result).Inc()
}

func (m *SchedulingMetrics) ObserveHold(op, result string) {
	if m == nil {
		return
	}
	m.holds.WithLabelValues(op, result).Inc()
}

func (m *SchedulingMetrics) ObserveSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsSwept.Add(float64(n))
}

func (m *SchedulingMetrics) ObserveBooking(op, result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(op, result).Inc()
}

func (m *SchedulingMetrics) ObserveQueryLatency(result string, seconds float64) {
	if m == nil {
		return
	}
	m.queryLatency.WithLabelValues(result).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveSearch(index string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(index).Inc()
}
