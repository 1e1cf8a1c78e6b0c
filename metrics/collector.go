// Package metrics exports evfsm machine counters to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/librescoot/evfsm"
)

// Collector exposes the counters of registered machines, labeled by machine
// ID. Values are read from Machine.Stats() at scrape time, so registration
// adds no overhead to the dispatch path.
type Collector struct {
	mu       sync.RWMutex
	machines map[string]*evfsm.Machine

	dispatched  *prometheus.Desc
	transitions *prometheus.Desc
	dropped     *prometheus.Desc
	hookErrors  *prometheus.Desc
	queueDepth  *prometheus.Desc
	queueCap    *prometheus.Desc
}

// NewCollector creates an empty collector. Register it with a Prometheus
// registry once, then attach machines as they are built.
func NewCollector() *Collector {
	labels := []string{"machine"}
	return &Collector{
		machines: make(map[string]*evfsm.Machine),
		dispatched: prometheus.NewDesc(
			"evfsm_events_dispatched_total",
			"Events run through the dispatch pipeline.",
			labels, nil,
		),
		transitions: prometheus.NewDesc(
			"evfsm_transitions_total",
			"State transitions taken, including self-transitions.",
			labels, nil,
		),
		dropped: prometheus.NewDesc(
			"evfsm_events_dropped_total",
			"Events dropped because the pending queue was full.",
			labels, nil,
		),
		hookErrors: prometheus.NewDesc(
			"evfsm_hook_errors_total",
			"Errors returned by entry, exit and transition hooks.",
			labels, nil,
		),
		queueDepth: prometheus.NewDesc(
			"evfsm_queue_depth",
			"Events currently pending in the queue.",
			labels, nil,
		),
		queueCap: prometheus.NewDesc(
			"evfsm_queue_capacity",
			"Fixed capacity of the pending queue.",
			labels, nil,
		),
	}
}

// Register adds a machine, keyed by its ID. Registering another machine
// with the same ID replaces the previous one.
func (c *Collector) Register(m *evfsm.Machine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machines[m.ID()] = m
}

// Unregister removes a machine by ID.
func (c *Collector) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.machines, id)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dispatched
	ch <- c.transitions
	ch <- c.dropped
	ch <- c.hookErrors
	ch <- c.queueDepth
	ch <- c.queueCap
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, m := range c.machines {
		st := m.Stats()
		ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(st.Dispatched), id)
		ch <- prometheus.MustNewConstMetric(c.transitions, prometheus.CounterValue, float64(st.Transitions), id)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped), id)
		ch <- prometheus.MustNewConstMetric(c.hookErrors, prometheus.CounterValue, float64(st.HookErrors), id)
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(st.QueueLen), id)
		ch <- prometheus.MustNewConstMetric(c.queueCap, prometheus.GaugeValue, float64(st.QueueCapacity), id)
	}
}
