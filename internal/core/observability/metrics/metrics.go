package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives engine measurements. Implementations must be safe for concurrent use.
type Recorder interface {
	EventDispatched(kind string)
	SequenceStarted(detection string)
	SequenceAdvanced(detection string, step int)
	SequenceCompleted(detection string)
	SequenceReset(detection string, reason string)
	Fault(detection string)
	ActiveSequences(delta int)
	DispatchDuration(d time.Duration)
}

// Reset reasons reported through SequenceReset.
const (
	ReasonFailed     = "failed"
	ReasonExpired    = "expired"
	ReasonFault      = "fault"
	ReasonUnresolved = "unresolved"
)

// Config toggles metric collection.
type Config struct {
	Enabled   bool   `koanf:"enabled" yaml:"enabled"`
	Namespace string `koanf:"namespace" yaml:"namespace"`
}

// Prometheus records engine metrics into a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	events    *prometheus.CounterVec
	started   *prometheus.CounterVec
	advanced  *prometheus.CounterVec
	completed *prometheus.CounterVec
	resets    *prometheus.CounterVec
	faults    *prometheus.CounterVec
	active    prometheus.Gauge
	latency   prometheus.Histogram
}

var _ Recorder = (*Prometheus)(nil)

func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "warden"
	}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Events received by the manager, by event kind",
		}, []string{"kind"}),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_started_total",
			Help:      "Sequences that left the inactive state",
		}, []string{"detection"}),
		advanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_steps_succeeded_total",
			Help:      "Actions that succeeded, by detection and step index",
		}, []string{"detection", "step"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_completed_total",
			Help:      "Sequences that reached completion and triggered resolution",
		}, []string{"detection"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_reset_total",
			Help:      "Sequences returned to the first action, by reason",
		}, []string{"detection", "reason"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_faults_total",
			Help:      "Conditions, hooks or captures that errored or panicked",
		}, []string{"detection"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequences_active",
			Help:      "Live sequence instances across all entities",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one event",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}
	p.registry.MustRegister(p.events, p.started, p.advanced, p.completed, p.resets, p.faults, p.active, p.latency)
	return p
}

// Registry exposes the collectors for scraping.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) EventDispatched(kind string) { p.events.WithLabelValues(kind).Inc() }

func (p *Prometheus) SequenceStarted(detection string) { p.started.WithLabelValues(detection).Inc() }

func (p *Prometheus) SequenceAdvanced(detection string, step int) {
	p.advanced.WithLabelValues(detection, stepLabel(step)).Inc()
}

func (p *Prometheus) SequenceCompleted(detection string) {
	p.completed.WithLabelValues(detection).Inc()
}

func (p *Prometheus) SequenceReset(detection, reason string) {
	p.resets.WithLabelValues(detection, reason).Inc()
}

func (p *Prometheus) Fault(detection string) { p.faults.WithLabelValues(detection).Inc() }

func (p *Prometheus) ActiveSequences(delta int) { p.active.Add(float64(delta)) }

func (p *Prometheus) DispatchDuration(d time.Duration) { p.latency.Observe(d.Seconds()) }

// Nop discards every measurement.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) EventDispatched(string) {}
func (Nop) SequenceStarted(string) {}
func (Nop) SequenceAdvanced(string, int) {}
func (Nop) SequenceCompleted(string) {}
func (Nop) SequenceReset(string, string) {}
func (Nop) Fault(string) {}
func (Nop) ActiveSequences(int) {}
func (Nop) DispatchDuration(time.Duration) {}

// Provide builds the recorder selected by cfg.
func Provide(cfg Config) Recorder {
	if !cfg.Enabled {
		return Nop{}
	}
	return NewPrometheus(cfg.Namespace)
}

func stepLabel(step int) string {
	return strconv.Itoa(step)
}
