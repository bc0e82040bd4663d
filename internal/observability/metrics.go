package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BridgeCollector bundles Prometheus metrics for the sync engine and
// provides a ready-to-serve /metrics handler.
type BridgeCollector struct {
	gatherer prometheus.Gatherer

	Ticks         prometheus.Counter
	TickDurations prometheus.Histogram
	SoftFailures  *prometheus.CounterVec
	Commands      *prometheus.CounterVec

	VehicleCount prometheus.Gauge
	AverageSpeed prometheus.Gauge
	Connected    prometheus.Gauge
}

// NewBridgeCollector registers bridge Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil.
func NewBridgeCollector(reg prometheus.Registerer) (*BridgeCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_ticks_total",
		Help: "Total number of completed sync-engine ticks.",
	}), "bridge_ticks_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_tick_duration_seconds",
		Help:    "Duration of one pull+command cycle in seconds.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	durations, err = registerHistogram(reg, durations, "bridge_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	softFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_soft_failures_total",
		Help: "Recovered per-entity failures, labeled by tick phase.",
	}, []string{"phase"})
	softFailures, err = registerCounterVec(reg, softFailures, "bridge_soft_failures_total")
	if err != nil {
		return nil, err
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_commands_total",
		Help: "Operator commands applied to the simulation, labeled by kind.",
	}, []string{"kind"})
	commands, err = registerCounterVec(reg, commands, "bridge_commands_total")
	if err != nil {
		return nil, err
	}

	vehicles, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_vehicle_count",
		Help: "Vehicles currently in the simulation.",
	}), "bridge_vehicle_count")
	if err != nil {
		return nil, err
	}
	speed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_average_speed_kmh",
		Help: "Mean vehicle speed in km/h.",
	}), "bridge_average_speed_kmh")
	if err != nil {
		return nil, err
	}
	connected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_simulation_connected",
		Help: "1 while the simulation session is up, 0 otherwise.",
	}), "bridge_simulation_connected")
	if err != nil {
		return nil, err
	}

	return &BridgeCollector{
		gatherer:      gatherer,
		Ticks:         ticks,
		TickDurations: durations,
		SoftFailures:  softFailures,
		Commands:      commands,
		VehicleCount:  vehicles,
		AverageSpeed:  speed,
		Connected:     connected,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *BridgeCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick satisfies the engine's MetricsRecorder interface.
func (c *BridgeCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDurations.Observe(d.Seconds())
}

// IncSoftFailure counts a recovered per-entity failure.
func (c *BridgeCollector) IncSoftFailure(phase string) {
	if c == nil {
		return
	}
	c.SoftFailures.WithLabelValues(phase).Inc()
}

// IncCommand counts an applied operator command.
func (c *BridgeCollector) IncCommand(kind string) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(kind).Inc()
}

// SetTraffic updates the traffic telemetry gauges.
func (c *BridgeCollector) SetTraffic(vehicles int, averageSpeedKmh float64) {
	if c == nil {
		return
	}
	c.VehicleCount.Set(float64(vehicles))
	c.AverageSpeed.Set(averageSpeedKmh)
}

// SetConnected updates the session gauge.
func (c *BridgeCollector) SetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.Connected.Set(1)
	} else {
		c.Connected.Set(0)
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
