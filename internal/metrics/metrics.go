// Package metrics exposes pump and sensor state as Prometheus collectors on
// a private registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/irrigator/internal/controller"
	"github.com/sweeney/irrigator/internal/logic"
)

const namespace = "irrigator"

// Metrics holds the daemon's collectors.
type Metrics struct {
	registry *prometheus.Registry

	pumpState    *prometheus.GaugeVec
	activations  *prometheus.CounterVec
	restInterval *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
	wantsWater   *prometheus.GaugeVec
	knob         prometheus.Gauge
	airTemp      prometheus.Gauge
	airHumidity  prometheus.Gauge
	airFault     prometheus.Gauge
	mqtt         prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pumpState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_state",
			Help:      "1 for the current state of each pump, 0 otherwise.",
		}, []string{"pump", "state"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pump_activations_total",
			Help:      "Automatic watering runs started.",
		}, []string{"pump"}),
		restInterval: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_rest_interval_seconds",
			Help:      "Current knob-derived rest interval.",
		}, []string{"pump"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Pump state transitions by reason.",
		}, []string{"pump", "reason"}),
		wantsWater: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_wants_water",
			Help:      "1 while the sensor allows watering.",
		}, []string{"sensor"}),
		knob: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knob_level",
			Help:      "Potentiometer reading, 0..1023.",
		}),
		airTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "air_temperature_celsius",
			Help:      "Last air temperature reading.",
		}),
		airHumidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "air_humidity_percent",
			Help:      "Last relative humidity reading.",
		}),
		airFault: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "air_sensor_fault",
			Help:      "1 while the air sensor is faulted.",
		}),
		mqtt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the broker connection is up.",
		}),
	}
	m.registry.MustRegister(
		m.pumpState, m.activations, m.restInterval, m.transitions, m.wantsWater,
		m.knob, m.airTemp, m.airHumidity, m.airFault, m.mqtt,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTransitions counts transitions and activations.
func (m *Metrics) ObserveTransitions(trs []logic.Transition) {
	for _, tr := range trs {
		pump := strconv.Itoa(tr.PumpID)
		m.transitions.WithLabelValues(pump, string(tr.Reason)).Inc()
		if tr.Reason == logic.ReasonAutoStart {
			m.activations.WithLabelValues(pump).Inc()
		}
	}
}

// ObserveSnapshot sets the gauges from a controller snapshot.
func (m *Metrics) ObserveSnapshot(s controller.Snapshot) {
	for _, p := range s.Pumps {
		pump := strconv.Itoa(p.ID)
		for _, st := range logic.States {
			m.pumpState.WithLabelValues(pump, string(st)).Set(boolFloat(p.State == st))
		}
		m.restInterval.WithLabelValues(pump).Set(float64(p.RestInterval))
		// Make the counter visible before the first activation.
		m.activations.WithLabelValues(pump)
		m.wantsWater.WithLabelValues("switch" + pump).Set(boolFloat(p.SwitchPressed))
	}
	for _, soil := range s.Soil {
		m.wantsWater.WithLabelValues("soil" + strconv.Itoa(soil.ID)).Set(boolFloat(soil.WantsWater))
	}
	m.wantsWater.WithLabelValues("water").Set(boolFloat(s.WaterPresent))
	m.wantsWater.WithLabelValues("air").Set(boolFloat(s.Air.WantsWater))

	m.knob.Set(float64(s.Knob))
	m.airTemp.Set(s.Air.TemperatureC)
	m.airHumidity.Set(s.Air.HumidityPct)
	m.airFault.Set(boolFloat(s.Air.Fault))
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	m.mqtt.Set(boolFloat(connected))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
