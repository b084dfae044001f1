// Package metrics exposes purifier state and pipeline counters as
// Prometheus metrics, fed from the coordinator event bus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/device"
)

const namespace = "purifier"

// Collector owns a private registry so tests and multiple instances do not
// collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	fanPercent    prometheus.Gauge
	fanMode       *prometheus.GaugeVec
	autoActive    prometheus.Gauge
	brightness    prometheus.Gauge
	pm25          prometheus.Gauge
	airQuality    prometheus.Gauge
	buttons       *prometheus.CounterVec
	unknownReads  prometheus.Counter
	factoryResets prometheus.Counter
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		fanPercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fan",
			Name:      "percent",
			Help:      "Current fan speed in percent",
		}),
		fanMode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fan",
			Name:      "mode",
			Help:      "Active fan mode (1 for the current mode)",
		}, []string{"mode"}),
		autoActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fan",
			Name:      "auto_active",
			Help:      "Whether the fan follows air quality",
		}),
		brightness: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "display",
			Name:      "brightness",
			Help:      "Display brightness level (0-3)",
		}),
		pm25: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "pm25_ugm3",
			Help:      "Last valid PM2.5 concentration",
		}),
		airQuality: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "air_quality",
			Help:      "Last air quality level (0=unknown, 1=good .. 6=extremely poor)",
		}),
		buttons: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buttons",
			Name:      "presses_total",
			Help:      "Classified button presses",
		}, []string{"button", "kind"}),
		unknownReads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "unknown_readings_total",
			Help:      "Sensor cycles that produced no usable frame",
		}),
		factoryResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "factory_resets_total",
			Help:      "Factory resets performed",
		}),
	}
}

// AddCounterFunc exposes an externally maintained counter, such as the
// button queue drop count.
func (c *Collector) AddCounterFunc(subsystem, name, help string, fn func() uint64) {
	promauto.With(c.registry).NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(fn()) })
}

// Subscribe updates the metrics from bus events. Returns an unsubscribe function.
func (c *Collector) Subscribe(bus *coordinator.EventBus) func() {
	return bus.OnAll(c.handle)
}

func (c *Collector) handle(ev coordinator.Event) {
	switch ev.Type {
	case coordinator.EventStateChanged:
		if s, ok := ev.Data.(coordinator.DeviceState); ok {
			c.observeState(s)
		}
	case coordinator.EventAirQuality:
		if r, ok := ev.Data.(device.Reading); ok {
			c.observeReading(r)
		}
	case coordinator.EventButton:
		if b, ok := ev.Data.(device.ButtonEvent); ok {
			kind := "short"
			if b.LongPress {
				kind = "long"
			}
			c.buttons.WithLabelValues(b.Source.String(), kind).Inc()
		}
	case coordinator.EventFactoryReset:
		c.factoryResets.Inc()
	}
}

var modes = []device.FanMode{device.FanModeOff, device.FanModeLow, device.FanModeMedium, device.FanModeHigh, device.FanModeAuto}

func (c *Collector) observeState(s coordinator.DeviceState) {
	c.fanPercent.Set(float64(s.Percentage))
	for _, m := range modes {
		v := 0.0
		if m == s.Mode {
			v = 1
		}
		c.fanMode.WithLabelValues(m.String()).Set(v)
	}
	if s.AutoModeActive {
		c.autoActive.Set(1)
	} else {
		c.autoActive.Set(0)
	}
	c.brightness.Set(float64(s.Brightness))
}

func (c *Collector) observeReading(r device.Reading) {
	c.airQuality.Set(float64(r.Level))
	if r.Level == device.QualityUnknown {
		c.unknownReads.Inc()
		return
	}
	c.pm25.Set(float64(r.PM25))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
