// Package metrics exposes the live control loop state as Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solarflow/solarflow/pkg/types"
)

const namespace = "solarflow"

// Publisher holds the registered gauges. The control loop calls the Publish
// methods at the end of every cycle.
type Publisher struct {
	registry *prometheus.Registry

	pvPower         prometheus.Gauge
	loadPower       prometheus.Gauge
	gridPower       prometheus.Gauge
	batteryPower    prometheus.Gauge
	batterySOC      prometheus.Gauge
	surplus         prometheus.Gauge
	selfConsumption prometheus.Gauge
	autarkyRate     prometheus.Gauge

	deviceOn      *prometheus.GaugeVec
	deviceRuntime *prometheus.GaugeVec
}

// New creates a Publisher with all gauges registered on its own registry.
func New() *Publisher {
	p := &Publisher{
		registry: prometheus.NewRegistry(),
		pvPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pv_power_watts",
			Help:      "Current PV generation [W]",
		}),
		loadPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_power_watts",
			Help:      "Current household consumption [W]",
		}),
		gridPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_power_watts",
			Help:      "Current grid flow, positive when drawing [W]",
		}),
		batteryPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_power_watts",
			Help:      "Current battery flow, positive when discharging [W]",
		}),
		batterySOC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_soc_percent",
			Help:      "Battery state of charge [%]",
		}),
		surplus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "surplus_watts",
			Help:      "Power available for controllable loads [W]",
		}),
		selfConsumption: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "self_consumption_watts",
			Help:      "Load covered by own production [W]",
		}),
		autarkyRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "autarky_rate_percent",
			Help:      "Share of load covered without the grid [%]",
		}),
		deviceOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_on",
			Help:      "1 when the device is switched on",
		}, []string{"device"}),
		deviceRuntime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_runtime_minutes_today",
			Help:      "Accumulated device runtime since midnight [min]",
		}, []string{"device"}),
	}

	p.registry.MustRegister(
		p.pvPower,
		p.loadPower,
		p.gridPower,
		p.batteryPower,
		p.batterySOC,
		p.surplus,
		p.selfConsumption,
		p.autarkyRate,
		p.deviceOn,
		p.deviceRuntime,
	)

	return p
}

// Handler returns the scrape endpoint for the publisher's registry.
func (p *Publisher) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// PublishPower updates the measurement and derived-metric gauges.
func (p *Publisher) PublishPower(snapshot types.PowerSnapshot, metrics types.DerivedMetrics) {
	p.pvPower.Set(snapshot.PVPower)
	p.loadPower.Set(snapshot.LoadPower)
	p.gridPower.Set(snapshot.GridPower)
	p.batteryPower.Set(snapshot.BatteryPower)
	if snapshot.HasBattery() {
		p.batterySOC.Set(*snapshot.BatterySOC)
	}
	p.surplus.Set(metrics.Surplus)
	p.selfConsumption.Set(metrics.SelfConsumption)
	p.autarkyRate.Set(metrics.AutarkyRate)
}

// PublishDevices updates the per-device gauges.
func (p *Publisher) PublishDevices(devices []types.Device) {
	for _, d := range devices {
		on := 0.0
		if d.Status == types.DeviceStatusOn {
			on = 1
		}
		p.deviceOn.WithLabelValues(d.Name).Set(on)
		p.deviceRuntime.WithLabelValues(d.Name).Set(d.RuntimeTodayMinutes)
	}
}
