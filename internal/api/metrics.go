package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adubusi/AI-Family/internal/adapter"
	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/house"
)

// Metrics holds the Prometheus collectors for the simulation and the HTTP
// surface. It implements adapter.Observer.
type Metrics struct {
	reg *prometheus.Registry

	steps     *prometheus.CounterVec
	faults    prometheus.Counter
	heuristic prometheus.Counter
	kwh       prometheus.Counter

	hour    prometheus.Gauge
	bill    prometheus.Gauge
	price   prometheus.Gauge
	power   prometheus.Gauge
	outdoor prometheus.Gauge

	zoneTemp     *prometheus.GaugeVec
	zoneHumidity *prometheus.GaugeVec
	zoneSetpoint *prometheus.GaugeVec

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aifamily_steps_total",
			Help: "Engine timesteps processed by phase.",
		}, []string{"phase"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aifamily_skipped_steps_total",
			Help: "Timesteps skipped because of a fault.",
		}),
		heuristic: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aifamily_heuristic_steps_total",
			Help: "Timesteps billed with the zero-energy heuristic.",
		}),
		kwh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aifamily_energy_kwh_total",
			Help: "HVAC energy billed across runs.",
		}),
		hour: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aifamily_hour",
			Help: "Simulated hour of day, -1 during warm-up.",
		}),
		bill: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aifamily_bill",
			Help: "Bill accumulated in the current day.",
		}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aifamily_price",
			Help: "Current electricity price per kWh.",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aifamily_power_kw",
			Help: "HVAC power over the last timestep.",
		}),
		outdoor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aifamily_outdoor_temperature_celsius",
			Help: "Outdoor dry-bulb temperature.",
		}),
		zoneTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aifamily_zone_temperature_celsius",
			Help: "Zone air temperature.",
		}, []string{"zone"}),
		zoneHumidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aifamily_zone_humidity_percent",
			Help: "Zone relative humidity.",
		}, []string{"zone"}),
		zoneSetpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aifamily_zone_setpoint_celsius",
			Help: "Requested zone setpoint, at or below 1 when off.",
		}, []string{"zone"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.reg.MustRegister(
		m.steps, m.faults, m.heuristic, m.kwh,
		m.hour, m.bill, m.price, m.power, m.outdoor,
		m.zoneTemp, m.zoneHumidity, m.zoneSetpoint,
		m.httpRequestsTotal, m.httpDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveStep implements adapter.Observer.
func (m *Metrics) ObserveStep(r adapter.StepResult) {
	if r.Warmup {
		m.steps.WithLabelValues("warmup").Inc()
		return
	}
	m.steps.WithLabelValues("stepping").Inc()
	if r.Fault != nil {
		m.faults.Inc()
		return
	}
	if r.Heuristic {
		m.heuristic.Inc()
	}
	if r.KWh > 0 {
		m.kwh.Add(r.KWh)
	}
}

// ObserveSnapshot sets the gauges from a channel snapshot.
func (m *Metrics) ObserveSnapshot(s channel.Snapshot) {
	m.hour.Set(s.Hour)
	m.bill.Set(s.Bill)
	m.price.Set(s.Price)
	m.power.Set(s.Power)
	m.outdoor.Set(s.Outdoor)
	for _, z := range house.Zones() {
		zs := s.Zone(z)
		m.zoneTemp.WithLabelValues(z.String()).Set(zs.Temperature)
		m.zoneHumidity.WithLabelValues(z.String()).Set(zs.Humidity)
		m.zoneSetpoint.WithLabelValues(z.String()).Set(zs.Setpoint)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts and times requests to route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
