// Package metrics exports fare check results to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

// Recorder holds the farewatch collectors. A nil *Recorder discards everything.
type Recorder struct {
	gatherer   prometheus.Gatherer
	checks     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	cheapest   *prometheus.GaugeVec
	offers     *prometheus.GaugeVec
	challenges *prometheus.CounterVec
	lastRun    prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(namespace string, reg *prometheus.Registry) (*Recorder, error) {
	if namespace == "" {
		namespace = "farewatch"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		gatherer: reg,
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_checks_total",
			Help:      "Route checks by outcome.",
		}, []string{"route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_check_duration_seconds",
			Help:      "Wall time of one route check.",
			Buckets:   []float64{5, 15, 30, 60, 90, 120, 180, 300},
		}, []string{"route"}),
		cheapest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cheapest_price",
			Help:      "Cheapest fare seen in the last check of a route.",
		}, []string{"route", "date", "currency"}),
		offers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "offers",
			Help:      "Number of distinct offers in the last check of a route.",
		}, []string{"route"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenge_outcomes_total",
			Help:      "Terminal challenge states seen by route checks.",
		}, []string{"state"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
	}

	var err error
	if r.checks, err = register(reg, r.checks); err != nil {
		return nil, err
	}
	if r.duration, err = register(reg, r.duration); err != nil {
		return nil, err
	}
	if r.cheapest, err = register(reg, r.cheapest); err != nil {
		return nil, err
	}
	if r.offers, err = register(reg, r.offers); err != nil {
		return nil, err
	}
	if r.challenges, err = register(reg, r.challenges); err != nil {
		return nil, err
	}
	if r.lastRun, err = register(reg, r.lastRun); err != nil {
		return nil, err
	}
	return r, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// ObserveRoute records one finished route check.
func (r *Recorder) ObserveRoute(res fares.RouteResult, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.checks.WithLabelValues(res.Route, res.Status()).Inc()
	r.duration.WithLabelValues(res.Route).Observe(elapsed.Seconds())
	r.offers.WithLabelValues(res.Route).Set(float64(len(res.Flights)))
	if res.Cheapest != nil {
		r.cheapest.WithLabelValues(res.Route, res.Date, res.Cheapest.Currency).Set(float64(res.Cheapest.Price))
	}
	if res.Challenge != "" {
		r.challenges.WithLabelValues(res.Challenge).Inc()
	}
}

// ObserveRun marks the end of a run.
func (r *Recorder) ObserveRun(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
