// Package metricsvc exposes the domain counters to prometheus.
package metricsvc

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/alama/core"
)

type Metrics struct {
	registry       *prometheus.Registry
	marksRecorded  prometheus.Counter
	examsPublished prometheus.Counter
	noticesCreated prometheus.Counter
	publications   prometheus.Counter
	reportsServed  *prometheus.CounterVec
}

var _ core.Metrics = (*Metrics)(nil)

// New registers the counters, plus the go and process collectors, on a dedicated registry.
func New(conf *core.Config) *Metrics {
	ns := strings.ToLower(strings.ReplaceAll(conf.AppName, " ", "_"))
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		marksRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "marks_recorded_total",
			Help:      "Number of exam marks recorded or corrected.",
		}),
		examsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "exams_published_total",
			Help:      "Number of exams whose results were published.",
		}),
		noticesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "notices_created_total",
			Help:      "Number of notices created by result publications.",
		}),
		publications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "publications_total",
			Help:      "Number of class term publications.",
		}),
		reportsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reports_served_total",
			Help:      "Number of reports served, by kind and cache hit.",
		}, []string{"kind", "cached"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.marksRecorded,
		m.examsPublished,
		m.noticesCreated,
		m.publications,
		m.reportsServed,
	)
	return m
}

func (m *Metrics) MarksRecorded(count int) {
	m.marksRecorded.Add(float64(count))
}

func (m *Metrics) ResultsPublished(exams, notices int) {
	m.publications.Inc()
	m.examsPublished.Add(float64(exams))
	m.noticesCreated.Add(float64(notices))
}

func (m *Metrics) ReportServed(kind string, cached bool) {
	m.reportsServed.WithLabelValues(kind, strconv.FormatBool(cached)).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
