// Package metrics collects Prometheus metrics for the auth flows and their
// collaborators.
package metrics

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services and transport report into.
type Recorder interface {
	RecordFlow(flow string, err error)
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheError()
	RecordMailSent(kind string)
	RecordMailFailure(kind string)
	RecordRateLimited(method string)
}

type Collector struct {
	flows       *prometheus.CounterVec
	cacheLookup *prometheus.CounterVec
	mail        *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophauth_flow_total",
			Help: "Auth flow invocations by flow and result kind.",
		}, []string{"flow", "result"}),
		cacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophauth_session_cache_total",
			Help: "Session cache lookups by outcome.",
		}, []string{"outcome"}),
		mail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophauth_mail_total",
			Help: "Outgoing mail by kind and outcome.",
		}, []string{"kind", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophauth_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"method"}),
	}

	reg.MustRegister(c.flows, c.cacheLookup, c.mail, c.rateLimited)

	return c
}

func (c *Collector) RecordFlow(flow string, err error) {
	c.flows.WithLabelValues(flow, ResultLabel(err)).Inc()
}

func (c *Collector) RecordCacheHit()   { c.cacheLookup.WithLabelValues("hit").Inc() }
func (c *Collector) RecordCacheMiss()  { c.cacheLookup.WithLabelValues("miss").Inc() }
func (c *Collector) RecordCacheError() { c.cacheLookup.WithLabelValues("error").Inc() }

func (c *Collector) RecordMailSent(kind string) {
	c.mail.WithLabelValues(kind, "sent").Inc()
}

func (c *Collector) RecordMailFailure(kind string) {
	c.mail.WithLabelValues(kind, "failed").Inc()
}

func (c *Collector) RecordRateLimited(method string) {
	c.rateLimited.WithLabelValues(method).Inc()
}

// ResultLabel turns an error into a low-cardinality label: "ok" or the
// snake-cased taxonomy kind.
func ResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ReplaceAll(common.KindOf(err).Error(), " ", "_")
}

// Handler serves the registry for Prometheus scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type nop struct{}

// Nop returns a Recorder that records nothing.
func Nop() Recorder { return nop{} }

func (nop) RecordFlow(string, error) {}
func (nop) RecordCacheHit()          {}
func (nop) RecordCacheMiss()         {}
func (nop) RecordCacheError()        {}
func (nop) RecordMailSent(string)    {}
func (nop) RecordMailFailure(string) {}
func (nop) RecordRateLimited(string) {}
