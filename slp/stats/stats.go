/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stats exports the SLP agent's counters over the prometheus text
// format.
package stats

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/lighting/slp/agent"
)

// Exporter polls an agent's counters on scrape
type Exporter struct {
	registry *prometheus.Registry
	agent    *agent.Agent
}

// NewExporter wires the agent's counters into a fresh registry
func NewExporter(a *agent.Agent) *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry(), agent: a}

	gauge := func(name, help string, value func(agent.Counters) float64) {
		e.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "slp",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(a.Counters()) }))
	}
	gauge("packets_received_total", "SLP packets received",
		func(c agent.Counters) float64 { return float64(c.PacketsReceived) })
	gauge("packets_sent_total", "SLP packets sent",
		func(c agent.Counters) float64 { return float64(c.PacketsSent) })
	gauge("parse_errors_total", "SLP packets dropped as malformed",
		func(c agent.Counters) float64 { return float64(c.ParseErrors) })
	gauge("registrations_total", "registrations acked by DAs",
		func(c agent.Counters) float64 { return float64(c.Registrations) })
	gauge("directory_agents", "directory agents currently known",
		func(c agent.Counters) float64 { return float64(c.DACount) })
	gauge("service_types", "distinct service types in the store",
		func(c agent.Counters) float64 { return float64(c.ServiceTypes) })
	return e
}

// Handler returns the scrape handler
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Start serves /metrics on the port, blocking forever
func (e *Exporter) Start(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), mux))
}
