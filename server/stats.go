// Live counters: uptime, requests by opcode, entities created, relay
// traffic. Exposed in Prometheus exposition format on the HTTP mux.

package main

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var stats struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	requests *prometheus.CounterVec
}

// statsInit sets up the registry and mounts the scrape handler on the mux.
func statsInit(mux *http.ServeMux, path string) {
	if path == "" || path == "-" {
		return
	}

	stats.registry = prometheus.NewRegistry()
	stats.counters = make(map[string]prometheus.Counter)
	stats.registry.MustRegister(collectors.NewGoCollector())

	startTime := time.Now()
	stats.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "chat_uptime_seconds", Help: "Server uptime."},
		func() float64 { return time.Since(startTime).Seconds() }))

	stats.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chat_requests_total", Help: "Dispatched requests by opcode."},
		[]string{"code"})
	stats.registry.MustRegister(stats.requests)

	mux.Handle(path, promhttp.HandlerFor(stats.registry, promhttp.HandlerOpts{}))
}

// statsRegisterInt registers a named monotonic counter.
func statsRegisterInt(name string) {
	if stats.registry == nil {
		return
	}
	stats.mu.Lock()
	defer stats.mu.Unlock()

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_" + toSnakeCase(name),
		Help: name,
	})
	stats.registry.MustRegister(c)
	stats.counters[name] = c
}

// statsInc increments a registered counter. Unregistered names are
// silently ignored so call sites need no init-order coupling.
func statsInc(name string, val int) {
	if stats.registry == nil {
		return
	}
	stats.mu.Lock()
	c, ok := stats.counters[name]
	stats.mu.Unlock()
	if ok {
		c.Add(float64(val))
	}
}

// statsCountRequest counts one dispatched request by opcode.
func statsCountRequest(code uint32) {
	if stats.requests != nil {
		stats.requests.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
	}
}

// toSnakeCase converts the CamelCase counter names used at call sites to
// the prometheus naming convention.
func toSnakeCase(name string) string {
	out := make([]byte, 0, len(name)+8)
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch >= 'A' && ch <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			ch += 'a' - 'A'
		}
		out = append(out, ch)
	}
	return string(out)
}
