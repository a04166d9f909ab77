package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a Network counter set to a prometheus registry.
// Counters are read on scrape; nothing is recorded through prometheus on the
// request hot path.
type Collector struct {
	network *Network

	requests  *prometheus.Desc
	retries   *prometheus.Desc
	sleep     *prometheus.Desc
	transfer  *prometheus.Desc
	bytes     *prometheus.Desc
	responses *prometheus.Desc
}

// NewCollector wraps the given Network counters for prometheus exposition.
func NewCollector(network *Network) *Collector {
	ns := "wikibatch"
	return &Collector{
		network: network,
		requests: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "network", "requests_total"),
			"Finished transfer attempts, successful or not", nil, nil),
		retries: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "network", "retries_total"),
			"Retry cycles triggered by retryable outcomes", nil, nil),
		sleep: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "network", "backoff_seconds_total"),
			"Total backoff time slept between attempts", nil, nil),
		transfer: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "network", "transfer_seconds_total"),
			"Wall-clock time spent inside transfers", nil, nil),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "network", "received_bytes_total"),
			"Sum of response body sizes", nil, nil),
		responses: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "network", "responses_total"),
			"Responses by HTTP status code", []string{"code"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.retries
	ch <- c.sleep
	ch <- c.transfer
	ch <- c.bytes
	ch <- c.responses
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(c.network.Requests()))
	ch <- prometheus.MustNewConstMetric(c.retries, prometheus.CounterValue, float64(c.network.Retries()))
	ch <- prometheus.MustNewConstMetric(c.sleep, prometheus.CounterValue, c.network.SleepTime().Seconds())
	ch <- prometheus.MustNewConstMetric(c.transfer, prometheus.CounterValue, c.network.NetworkTime().Seconds())
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(c.network.BytesReceived()))
	for code, count := range c.network.Statuses() {
		ch <- prometheus.MustNewConstMetric(c.responses, prometheus.CounterValue, float64(count), strconv.Itoa(code))
	}
}
