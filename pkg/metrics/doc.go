// Package metrics exposes health-check results as Prometheus metrics
// written to a textfile for node-exporter collection. The controller is
// a short-lived command, so there is no scrape endpoint.
package metrics
