// Package api implements the radar-server HTTP surface: the read endpoints
// over the scoring store, the authenticated ingest endpoint that runs the
// orchestrator, and the Prometheus /metrics exposition.
package api
