// Package metrics records circuit-utilization samples to InfluxDB.
//
// The feed is optional and disabled by default. Samples are computed live
// by the caller from circuit state and shipped via the non-blocking write
// API; a nil *Recorder drops everything, so wiring code never branches on
// whether metrics are enabled.
package metrics
