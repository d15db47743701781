// Package metrics defines the sinks that observe discharge tests. Sinks like
// PromSink and InfluxSink record per-iteration progress and schedule
// transitions and can be combined with NewMultiSink. The factory helpers return
// a MultiSink automatically when multiple sinks are configured.
package metrics
