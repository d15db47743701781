// Package readings registers the reading.Source backends: an in-memory
// cache, PostgreSQL latest-value tables, MQTT topics and Redis hashes.
package readings
