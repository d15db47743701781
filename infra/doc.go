// Package infra holds the adapters behind the core interfaces: schedule
// stores, reading sources, MQTT, metrics sinks, Sentry and logging. Backends
// register themselves with the core factories from init functions, so
// importing a package for side effects makes its types available to config.
package infra
