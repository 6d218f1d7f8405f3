// Package middleware provides HTTP middleware for warden's operational
// endpoints: Prometheus request metrics and OpenTelemetry tracing.
package middleware
