// Package server hosts the optional Fiber diagnostics service and the shared
// outbound HTTP client used for Panopto, token, and webhook traffic. The
// daemon itself needs no inbound surface; the Fiber app only binds when a
// status port is configured and exposes read-only health/status endpoints
// under the /-/ prefix. Keep exports narrow and accept explicit dependencies.
package server
