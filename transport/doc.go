// Package transport provides the HTTP execution layer shared by all
// provisioning API operations.
//
// A Client wraps request execution with bounded exponential-backoff retry
// for idempotent-safe failures: connection or timeout errors and
// server-error (5xx) responses. Client errors (4xx) indicate a request that
// will not succeed on repetition and are surfaced immediately. The backoff
// delay starts at a configurable base and doubles per retry.
//
// Different logical operations carry different timeouts: status queries use
// a short per-request override, submissions a long one. The override
// mechanism lives on Request; the values are configuration owned by the
// callers.
//
// Every request carries the API key, a client-identifier header, and a
// generated request ID for log correlation.
package transport
