// Package daemonapi defines the JSON envelope types for tagfdd's
// enumeration, health, and error responses, each carrying a schema
// version and a generated-at timestamp.
//
// Tag reads and writes, and administrative creation, carry the raw
// wire-format records defined in tagtype as their request/response
// bodies, not JSON: a client that already speaks the kernel-facing
// contract should not have to re-encode it to talk to the daemon.
package daemonapi

import "time"

const SchemaVersion = "v1"

// APIError is the stable, client-facing error shape. Code is a
// tagerr.Code string; Message is a human-readable detail, not part of the
// stable contract.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Error         APIError  `json:"error"`
}

// TagSummary is one entry in the GET /v1/tags enumeration.
type TagSummary struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
}

// TagsEnvelope wraps the GET /v1/tags response.
type TagsEnvelope struct {
	SchemaVersion string       `json:"schema_version"`
	GeneratedAt   time.Time    `json:"generated_at"`
	Tags          []TagSummary `json:"tags"`
}

// HealthResponse answers GET /v1/health.
type HealthResponse struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Status        string    `json:"status"`
}
