package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest marks malformed inbound payloads so handlers can
	// map them to a 400 without inspecting message text.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSchemaUnavailable means no allow-listed table could be described.
	// This is a provisioning failure, surfaced as a hard request error
	// rather than a conversational reply.
	ErrSchemaUnavailable = errors.New("schema catalog unavailable")

	// ErrNoTenantScope means the request context carries no authorized
	// tenant set. The pipeline refuses to run without one.
	ErrNoTenantScope = errors.New("no tenant scope in request context")
)
