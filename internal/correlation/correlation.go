// Package correlation generates the opaque per-request identifiers that
// tie together the client-facing response, the upstream request, and the
// compare-path request.
package correlation

import "github.com/google/uuid"

// Header is the wire name of the correlation header, kept for backward
// compatibility with the shadow-proxy deployment this system replaces.
const Header = "x-shadow-request-id"

// New returns a fresh, globally-unique opaque identifier in canonical
// UUID-v4 form. Each call is independent — callers generate exactly one
// per inbound request and thread it through both the primary and compare
// paths.
func New() string {
	return uuid.New().String()
}
