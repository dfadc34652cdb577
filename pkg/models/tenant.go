package models

import (
	"fmt"

	"github.com/google/uuid"
)

// TenantScope is the ordered set of tenant identifiers the current caller is
// authorized to see. It is constructed once per request from the
// authenticated caller's memberships and never mutated afterwards.
type TenantScope struct {
	ids []string
}

// NewTenantScope builds a scope from raw identifiers. Each identifier must
// be a canonical UUID string; duplicates are dropped while preserving order.
// An empty result is an error: a caller with no memberships has no business
// reaching the query pipeline.
func NewTenantScope(ids []string) (TenantScope, error) {
	seen := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return TenantScope{}, fmt.Errorf("invalid tenant id %q: %w", id, err)
		}
		canonical := parsed.String()
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		ordered = append(ordered, canonical)
	}
	if len(ordered) == 0 {
		return TenantScope{}, fmt.Errorf("tenant scope must not be empty")
	}
	return TenantScope{ids: ordered}, nil
}

// Contains reports whether id is one of the authorized tenants.
func (s TenantScope) Contains(id string) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any of the given ids is authorized.
func (s TenantScope) ContainsAny(ids []string) bool {
	for _, id := range ids {
		if s.Contains(id) {
			return true
		}
	}
	return false
}

// IDs returns a copy of the authorized tenant identifiers in order.
func (s TenantScope) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of authorized tenants.
func (s TenantScope) Len() int {
	return len(s.ids)
}

// IsEmpty reports whether the scope holds no tenants (zero value).
func (s TenantScope) IsEmpty() bool {
	return len(s.ids) == 0
}
