package domain

import "strings"

// Role is the closed set of sender/participant roles. Free-form role strings
// from tokens or payloads are normalized exactly once at the boundary.
type Role string

const (
	RoleUser     Role = "USER"
	RoleAdmin    Role = "ADMIN"
	RoleSupplier Role = "SUPPLIER"
	RoleAI       Role = "AI"
	RoleSystem   Role = "SYSTEM"
)

// NormalizeRole maps an arbitrary role string onto the closed enum.
// Unknown or empty values default to USER.
func NormalizeRole(raw string) Role {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleSupplier):
		return RoleSupplier
	case string(RoleAI):
		return RoleAI
	case string(RoleSystem):
		return RoleSystem
	default:
		return RoleUser
	}
}

// Privileged reports whether messages from this role reset the unread counter
// instead of incrementing it. Privileged senders also never trigger an AI reply.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleAI
}
