package enums

import (
	"fmt"
	"strings"
)

// ActorRole identifies who triggered an order operation.
type ActorRole string

const (
	ActorRoleBuyer   ActorRole = "buyer"
	ActorRoleAdmin   ActorRole = "admin"
	ActorRoleGateway ActorRole = "gateway"
)

var validActorRoles = []ActorRole{
	ActorRoleBuyer,
	ActorRoleAdmin,
	ActorRoleGateway,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the role is recognized.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input (case-insensitive) into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validActorRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
