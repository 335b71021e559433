package domain

import (
	"fmt"
	"strings"
)

// PermissionLevel is the ownership threshold a user may hold on a document.
type PermissionLevel int

// Permission levels, ordered.
const (
	PermissionNone     PermissionLevel = 0
	PermissionLimited  PermissionLevel = 1
	PermissionObserver PermissionLevel = 2
	PermissionOwner    PermissionLevel = 3
)

// DefaultOwnershipKey is the ownership map key applying to users without an
// explicit entry.
const DefaultOwnershipKey = "default"

// String returns the canonical level name.
func (p PermissionLevel) String() string {
	switch p {
	case PermissionNone:
		return "NONE"
	case PermissionLimited:
		return "LIMITED"
	case PermissionObserver:
		return "OBSERVER"
	case PermissionOwner:
		return "OWNER"
	default:
		return fmt.Sprintf("PermissionLevel(%d)", int(p))
	}
}

// IsValid reports whether p is a recognised level.
func (p PermissionLevel) IsValid() bool {
	return p >= PermissionNone && p <= PermissionOwner
}

// ParsePermissionLevel accepts a numeric level or its name (case-insensitive)
// and returns the corresponding PermissionLevel.
func ParsePermissionLevel(v any) (PermissionLevel, error) {
	switch t := v.(type) {
	case PermissionLevel:
		if t.IsValid() {
			return t, nil
		}
	case int:
		p := PermissionLevel(t)
		if p.IsValid() {
			return p, nil
		}
	case float64:
		p := PermissionLevel(int(t))
		if p.IsValid() {
			return p, nil
		}
	case string:
		switch strings.ToUpper(t) {
		case "NONE":
			return PermissionNone, nil
		case "LIMITED":
			return PermissionLimited, nil
		case "OBSERVER":
			return PermissionObserver, nil
		case "OWNER":
			return PermissionOwner, nil
		}
	}
	return PermissionNone, fmt.Errorf("unrecognised permission level %v", v)
}

// Role is a user's privilege tier within the world.
type Role int

// User roles, ordered.
const (
	RoleNone       Role = 0
	RolePlayer     Role = 1
	RoleTrusted    Role = 2
	RoleAssistant  Role = 3
	RoleGamemaster Role = 4
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleNone:
		return "NONE"
	case RolePlayer:
		return "PLAYER"
	case RoleTrusted:
		return "TRUSTED"
	case RoleAssistant:
		return "ASSISTANT"
	case RoleGamemaster:
		return "GAMEMASTER"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// User identifies the acting client and its privilege tier.
type User struct {
	// ID is the user's document id.
	ID string

	// Name is the display name.
	Name string

	// Role is the privilege tier.
	Role Role
}

// IsGM reports whether the user holds assistant privileges or better.
func (u *User) IsGM() bool {
	return u != nil && u.Role >= RoleAssistant
}
