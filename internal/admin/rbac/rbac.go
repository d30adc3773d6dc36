package rbac

import (
	"strconv"
	"strings"
)

// Role is the numeric access tier issued by the backend at login ("0" through "4").
type Role string

const (
	RoleNone       Role = "0"
	RoleUser       Role = "1"
	RoleAdmin      Role = "2"
	RoleSuperAdmin Role = "3"
	RoleUnlimited  Role = "4"
)

// Label returns the display name of the role.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAdmin:
		return "Admin"
	case RoleSuperAdmin:
		return "Super admin"
	case RoleUnlimited:
		return "Unlimited admin"
	default:
		return "No access"
	}
}

// Valid reports whether r is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleUser, RoleAdmin, RoleSuperAdmin, RoleUnlimited:
		return true
	}
	return false
}

// Capability represents a discrete feature toggle which can be checked in handlers and templates.
type Capability string

const (
	CapConsoleView    Capability = "console.view"
	CapAccountsManage Capability = "accounts.manage"
	CapVideosProcess  Capability = "videos.process"
	CapVideosBrowse   Capability = "videos.browse"
	CapVideosDelete   Capability = "videos.delete"
	CapVideosManage   Capability = "videos.manage.all"
)

var (
	members = Roles{RoleUser, RoleAdmin, RoleSuperAdmin, RoleUnlimited}
	admins  = Roles{RoleAdmin, RoleSuperAdmin, RoleUnlimited}
	supers  = Roles{RoleSuperAdmin, RoleUnlimited}
)

// capabilityRoles maps each capability to the roles permitted to access it.
var capabilityRoles = map[Capability]Roles{
	CapConsoleView:    members,
	CapAccountsManage: members,
	CapVideosProcess:  members,
	CapVideosBrowse:   members,
	CapVideosDelete:   admins,
	CapVideosManage:   supers,
}

// Roles captures a list of roles.
type Roles []Role

// Has returns true if the provided role exists in the set.
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// NormaliseRole converts a raw role value (string or number rendered as text) into a Role.
// Unknown or empty values resolve to RoleNone.
func NormaliseRole(raw string) Role {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RoleNone
	}
	if n, err := strconv.Atoi(raw); err == nil {
		raw = strconv.Itoa(n)
	}
	role := Role(raw)
	if !role.Valid() {
		return RoleNone
	}
	return role
}

// RolesForCapability returns the configured roles able to access the capability.
func RolesForCapability(cap Capability) Roles {
	if roles, ok := capabilityRoles[cap]; ok {
		return roles
	}
	return nil
}

// HasCapability reports whether role grants access to the capability.
func HasCapability(role Role, capability Capability) bool {
	if capability == "" {
		return true
	}
	return RolesForCapability(capability).Has(NormaliseRole(string(role)))
}

// CapabilitiesFor enumerates the capabilities accessible to role.
func CapabilitiesFor(role Role) map[Capability]bool {
	role = NormaliseRole(string(role))
	caps := make(map[Capability]bool, len(capabilityRoles))
	for capability, allowed := range capabilityRoles {
		if allowed.Has(role) {
			caps[capability] = true
		}
	}
	return caps
}
