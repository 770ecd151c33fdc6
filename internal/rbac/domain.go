package rbac

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse role carried on a profile.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleCollaborator Role = "collaborator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCollaborator:
		return true
	}
	return false
}

// Module identifies a business area of the platform. It is both the
// permission domain and the dashboard card set.
type Module string

const (
	ModuleMarketing Module = "marketing"
	ModuleCRM       Module = "crm"
	ModuleFinancial Module = "financial"
	ModuleRender    Module = "render"
	ModuleProcesses Module = "processes"
	ModuleUsers     Module = "users"
)

// Modules lists every module in display order.
func Modules() []Module {
	return []Module{
		ModuleMarketing,
		ModuleCRM,
		ModuleFinancial,
		ModuleRender,
		ModuleProcesses,
		ModuleUsers,
	}
}

// ParseModule normalises raw into a known Module.
func ParseModule(raw string) (Module, error) {
	m := Module(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Modules() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown module %q", raw)
}

// Action is an operation gated per module.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Actions lists the gated actions.
func Actions() []Action {
	return []Action{ActionRead, ActionWrite, ActionDelete}
}

// Profile is the extended record kept 1:1 with a backend identity.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FirstName returns the first word of the full name.
func (p *Profile) FirstName() string {
	if p == nil {
		return ""
	}
	fields := strings.Fields(p.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Initials returns up to two upper-case initials of the full name.
func (p *Profile) Initials() string {
	if p == nil {
		return "U"
	}
	var initials []rune
	for _, word := range strings.Fields(p.FullName) {
		initials = append(initials, []rune(strings.ToUpper(word))[0])
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return "U"
	}
	return string(initials)
}

// Grant holds a user's per-module permission flags. At most one grant
// exists per (UserID, Module).
type Grant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Module    Module    `json:"module"`
	CanRead   bool      `json:"can_read"`
	CanWrite  bool      `json:"can_write"`
	CanDelete bool      `json:"can_delete"`
	CreatedAt time.Time `json:"created_at"`
}

// Allows returns the flag for action. Unknown actions are denied.
func (g Grant) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return g.CanRead
	case ActionWrite:
		return g.CanWrite
	case ActionDelete:
		return g.CanDelete
	default:
		return false
	}
}
