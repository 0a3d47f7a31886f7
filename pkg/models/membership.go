package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleMember   Role = "member"
	RoleObserver Role = "observer"
)

var roleRank = map[Role]int{
	RoleObserver: 1,
	RoleMember:   2,
	RoleAdmin:    3,
	RoleOwner:    4,
}

// ParseRole accepts the canonical role names plus the French labels used by
// the web client ("Propriétaire", "Membre", "Observateur").
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owner", "propriétaire", "proprietaire":
		return RoleOwner, true
	case "admin":
		return RoleAdmin, true
	case "member", "membre":
		return RoleMember, true
	case "observer", "observateur":
		return RoleObserver, true
	}
	return "", false
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank orders roles by privilege; unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// AtLeast reports whether r carries at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() >= min.Rank() && r.Rank() > 0
}

// CanManage reports whether r may manage membership and invitations.
func (r Role) CanManage() bool { return r.AtLeast(RoleAdmin) }

// CanEdit reports whether r may mutate tasks.
func (r Role) CanEdit() bool { return r.AtLeast(RoleMember) }

// CanRead reports whether r may read project data.
func (r Role) CanRead() bool { return r.AtLeast(RoleObserver) }

// Label returns the display label used by the French web client.
func (r Role) Label() string {
	switch r {
	case RoleOwner:
		return "Propriétaire"
	case RoleAdmin:
		return "Admin"
	case RoleMember:
		return "Membre"
	case RoleObserver:
		return "Observateur"
	}
	return string(r)
}

// Membership relates a user to a project with a role.
type Membership struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`
	User      *User     `json:"users,omitempty" db:"-"`
}
