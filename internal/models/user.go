package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleCustomer  Role = "CUSTOMER"
	RoleAdmin     Role = "ADMIN"
	RoleReseller  Role = "RESELLER"
	RoleModerator Role = "MODERATOR"
)

// ParseRole normalizes a role claim. Unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleAdmin, RoleReseller, RoleModerator:
		return r, true
	}
	return "", false
}

func (r Role) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleReseller || r == RoleModerator
}

// Principal is the authenticated caller.
type Principal struct {
	ID   int64
	Role Role
}

func (p Principal) CanSee(o *Order) bool {
	return p.Role.IsAdministrative() || o.UserID == p.ID
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,unique,notnull"`
	Role      string    `bun:"role,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
