package domain

import "time"

// Role enumerates what a principal may do.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleTech  Role = "TECH"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTech || r == RoleUser
}

// Staff reports whether the role works tickets (ADMIN or TECH).
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleTech
}

// User is an account able to sign in.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID string
	Role   Role
}

// Authenticated reports whether the principal carries an identity and a known role.
func (p Principal) Authenticated() bool {
	return p.UserID != "" && p.Role.Valid()
}
