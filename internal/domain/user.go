package domain

import "time"

// IdentityRecord is the denormalized identity stored next to a role's tokens.
type IdentityRecord struct {
	ID          int64   `json:"id"`
	LoginID     string  `json:"loginId"`
	DisplayName string  `json:"displayName"`
	Role        RoleTag `json:"role"`
	RoleCode    string  `json:"roleCode,omitempty"`
	RoleName    string  `json:"roleName,omitempty"`
}

// Matches reports whether the record carries the tag of role.
func (r IdentityRecord) Matches(role Role) bool {
	return role.Valid() && r.Role == role.Tag()
}

// AccountStatus represents lifecycle states for a portal account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// Account is the backend model for users and administrators who can log in.
type Account struct {
	ID           int64
	LoginID      string
	DisplayName  string
	PasswordHash string
	Role         RoleTag
	RoleCode     string
	RoleName     string
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the account onto the record handed to clients.
func (a *Account) Identity() IdentityRecord {
	return IdentityRecord{
		ID:          a.ID,
		LoginID:     a.LoginID,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		RoleCode:    a.RoleCode,
		RoleName:    a.RoleName,
	}
}
