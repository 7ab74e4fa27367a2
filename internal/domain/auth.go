package domain

// Role identifies one of the two independent login identities a client may hold.
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RoleTag is the single-letter role marker carried on identity records and tokens.
type RoleTag string

const (
	RoleTagUser  RoleTag = "U"
	RoleTagAdmin RoleTag = "A"
)

// Roles lists every concrete role in precedence order.
var Roles = []Role{RoleAdmin, RoleUser}

// Valid reports whether r is a concrete role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Opposite returns the other concrete role.
func (r Role) Opposite() Role {
	switch r {
	case RoleUser:
		return RoleAdmin
	case RoleAdmin:
		return RoleUser
	default:
		return RoleNone
	}
}

// Tag returns the identity tag expected for the role.
func (r Role) Tag() RoleTag {
	switch r {
	case RoleUser:
		return RoleTagUser
	case RoleAdmin:
		return RoleTagAdmin
	default:
		return ""
	}
}

// RoleFromTag maps an identity tag back to its role.
func RoleFromTag(tag RoleTag) Role {
	switch tag {
	case RoleTagUser:
		return RoleUser
	case RoleTagAdmin:
		return RoleAdmin
	default:
		return RoleNone
	}
}

// TokenPair is the credential pair owned by one role namespace.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
