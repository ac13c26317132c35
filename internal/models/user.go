package models

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a claim value to a Role. Unknown values become RoleUser.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleModerator:
		return RoleModerator
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Actor is the authenticated user performing a request.
type Actor struct {
	ID   int64
	Role Role
}

// IsPrivileged reports whether the actor is a moderator or an admin.
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleModerator || a.Role == RoleAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// User mirrors the host platform's user record.
type User struct {
	ID       int64  `bson:"_id" json:"id"`
	Username string `bson:"username" json:"username"`
	Email    string `bson:"email" json:"email"`
	Role     Role   `bson:"role" json:"role"`
}
