package rbac

// Role is a label assigned to a user in the role store. Every user gets
// the base role on signup; admins are promoted out of band.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsAdmin reports whether any of the assigned roles grants access to the
// operator dashboard. All admin checks in the API go through here.
func IsAdmin(roles []Role) bool {
	for _, role := range roles {
		if role == RoleAdmin {
			return true
		}
	}
	return false
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
