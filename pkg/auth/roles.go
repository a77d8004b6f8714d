package auth

// Role represents the privilege of an admin API key
type Role int

const (
	// Viewer can read proxy status
	Viewer Role = iota
	// Admin can also rotate credentials and reset the limiter
	Admin
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Viewer:
		return "viewer"
	default:
		return "unknown"
	}
}

// ParseRole converts a string to a Role
func ParseRole(roleStr string) Role {
	switch roleStr {
	case "admin":
		return Admin
	default:
		return Viewer // Default to lowest privilege
	}
}

// HasPermission checks if the role has sufficient permissions for the required role
// Higher roles automatically have permissions for lower roles
func (r Role) HasPermission(required Role) bool {
	return r >= required
}
