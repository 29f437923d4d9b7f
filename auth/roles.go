package auth

// Role is a user role. Roles are ordered: student < cashier < admin.
type Role string

const (
	RoleStudent Role = "student"
	RoleCashier Role = "cashier"
	RoleAdmin   Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleStudent, RoleCashier, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleStudent:
		return 1
	case RoleCashier:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
