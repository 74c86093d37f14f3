package auth

const (
	RoleEmployee    = "Employee"
	RoleManager     = "Manager"
	RoleHR          = "HR"
	RoleSystemAdmin = "SystemAdmin"
)

const (
	PermTasksRead              = "tasks.read"
	PermTasksWrite             = "tasks.write"
	PermTasksProgress          = "tasks.progress"
	PermTasksReview            = "tasks.review"
	PermPerformanceRead        = "performance.read"
	PermPerformanceRecalculate = "performance.recalculate"
	PermLeaderboardRead        = "performance.leaderboard"
	PermAuditRead              = "audit.read"
	PermSystemAdmin            = "admin.system"
)

var DefaultPermissions = []string{
	PermTasksRead,
	PermTasksWrite,
	PermTasksProgress,
	PermTasksReview,
	PermPerformanceRead,
	PermPerformanceRecalculate,
	PermLeaderboardRead,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermTasksRead,
		PermTasksProgress,
		PermPerformanceRead,
		PermLeaderboardRead,
	},
	RoleManager: {
		PermTasksRead,
		PermTasksWrite,
		PermTasksProgress,
		PermTasksReview,
		PermPerformanceRead,
		PermPerformanceRecalculate,
		PermLeaderboardRead,
		PermAuditRead,
	},
	RoleHR: {
		PermTasksRead,
		PermTasksWrite,
		PermTasksProgress,
		PermTasksReview,
		PermPerformanceRead,
		PermPerformanceRecalculate,
		PermLeaderboardRead,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermSystemAdmin,
		PermPerformanceRecalculate,
	},
}

// ManagerLevel reports whether the role can create and review tasks at all.
// Whether it may act for a given employee is decided by the access resolver.
func ManagerLevel(roleName string) bool {
	return roleName == RoleManager || roleName == RoleHR
}
