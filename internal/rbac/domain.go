package rbac

import "strings"

// Role is the coarse role carried by every principal.
type Role string

// Known roles.
const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleManager    Role = "manager"
	RoleCustomer   Role = "customer"
)

// ParseRole normalises raw and reports whether it names a known role.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleAdmin, RoleAccountant, RoleManager, RoleCustomer:
		return r, true
	}
	return "", false
}

// Action is a capability checked at the HTTP boundary.
type Action string

// Actions evaluated by May.
const (
	ActionRead              Action = "read"
	ActionWrite             Action = "write"
	ActionApprove           Action = "approve"
	ActionCreateReport      Action = "create_report"
	ActionReadNotifications Action = "read_notifications"
	// ActionSeeAllNotifications lets a principal list notifications addressed
	// to other users.
	ActionSeeAllNotifications Action = "see_all_notifications"
	ActionOperateJobs         Action = "operate_jobs"
)

var policy = map[Action][]Role{
	ActionRead:                {RoleAdmin, RoleAccountant, RoleManager},
	ActionWrite:               {RoleAdmin, RoleAccountant},
	ActionApprove:             {RoleAdmin, RoleManager},
	ActionCreateReport:        {RoleAdmin, RoleAccountant, RoleManager},
	ActionReadNotifications:   {RoleAdmin, RoleAccountant, RoleManager, RoleCustomer},
	ActionSeeAllNotifications: {RoleAdmin, RoleManager},
	ActionOperateJobs:         {RoleAdmin},
}

// May reports whether role is allowed to perform action.
func May(role Role, action Action) bool {
	for _, allowed := range policy[action] {
		if allowed == role {
			return true
		}
	}
	return false
}
