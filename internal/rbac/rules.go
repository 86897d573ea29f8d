package rbac

const (
	PermTestView        = "test:view"
	PermProgressViewOwn = "progress:view-own"
	PermProgressViewAll = "progress:view-all"
	PermProgressSave    = "progress:save"
	PermAttemptSubmit   = "attempt:submit"
	PermAttemptViewOwn  = "attempt:view-own"
	PermAttemptViewAll  = "attempt:view-all"
	PermEventsRead      = "events:read"
)

var RolePermissions = map[string][]string{
	"student": {
		PermTestView,
		PermProgressViewOwn,
		PermProgressSave,
		PermAttemptSubmit,
		PermAttemptViewOwn,
	},
	"reviewer": {
		PermTestView,
		"progress:view-*",
		"attempt:view-*",
		PermEventsRead,
	},
	"admin": {
		"*",
	},
}
