package authz

const (
	RolePayrollAdmin    = "payroll-admin"
	RolePayrollReviewer = "payroll-reviewer"
	RoleAnonymous       = "anonymous"
)

const (
	ActionRead        = "read"
	ActionValidate    = "validate"
	ActionVerify      = "verify"
	ActionRecalculate = "recalculate"
)

const (
	ObjectPayrollReviewRuns   = "payrollreview.runs"
	ObjectPayrollReviewIssues = "payrollreview.issues"
)
