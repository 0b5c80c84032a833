package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentFrequency string

const (
	FrequencyWeekly      PaymentFrequency = "weekly"
	FrequencyBiweekly    PaymentFrequency = "biweekly"
	FrequencySemimonthly PaymentFrequency = "semimonthly"
	FrequencyMonthly     PaymentFrequency = "monthly"
)

type PayrollRun struct {
	RunUUID          string           `json:"run_uuid"`
	PeriodStart      string           `json:"period_start"`
	PeriodEnd        string           `json:"period_end"`
	PaymentFrequency PaymentFrequency `json:"payment_frequency"`
	Status           string           `json:"status"`
}

type LineItem struct {
	EmployeeID    string                     `json:"employee_id"`
	EmployeeName  string                     `json:"employee_name"`
	BaseSalary    decimal.Decimal            `json:"base_salary"`
	GrossSalary   decimal.Decimal            `json:"gross_salary"`
	NetSalary     decimal.Decimal            `json:"net_salary"`
	OvertimeHours map[string]decimal.Decimal `json:"overtime_hours"`
	OvertimePay   decimal.Decimal            `json:"overtime_pay"`
	Bonuses       decimal.Decimal            `json:"bonuses"`
	DaysWorked    int                        `json:"days_worked"`
	DaysAbsent    int                        `json:"days_absent"`
}

type IssueType string

const (
	IssueTypeError   IssueType = "error"
	IssueTypeWarning IssueType = "warning"
	IssueTypeInfo    IssueType = "info"
)

type IssueCategory string

const (
	CategoryOvertime   IssueCategory = "overtime"
	CategoryComparison IssueCategory = "comparison"
	CategoryProrata    IssueCategory = "prorata"
	CategoryDeduction  IssueCategory = "deduction"
	CategoryBonus      IssueCategory = "bonus"
)

type ValidationIssue struct {
	IssueUUID      string           `json:"issue_uuid"`
	RunUUID        string           `json:"run_uuid"`
	EmployeeID     string           `json:"employee_id"`
	IssueType      IssueType        `json:"issue_type"`
	Category       IssueCategory    `json:"category"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty"`
	ActualAmount   *decimal.Decimal `json:"actual_amount,omitempty"`
	Resolved       bool             `json:"resolved"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Finding is a detector result before it is bound to a run and stored.
type Finding struct {
	EmployeeID     string
	IssueType      IssueType
	Category       IssueCategory
	Title          string
	Description    string
	ExpectedAmount *decimal.Decimal
	ActualAmount   *decimal.Decimal
}

type ValidationSummary struct {
	Issues      []ValidationIssue `json:"issues"`
	TotalIssues int               `json:"total_issues"`
	Errors      int               `json:"errors"`
	Warnings    int               `json:"warnings"`
	Info        int               `json:"info"`
}

type VerificationState string

const (
	VerificationUnverified VerificationState = "unverified"
	VerificationVerified   VerificationState = "verified"
	VerificationFlagged    VerificationState = "flagged"
	VerificationAutoOK     VerificationState = "auto_ok"
)

// VerificationStatus rows exist only for employees somebody acted on;
// absence of a row means "unverified" and is never materialized.
type VerificationStatus struct {
	RunUUID    string            `json:"run_uuid"`
	EmployeeID string            `json:"employee_id"`
	Status     VerificationState `json:"status"`
	VerifiedBy string            `json:"verified_by"`
	VerifiedAt time.Time         `json:"verified_at"`
	Notes      string            `json:"notes,omitempty"`
}

type TimeEntry struct {
	WorkDate string          `json:"work_date"`
	Hours    decimal.Decimal `json:"hours"`
}

// OvertimeTier carries hours per premium bracket. Amount stays zero until
// the calculation engine publishes authoritative tier multipliers; only the
// aggregate overtime pay is authoritative.
type OvertimeTier struct {
	Tier   string          `json:"tier"`
	Hours  decimal.Decimal `json:"hours"`
	Amount decimal.Decimal `json:"amount"`
}

type OvertimeBreakdown struct {
	RunUUID            string          `json:"run_uuid"`
	EmployeeID         string          `json:"employee_id"`
	EmployeeName       string          `json:"employee_name"`
	PeriodStart        string          `json:"period_start"`
	PeriodEnd          string          `json:"period_end"`
	TotalHours         decimal.Decimal `json:"total_hours"`
	NormalHours        decimal.Decimal `json:"normal_hours"`
	TotalOvertimeHours decimal.Decimal `json:"total_overtime_hours"`
	HourlyRate         decimal.Decimal `json:"hourly_rate"`
	OvertimePay        decimal.Decimal `json:"overtime_pay"`
	Tiers              []OvertimeTier  `json:"tiers"`
	Entries            []TimeEntry     `json:"entries"`
}

// ReviewRule is a tenant-defined advisory rule. Expressions are CEL over a
// string map named "item"; findings they emit are advisory info only and
// never alter the built-in detection thresholds.
type ReviewRule struct {
	RuleID          string        `json:"rule_id"`
	Priority        int           `json:"priority"`
	EffectiveDate   string        `json:"effective_date"`
	EndDate         string        `json:"end_date,omitempty"`
	EligibilityExpr string        `json:"eligibility_expr"`
	TitleExpr       string        `json:"title_expr"`
	DetailExpr      string        `json:"detail_expr"`
	Category        IssueCategory `json:"category"`
}
