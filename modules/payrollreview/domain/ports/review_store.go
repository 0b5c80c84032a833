package ports

import (
	"context"

	"github.com/petalhr/petal/modules/payrollreview/domain/types"
	"github.com/petalhr/petal/pkg/payroll/calc"
)

type ReviewStore interface {
	GetRun(ctx context.Context, tenantID string, runUUID string) (types.PayrollRun, error)
	GetPreviousRun(ctx context.Context, tenantID string, current types.PayrollRun) (types.PayrollRun, []types.LineItem, bool, error)

	ListLineItems(ctx context.Context, tenantID string, runUUID string) ([]types.LineItem, error)
	GetLineItem(ctx context.Context, tenantID string, runUUID string, employeeID string) (types.LineItem, bool, error)
	ReplaceLineItem(ctx context.Context, tenantID string, runUUID string, item types.LineItem) error
	GetCalcInputs(ctx context.Context, tenantID string, runUUID string, employeeID string) (calc.EmployeeInputs, error)

	InsertIssues(ctx context.Context, tenantID string, issues []types.ValidationIssue) (int, error)
	ListIssues(ctx context.Context, tenantID string, runUUID string) ([]types.ValidationIssue, error)
	ResolveIssue(ctx context.Context, tenantID string, issueUUID string) error

	UpsertVerification(ctx context.Context, tenantID string, runUUID string, employeeID string, status types.VerificationState, verifiedBy string, notes string) (types.VerificationStatus, error)
	UpsertVerificationBatch(ctx context.Context, tenantID string, runUUID string, employeeIDs []string, status types.VerificationState, verifiedBy string) (int, error)
	ListVerificationStatuses(ctx context.Context, tenantID string, runUUID string) ([]types.VerificationStatus, error)

	ListTimeEntries(ctx context.Context, tenantID string, employeeID string, fromDate string, toDate string) ([]types.TimeEntry, error)
	ListReviewRules(ctx context.Context, tenantID string, asOfDate string) ([]types.ReviewRule, error)
}
