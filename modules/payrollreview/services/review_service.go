package services

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/petalhr/petal/modules/payrollreview/detector"
	"github.com/petalhr/petal/modules/payrollreview/domain/ports"
	"github.com/petalhr/petal/modules/payrollreview/domain/types"
	"github.com/petalhr/petal/pkg/httperr"
	"github.com/petalhr/petal/pkg/payroll/calc"
)

// ReviewService is the facade the HTTP layer talks to. Every method is a
// single unit of work: it validates input, checks the run belongs to the
// caller's tenant, then delegates to the store.
type ReviewService struct {
	store ports.ReviewStore
}

func NewReviewService(store ports.ReviewStore) ReviewService {
	return ReviewService{store: store}
}

// Validate audits a run's line items, persists the findings idempotently
// and returns the stored issue set with severity counts. Safe to race:
// concurrent validations of the same run converge on the same rows.
func (s ReviewService) Validate(ctx context.Context, tenantID string, runUUID string) (types.ValidationSummary, error) {
	run, err := s.store.GetRun(ctx, tenantID, runUUID)
	if err != nil {
		return types.ValidationSummary{}, err
	}

	items, err := s.store.ListLineItems(ctx, tenantID, run.RunUUID)
	if err != nil {
		return types.ValidationSummary{}, err
	}

	prevByEmployee := map[string]types.LineItem{}
	if _, prevItems, ok, err := s.store.GetPreviousRun(ctx, tenantID, run); err != nil {
		return types.ValidationSummary{}, err
	} else if ok {
		for _, it := range prevItems {
			prevByEmployee[it.EmployeeID] = it
		}
	}

	findings := detector.Detect(run, items, prevByEmployee)

	rules, err := s.store.ListReviewRules(ctx, tenantID, run.PeriodEnd)
	if err != nil {
		return types.ValidationSummary{}, err
	}
	findings = append(findings, detector.EvaluateAdvisoryRules(rules, items)...)

	issues := make([]types.ValidationIssue, 0, len(findings))
	for _, f := range findings {
		issues = append(issues, types.ValidationIssue{
			RunUUID:        run.RunUUID,
			EmployeeID:     f.EmployeeID,
			IssueType:      f.IssueType,
			Category:       f.Category,
			Title:          f.Title,
			Description:    f.Description,
			ExpectedAmount: f.ExpectedAmount,
			ActualAmount:   f.ActualAmount,
		})
	}

	if _, err := s.store.InsertIssues(ctx, tenantID, issues); err != nil {
		return types.ValidationSummary{}, err
	}

	stored, err := s.store.ListIssues(ctx, tenantID, run.RunUUID)
	if err != nil {
		return types.ValidationSummary{}, err
	}
	return summarize(stored), nil
}

func summarize(issues []types.ValidationIssue) types.ValidationSummary {
	summary := types.ValidationSummary{Issues: issues, TotalIssues: len(issues)}
	if summary.Issues == nil {
		summary.Issues = make([]types.ValidationIssue, 0)
	}
	for _, issue := range issues {
		switch issue.IssueType {
		case types.IssueTypeError:
			summary.Errors++
		case types.IssueTypeWarning:
			summary.Warnings++
		default:
			summary.Info++
		}
	}
	return summary
}

func (s ReviewService) PreviousRun(ctx context.Context, tenantID string, runUUID string) (types.PayrollRun, []types.LineItem, bool, error) {
	run, err := s.store.GetRun(ctx, tenantID, runUUID)
	if err != nil {
		return types.PayrollRun{}, nil, false, err
	}
	return s.store.GetPreviousRun(ctx, tenantID, run)
}

func (s ReviewService) MarkEmployeeVerified(ctx context.Context, tenantID string, runUUID string, employeeID string, verifiedBy string, notes string) (types.VerificationStatus, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return types.VerificationStatus{}, httperr.NewBadRequest("employee_id is required")
	}
	verifiedBy = strings.TrimSpace(verifiedBy)
	if verifiedBy == "" {
		return types.VerificationStatus{}, httperr.NewBadRequest("verified_by is required")
	}

	run, err := s.store.GetRun(ctx, tenantID, runUUID)
	if err != nil {
		return types.VerificationStatus{}, err
	}
	return s.store.UpsertVerification(ctx, tenantID, run.RunUUID, employeeID, types.VerificationVerified, verifiedBy, notes)
}

// MarkAllVerified upserts a verified row for every employee present in the
// run's line items, in one batch. The upsert key makes a retry after
// partial failure converge instead of duplicating rows.
func (s ReviewService) MarkAllVerified(ctx context.Context, tenantID string, runUUID string, verifiedBy string) (int, error) {
	verifiedBy = strings.TrimSpace(verifiedBy)
	if verifiedBy == "" {
		return 0, httperr.NewBadRequest("verified_by is required")
	}

	run, err := s.store.GetRun(ctx, tenantID, runUUID)
	if err != nil {
		return 0, err
	}

	items, err := s.store.ListLineItems(ctx, tenantID, run.RunUUID)
	if err != nil {
		return 0, err
	}

	seen := map[string]bool{}
	employeeIDs := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item.EmployeeID] {
			continue
		}
		seen[item.EmployeeID] = true
		employeeIDs = append(employeeIDs, item.EmployeeID)
	}

	return s.store.UpsertVerificationBatch(ctx, tenantID, run.RunUUID, employeeIDs, types.VerificationVerified, verifiedBy)
}

func (s ReviewService) VerificationStatuses(ctx context.Context, tenantID string, runUUID string) ([]types.VerificationStatus, error) {
	run, err := s.store.GetRun(ctx, tenantID, runUUID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.store.ListVerificationStatuses(ctx, tenantID, run.RunUUID)
	if err != nil {
		return nil, err
	}
	if statuses == nil {
		statuses = make([]types.VerificationStatus, 0)
	}
	return statuses, nil
}

// RecalculateEmployee reruns the shared calculation routine for one
// employee and replaces the stored line item. The stored row is only
// touched after the fresh result is fully computed.
func (s ReviewService) RecalculateEmployee(ctx context.Context, tenantID string, runUUID string, employeeID string) (types.LineItem, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return types.LineItem{}, httperr.NewBadRequest("employee_id is required")
	}

	run, err := s.store.GetRun(ctx, tenantID, runUUID)
	if err != nil {
		return types.LineItem{}, err
	}

	inputs, err := s.store.GetCalcInputs(ctx, tenantID, run.RunUUID, employeeID)
	if err != nil {
		return types.LineItem{}, err
	}

	item := lineItemFromCalc(calc.ComputeLineItem(inputs))
	if err := s.store.ReplaceLineItem(ctx, tenantID, run.RunUUID, item); err != nil {
		return types.LineItem{}, err
	}
	return item, nil
}

func lineItemFromCalc(res calc.LineItem) types.LineItem {
	return types.LineItem{
		EmployeeID:    res.EmployeeID,
		EmployeeName:  res.EmployeeName,
		BaseSalary:    res.BaseSalary,
		GrossSalary:   res.GrossSalary,
		NetSalary:     res.NetSalary,
		OvertimeHours: res.OvertimeHours,
		OvertimePay:   res.OvertimePay,
		Bonuses:       res.Bonuses,
		DaysWorked:    res.DaysWorked,
		DaysAbsent:    res.DaysAbsent,
	}
}

// OvertimeBreakdown reconstructs the auditable hours/pay view for one
// employee. A missing line item yields nil, not an error.
func (s ReviewService) OvertimeBreakdown(ctx context.Context, tenantID string, runUUID string, employeeID string) (*types.OvertimeBreakdown, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, httperr.NewBadRequest("employee_id is required")
	}

	run, err := s.store.GetRun(ctx, tenantID, runUUID)
	if err != nil {
		return nil, err
	}

	item, ok, err := s.store.GetLineItem(ctx, tenantID, run.RunUUID, employeeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	entries, err := s.store.ListTimeEntries(ctx, tenantID, employeeID, run.PeriodStart, run.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make([]types.TimeEntry, 0)
	}

	totalHours := decimal.Zero
	for _, e := range entries {
		totalHours = totalHours.Add(e.Hours)
	}

	tierLabels := make([]string, 0, len(item.OvertimeHours))
	for label := range item.OvertimeHours {
		tierLabels = append(tierLabels, label)
	}
	sort.Strings(tierLabels)

	totalOvertime := calc.TotalOvertimeHours(item.OvertimeHours)
	tiers := make([]types.OvertimeTier, 0, len(tierLabels))
	for _, label := range tierLabels {
		// Amount stays zero: only the aggregate overtime pay is
		// authoritative until the calculation engine publishes tier
		// multipliers.
		tiers = append(tiers, types.OvertimeTier{Tier: label, Hours: item.OvertimeHours[label], Amount: decimal.Zero})
	}

	return &types.OvertimeBreakdown{
		RunUUID:            run.RunUUID,
		EmployeeID:         item.EmployeeID,
		EmployeeName:       item.EmployeeName,
		PeriodStart:        run.PeriodStart,
		PeriodEnd:          run.PeriodEnd,
		TotalHours:         totalHours,
		NormalHours:        totalHours.Sub(totalOvertime),
		TotalOvertimeHours: totalOvertime,
		HourlyRate:         calc.HourlyRate(item.BaseSalary).Round(2),
		OvertimePay:        item.OvertimePay,
		Tiers:              tiers,
		Entries:            entries,
	}, nil
}

func (s ReviewService) ResolveIssue(ctx context.Context, tenantID string, issueUUID string) error {
	return s.store.ResolveIssue(ctx, tenantID, issueUUID)
}
