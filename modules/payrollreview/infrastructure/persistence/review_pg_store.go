package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/petalhr/petal/modules/payrollreview/domain/ports"
	"github.com/petalhr/petal/modules/payrollreview/domain/types"
	"github.com/petalhr/petal/pkg/httperr"
	"github.com/petalhr/petal/pkg/payroll/calc"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type ReviewPGStore struct {
	pool pgBeginner
}

func NewReviewPGStore(pool pgBeginner) ports.ReviewStore {
	return &ReviewPGStore{pool: pool}
}

var validationIssueNamespace = uuid.Must(uuid.Parse("b7a1f6d2-4c5e-4d0a-9b8f-3e2a61c7d904"))

// deterministicIssueID derives a stable id from the issue's natural key so
// re-running validation upserts into the same row and ON CONFLICT DO
// NOTHING gives idempotence without a lock.
func deterministicIssueID(tenantID string, runUUID string, employeeID string, category types.IssueCategory, title string) string {
	name := fmt.Sprintf("payroll.validation_issue:%s:%s:%s:%s:%s", tenantID, runUUID, employeeID, category, title)
	return uuid.NewSHA1(validationIssueNamespace, []byte(name)).String()
}

func normalizeTenantID(tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", httperr.NewBadRequest("tenant_id is required")
	}
	return tenantID, nil
}

func normalizeUUIDField(field string, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", httperr.NewBadRequest(field + " is required")
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", httperr.NewBadRequest(field + " must be a uuid")
	}
	return raw, nil
}

func (s *ReviewPGStore) beginTenantTx(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, err
	}
	return tx, nil
}

func scanDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("payrollreview: bad numeric %q: %w", raw, err)
	}
	return d, nil
}

func scanNullableDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := scanDecimal(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func decodeTierHours(raw []byte) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	var tiers map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, fmt.Errorf("payrollreview: bad overtime_hours payload: %w", err)
	}
	if tiers == nil {
		tiers = map[string]decimal.Decimal{}
	}
	return tiers, nil
}

func (s *ReviewPGStore) GetRun(ctx context.Context, tenantID string, runUUID string) (types.PayrollRun, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return types.PayrollRun{}, err
	}
	runUUID, err = normalizeUUIDField("run_uuid", runUUID)
	if err != nil {
		return types.PayrollRun{}, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return types.PayrollRun{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	run, err := getRunTx(ctx, tx, tenantID, runUUID)
	if err != nil {
		return types.PayrollRun{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.PayrollRun{}, err
	}
	return run, nil
}

func getRunTx(ctx context.Context, tx pgx.Tx, tenantID string, runUUID string) (types.PayrollRun, error) {
	var run types.PayrollRun
	err := tx.QueryRow(ctx, `
SELECT
  id::text,
  period_start::text,
  period_end::text,
  payment_frequency,
  status
FROM payroll.payroll_runs
WHERE tenant_id = $1::uuid
  AND id = $2::uuid
`, tenantID, runUUID).Scan(&run.RunUUID, &run.PeriodStart, &run.PeriodEnd, &run.PaymentFrequency, &run.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.PayrollRun{}, httperr.NewNotFound("payroll run not found")
	}
	if err != nil {
		return types.PayrollRun{}, err
	}
	return run, nil
}

func (s *ReviewPGStore) GetPreviousRun(ctx context.Context, tenantID string, current types.PayrollRun) (types.PayrollRun, []types.LineItem, bool, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return types.PayrollRun{}, nil, false, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return types.PayrollRun{}, nil, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var prev types.PayrollRun
	err = tx.QueryRow(ctx, `
SELECT
  id::text,
  period_start::text,
  period_end::text,
  payment_frequency,
  status
FROM payroll.payroll_runs
WHERE tenant_id = $1::uuid
  AND payment_frequency = $2
  AND period_start < $3::date
ORDER BY period_start DESC
LIMIT 1
`, tenantID, string(current.PaymentFrequency), current.PeriodStart).Scan(&prev.RunUUID, &prev.PeriodStart, &prev.PeriodEnd, &prev.PaymentFrequency, &prev.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.PayrollRun{}, nil, false, nil
	}
	if err != nil {
		return types.PayrollRun{}, nil, false, err
	}

	items, err := listLineItemsTx(ctx, tx, tenantID, prev.RunUUID)
	if err != nil {
		return types.PayrollRun{}, nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.PayrollRun{}, nil, false, err
	}
	return prev, items, true, nil
}

func (s *ReviewPGStore) ListLineItems(ctx context.Context, tenantID string, runUUID string) ([]types.LineItem, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	items, err := listLineItemsTx(ctx, tx, tenantID, runUUID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

func listLineItemsTx(ctx context.Context, tx pgx.Tx, tenantID string, runUUID string) ([]types.LineItem, error) {
	rows, err := tx.Query(ctx, `
SELECT
  employee_id,
  employee_name,
  base_salary::text,
  gross_salary::text,
  net_salary::text,
  overtime_hours,
  overtime_pay::text,
  bonuses::text,
  days_worked,
  days_absent
FROM payroll.payroll_line_items
WHERE tenant_id = $1::uuid
  AND run_id = $2::uuid
ORDER BY employee_id
`, tenantID, runUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.LineItem
	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanLineItem(row pgx.Row) (types.LineItem, error) {
	var (
		item                 types.LineItem
		base, gross, net     string
		overtimePay, bonuses string
		tierPayload          []byte
	)
	if err := row.Scan(&item.EmployeeID, &item.EmployeeName, &base, &gross, &net, &tierPayload, &overtimePay, &bonuses, &item.DaysWorked, &item.DaysAbsent); err != nil {
		return types.LineItem{}, err
	}

	var err error
	if item.BaseSalary, err = scanDecimal(base); err != nil {
		return types.LineItem{}, err
	}
	if item.GrossSalary, err = scanDecimal(gross); err != nil {
		return types.LineItem{}, err
	}
	if item.NetSalary, err = scanDecimal(net); err != nil {
		return types.LineItem{}, err
	}
	if item.OvertimePay, err = scanDecimal(overtimePay); err != nil {
		return types.LineItem{}, err
	}
	if item.Bonuses, err = scanDecimal(bonuses); err != nil {
		return types.LineItem{}, err
	}
	if item.OvertimeHours, err = decodeTierHours(tierPayload); err != nil {
		return types.LineItem{}, err
	}
	return item, nil
}

func (s *ReviewPGStore) GetLineItem(ctx context.Context, tenantID string, runUUID string, employeeID string) (types.LineItem, bool, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return types.LineItem{}, false, err
	}
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return types.LineItem{}, false, httperr.NewBadRequest("employee_id is required")
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return types.LineItem{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	row := tx.QueryRow(ctx, `
SELECT
  employee_id,
  employee_name,
  base_salary::text,
  gross_salary::text,
  net_salary::text,
  overtime_hours,
  overtime_pay::text,
  bonuses::text,
  days_worked,
  days_absent
FROM payroll.payroll_line_items
WHERE tenant_id = $1::uuid
  AND run_id = $2::uuid
  AND employee_id = $3
`, tenantID, runUUID, employeeID)

	item, err := scanLineItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.LineItem{}, false, nil
	}
	if err != nil {
		return types.LineItem{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.LineItem{}, false, err
	}
	return item, true, nil
}

func (s *ReviewPGStore) ReplaceLineItem(ctx context.Context, tenantID string, runUUID string, item types.LineItem) error {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return err
	}

	tierPayload, err := json.Marshal(item.OvertimeHours)
	if err != nil {
		return err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE payroll.payroll_line_items
SET
  employee_name = $4,
  base_salary = $5::numeric,
  gross_salary = $6::numeric,
  net_salary = $7::numeric,
  overtime_hours = $8::jsonb,
  overtime_pay = $9::numeric,
  bonuses = $10::numeric,
  days_worked = $11,
  days_absent = $12,
  updated_at = now()
WHERE tenant_id = $1::uuid
  AND run_id = $2::uuid
  AND employee_id = $3
`, tenantID, runUUID, item.EmployeeID,
		item.EmployeeName,
		item.BaseSalary.String(),
		item.GrossSalary.String(),
		item.NetSalary.String(),
		tierPayload,
		item.OvertimePay.String(),
		item.Bonuses.String(),
		item.DaysWorked,
		item.DaysAbsent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.NewNotFound("payroll line item not found")
	}
	return tx.Commit(ctx)
}

func (s *ReviewPGStore) GetCalcInputs(ctx context.Context, tenantID string, runUUID string, employeeID string) (calc.EmployeeInputs, error) {
	item, ok, err := s.GetLineItem(ctx, tenantID, runUUID, employeeID)
	if err != nil {
		return calc.EmployeeInputs{}, err
	}
	if !ok {
		return calc.EmployeeInputs{}, httperr.NewNotFound("payroll line item not found")
	}
	return calc.EmployeeInputs{
		EmployeeID:    item.EmployeeID,
		EmployeeName:  item.EmployeeName,
		BaseSalary:    item.BaseSalary,
		Bonuses:       item.Bonuses,
		DaysWorked:    item.DaysWorked,
		DaysAbsent:    item.DaysAbsent,
		OvertimeHours: item.OvertimeHours,
	}, nil
}

func (s *ReviewPGStore) InsertIssues(ctx context.Context, tenantID string, issues []types.ValidationIssue) (int, error) {
	if len(issues) == 0 {
		return 0, nil
	}
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return 0, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	inserted := 0
	for _, issue := range issues {
		id := deterministicIssueID(tenantID, issue.RunUUID, issue.EmployeeID, issue.Category, issue.Title)
		tag, err := tx.Exec(ctx, `
INSERT INTO payroll.validation_issues (
  id,
  tenant_id,
  run_id,
  employee_id,
  issue_type,
  category,
  title,
  description,
  expected_amount,
  actual_amount,
  resolved,
  created_at
)
VALUES (
  $1::uuid,
  $2::uuid,
  $3::uuid,
  $4,
  $5,
  $6,
  $7,
  $8,
  $9::numeric,
  $10::numeric,
  false,
  now()
)
ON CONFLICT (id) DO NOTHING
`, id, tenantID, issue.RunUUID, issue.EmployeeID,
			string(issue.IssueType), string(issue.Category), issue.Title, issue.Description,
			decimalArg(issue.ExpectedAmount), decimalArg(issue.ActualAmount))
		if err != nil {
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *ReviewPGStore) ListIssues(ctx context.Context, tenantID string, runUUID string) ([]types.ValidationIssue, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT
  id::text,
  run_id::text,
  employee_id,
  issue_type,
  category,
  title,
  description,
  expected_amount::text,
  actual_amount::text,
  resolved,
  created_at
FROM payroll.validation_issues
WHERE tenant_id = $1::uuid
  AND run_id = $2::uuid
ORDER BY
  CASE issue_type WHEN 'error' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END,
  employee_id,
  title
`, tenantID, runUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ValidationIssue
	for rows.Next() {
		var (
			issue            types.ValidationIssue
			issueType, cat   string
			expected, actual *string
		)
		if err := rows.Scan(&issue.IssueUUID, &issue.RunUUID, &issue.EmployeeID, &issueType, &cat, &issue.Title, &issue.Description, &expected, &actual, &issue.Resolved, &issue.CreatedAt); err != nil {
			return nil, err
		}
		issue.IssueType = types.IssueType(issueType)
		issue.Category = types.IssueCategory(cat)
		if issue.ExpectedAmount, err = scanNullableDecimal(expected); err != nil {
			return nil, err
		}
		if issue.ActualAmount, err = scanNullableDecimal(actual); err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ReviewPGStore) ResolveIssue(ctx context.Context, tenantID string, issueUUID string) error {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return err
	}
	issueUUID, err = normalizeUUIDField("issue_uuid", issueUUID)
	if err != nil {
		return err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE payroll.validation_issues
SET resolved = true
WHERE tenant_id = $1::uuid
  AND id = $2::uuid
`, tenantID, issueUUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.NewNotFound("validation issue not found")
	}
	return tx.Commit(ctx)
}

const upsertVerificationSQL = `
INSERT INTO payroll.verification_statuses (
  run_id,
  tenant_id,
  employee_id,
  status,
  verified_by,
  verified_at,
  notes
)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, now(), $6)
ON CONFLICT (run_id, employee_id)
DO UPDATE SET
  status = EXCLUDED.status,
  verified_by = EXCLUDED.verified_by,
  verified_at = now(),
  notes = EXCLUDED.notes
RETURNING run_id::text, employee_id, status, verified_by, verified_at, COALESCE(notes, '')
`

func (s *ReviewPGStore) UpsertVerification(ctx context.Context, tenantID string, runUUID string, employeeID string, status types.VerificationState, verifiedBy string, notes string) (types.VerificationStatus, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return types.VerificationStatus{}, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return types.VerificationStatus{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var vs types.VerificationStatus
	var stat string
	if err := tx.QueryRow(ctx, upsertVerificationSQL, runUUID, tenantID, employeeID, string(status), verifiedBy, notes).
		Scan(&vs.RunUUID, &vs.EmployeeID, &stat, &vs.VerifiedBy, &vs.VerifiedAt, &vs.Notes); err != nil {
		return types.VerificationStatus{}, err
	}
	vs.Status = types.VerificationState(stat)

	if err := tx.Commit(ctx); err != nil {
		return types.VerificationStatus{}, err
	}
	return vs, nil
}

func (s *ReviewPGStore) UpsertVerificationBatch(ctx context.Context, tenantID string, runUUID string, employeeIDs []string, status types.VerificationState, verifiedBy string) (int, error) {
	if len(employeeIDs) == 0 {
		return 0, nil
	}
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return 0, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	for _, employeeID := range employeeIDs {
		var vs types.VerificationStatus
		var stat string
		if err := tx.QueryRow(ctx, upsertVerificationSQL, runUUID, tenantID, employeeID, string(status), verifiedBy, "").
			Scan(&vs.RunUUID, &vs.EmployeeID, &stat, &vs.VerifiedBy, &vs.VerifiedAt, &vs.Notes); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(employeeIDs), nil
}

func (s *ReviewPGStore) ListVerificationStatuses(ctx context.Context, tenantID string, runUUID string) ([]types.VerificationStatus, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT
  run_id::text,
  employee_id,
  status,
  verified_by,
  verified_at,
  COALESCE(notes, '')
FROM payroll.verification_statuses
WHERE tenant_id = $1::uuid
  AND run_id = $2::uuid
ORDER BY employee_id
`, tenantID, runUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.VerificationStatus
	for rows.Next() {
		var vs types.VerificationStatus
		var stat string
		if err := rows.Scan(&vs.RunUUID, &vs.EmployeeID, &stat, &vs.VerifiedBy, &vs.VerifiedAt, &vs.Notes); err != nil {
			return nil, err
		}
		vs.Status = types.VerificationState(stat)
		out = append(out, vs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ReviewPGStore) ListTimeEntries(ctx context.Context, tenantID string, employeeID string, fromDate string, toDate string) ([]types.TimeEntry, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT
  work_date::text,
  hours::text
FROM payroll.time_entries
WHERE tenant_id = $1::uuid
  AND employee_id = $2
  AND work_date >= $3::date
  AND work_date <= $4::date
ORDER BY work_date
`, tenantID, employeeID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.TimeEntry
	for rows.Next() {
		var entry types.TimeEntry
		var hours string
		if err := rows.Scan(&entry.WorkDate, &hours); err != nil {
			return nil, err
		}
		if entry.Hours, err = scanDecimal(hours); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ReviewPGStore) ListReviewRules(ctx context.Context, tenantID string, asOfDate string) ([]types.ReviewRule, error) {
	tenantID, err := normalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	tx, err := s.beginTenantTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT
  rule_id,
  priority,
  effective_date::text,
  COALESCE(end_date::text, ''),
  eligibility_expr,
  title_expr,
  detail_expr,
  category
FROM payroll.review_rules
WHERE tenant_id = $1::uuid
  AND active
  AND effective_date <= $2::date
  AND (end_date IS NULL OR end_date >= $2::date)
ORDER BY priority, rule_id
`, tenantID, asOfDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ReviewRule
	for rows.Next() {
		var rule types.ReviewRule
		var cat string
		if err := rows.Scan(&rule.RuleID, &rule.Priority, &rule.EffectiveDate, &rule.EndDate, &rule.EligibilityExpr, &rule.TitleExpr, &rule.DetailExpr, &cat); err != nil {
			return nil, err
		}
		rule.Category = types.IssueCategory(cat)
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
