// Package detector audits a payroll run's line items against fixed domain
// rules and the previous comparable period. Detection is pure: no I/O, no
// clock, deterministic output for a given input.
package detector

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/petalhr/petal/modules/payrollreview/domain/types"
	"github.com/petalhr/petal/pkg/payroll/calc"
)

const (
	fullMonthDays      = 22
	absenceReasonDays  = 5
	TitleOvertimeNoPay = "Overtime hours without overtime pay"
	TitleNetVariance   = "Net salary variance exceeds 30%"
	TitleFirstPayroll  = "First payroll with prorated period"
	TitleLargeBonus    = "Bonuses exceed double gross salary"
)

var (
	blendedOvertimePremium = decimal.RequireFromString("1.15")
	varianceThresholdPct   = decimal.NewFromInt(30)
	largeBonusMultiple     = decimal.NewFromInt(2)
	bonusReasonShare       = decimal.RequireFromString("0.5")
	oneHundred             = decimal.NewFromInt(100)
)

// Detect evaluates every rule independently per line item; rules are
// additive and order-insensitive, so one employee may yield several
// findings.
func Detect(run types.PayrollRun, items []types.LineItem, prevByEmployee map[string]types.LineItem) []types.Finding {
	var out []types.Finding
	for _, item := range items {
		prev, hasPrev := prevByEmployee[item.EmployeeID]

		if f, ok := overtimeWithoutPay(item); ok {
			out = append(out, f)
		}
		if hasPrev {
			if f, ok := unusualVariance(item, prev); ok {
				out = append(out, f)
			}
		} else if f, ok := firstPayrollProrata(item); ok {
			out = append(out, f)
		}
		if f, ok := largeBonus(item); ok {
			out = append(out, f)
		}
	}
	return out
}

func overtimeWithoutPay(item types.LineItem) (types.Finding, bool) {
	totalHours := calc.TotalOvertimeHours(item.OvertimeHours)
	if !totalHours.IsPositive() || !item.OvertimePay.IsZero() {
		return types.Finding{}, false
	}

	// Estimate only: blended 1.15 premium over base/173.33, a sanity
	// figure for the reviewer, not a recomputation.
	expected := totalHours.Mul(calc.HourlyRate(item.BaseSalary)).Mul(blendedOvertimePremium).Round(2)
	actual := decimal.Zero

	return types.Finding{
		EmployeeID:     item.EmployeeID,
		IssueType:      types.IssueTypeError,
		Category:       types.CategoryOvertime,
		Title:          TitleOvertimeNoPay,
		Description:    fmt.Sprintf("%s overtime hours recorded but overtime pay is zero (estimated pay %s)", totalHours.String(), expected.StringFixed(2)),
		ExpectedAmount: &expected,
		ActualAmount:   &actual,
	}, true
}

func unusualVariance(item types.LineItem, prev types.LineItem) (types.Finding, bool) {
	if prev.NetSalary.IsZero() {
		return types.Finding{}, false
	}
	variance := item.NetSalary.Sub(prev.NetSalary).Div(prev.NetSalary).Mul(oneHundred)
	if variance.Abs().LessThanOrEqual(varianceThresholdPct) {
		return types.Finding{}, false
	}

	expected := prev.NetSalary.Round(0)
	actual := item.NetSalary.Round(0)

	return types.Finding{
		EmployeeID:     item.EmployeeID,
		IssueType:      types.IssueTypeWarning,
		Category:       types.CategoryComparison,
		Title:          TitleNetVariance,
		Description:    fmt.Sprintf("net salary changed %s%% vs previous period; likely cause: %s", variance.StringFixed(1), varianceReason(item)),
		ExpectedAmount: &expected,
		ActualAmount:   &actual,
	}, true
}

// varianceReason is a best-guess advisory explanation, never a gate.
func varianceReason(item types.LineItem) string {
	if item.DaysAbsent > absenceReasonDays {
		return fmt.Sprintf("unpaid absences (%d days)", item.DaysAbsent)
	}
	if item.Bonuses.GreaterThan(item.GrossSalary.Mul(bonusReasonShare)) {
		return fmt.Sprintf("large bonus (%s)", item.Bonuses.StringFixed(2))
	}
	return "unknown reason"
}

func firstPayrollProrata(item types.LineItem) (types.Finding, bool) {
	if item.DaysWorked >= fullMonthDays {
		return types.Finding{}, false
	}
	actual := item.NetSalary

	return types.Finding{
		EmployeeID:   item.EmployeeID,
		IssueType:    types.IssueTypeInfo,
		Category:     types.CategoryProrata,
		Title:        TitleFirstPayroll,
		Description:  fmt.Sprintf("first payroll for this employee covers %d of %d working days", item.DaysWorked, fullMonthDays),
		ActualAmount: &actual,
	}, true
}

func largeBonus(item types.LineItem) (types.Finding, bool) {
	if !item.Bonuses.GreaterThan(item.GrossSalary.Mul(largeBonusMultiple)) {
		return types.Finding{}, false
	}
	actual := item.Bonuses

	return types.Finding{
		EmployeeID:   item.EmployeeID,
		IssueType:    types.IssueTypeInfo,
		Category:     types.CategoryBonus,
		Title:        TitleLargeBonus,
		Description:  fmt.Sprintf("bonuses %s exceed twice the gross salary %s", item.Bonuses.StringFixed(2), item.GrossSalary.StringFixed(2)),
		ActualAmount: &actual,
	}, true
}
