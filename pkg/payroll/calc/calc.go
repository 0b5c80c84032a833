// Package calc is the payroll calculation routine shared by the bulk run
// driver and single-employee recalculation. Both paths must call
// ComputeLineItem; a second implementation of the pay math is forbidden
// because the review engine asserts that a targeted recalculation
// reproduces the bulk result exactly.
package calc

import "github.com/shopspring/decimal"

const standardMonthDays = 22

var (
	standardMonthlyHours = decimal.RequireFromString("173.33")
	overtimePremium      = decimal.RequireFromString("1.15")
)

type EmployeeInputs struct {
	EmployeeID    string
	EmployeeName  string
	BaseSalary    decimal.Decimal
	Bonuses       decimal.Decimal
	DaysWorked    int
	DaysAbsent    int
	OvertimeHours map[string]decimal.Decimal
}

type LineItem struct {
	EmployeeID    string
	EmployeeName  string
	BaseSalary    decimal.Decimal
	GrossSalary   decimal.Decimal
	NetSalary     decimal.Decimal
	OvertimeHours map[string]decimal.Decimal
	OvertimePay   decimal.Decimal
	Bonuses       decimal.Decimal
	DaysWorked    int
	DaysAbsent    int
}

// HourlyRate derives the legal hourly rate from a monthly base salary
// (173.33 standard monthly hours).
func HourlyRate(baseSalary decimal.Decimal) decimal.Decimal {
	return baseSalary.Div(standardMonthlyHours)
}

func TotalOvertimeHours(tiers map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, h := range tiers {
		total = total.Add(h)
	}
	return total
}

func ComputeLineItem(in EmployeeInputs) LineItem {
	earned := in.BaseSalary
	if in.DaysWorked < standardMonthDays {
		daily := in.BaseSalary.Div(decimal.NewFromInt(standardMonthDays))
		earned = daily.Mul(decimal.NewFromInt(int64(in.DaysWorked)))
	}
	earned = earned.Round(2)

	overtimeHours := TotalOvertimeHours(in.OvertimeHours)
	overtimePay := decimal.Zero
	if overtimeHours.IsPositive() {
		overtimePay = overtimeHours.Mul(HourlyRate(in.BaseSalary)).Mul(overtimePremium).Round(2)
	}

	gross := earned.Add(overtimePay).Add(in.Bonuses)
	net := gross.Sub(withholding(gross))

	tiers := make(map[string]decimal.Decimal, len(in.OvertimeHours))
	for k, v := range in.OvertimeHours {
		tiers[k] = v
	}

	return LineItem{
		EmployeeID:    in.EmployeeID,
		EmployeeName:  in.EmployeeName,
		BaseSalary:    in.BaseSalary,
		GrossSalary:   gross,
		NetSalary:     net,
		OvertimeHours: tiers,
		OvertimePay:   overtimePay,
		Bonuses:       in.Bonuses,
		DaysWorked:    in.DaysWorked,
		DaysAbsent:    in.DaysAbsent,
	}
}

func ComputeRun(inputs []EmployeeInputs) []LineItem {
	out := make([]LineItem, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, ComputeLineItem(in))
	}
	return out
}

// withholding applies the progressive bracket table to monthly gross pay.
func withholding(gross decimal.Decimal) decimal.Decimal {
	ratePercent, quickDeduction := bracketForGross(gross)
	if ratePercent == 0 {
		return decimal.Zero
	}
	w := gross.Mul(decimal.NewFromInt(ratePercent)).Div(decimal.NewFromInt(100)).Sub(decimal.NewFromInt(quickDeduction)).Round(2)
	if w.IsNegative() {
		return decimal.Zero
	}
	return w
}

func bracketForGross(gross decimal.Decimal) (ratePercent int64, quickDeduction int64) {
	switch {
	case gross.LessThanOrEqual(decimal.NewFromInt(50_000)):
		return 0, 0
	case gross.LessThanOrEqual(decimal.NewFromInt(150_000)):
		return 5, 2_500
	case gross.LessThanOrEqual(decimal.NewFromInt(400_000)):
		return 10, 10_000
	case gross.LessThanOrEqual(decimal.NewFromInt(800_000)):
		return 15, 30_000
	default:
		return 20, 70_000
	}
}
