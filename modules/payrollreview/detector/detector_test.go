package detector

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/petalhr/petal/modules/payrollreview/domain/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(employeeID string) types.LineItem {
	return types.LineItem{
		EmployeeID:  employeeID,
		BaseSalary:  d("100000"),
		GrossSalary: d("100000"),
		NetSalary:   d("95000"),
		DaysWorked:  22,
	}
}

func findingsFor(fs []types.Finding, employeeID string, category types.IssueCategory) []types.Finding {
	var out []types.Finding
	for _, f := range fs {
		if f.EmployeeID == employeeID && f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func TestDetect_NoOvertimeHoursNeverOvertimeIssue(t *testing.T) {
	it := item("e1")
	it.OvertimePay = decimal.Zero
	got := Detect(types.PayrollRun{}, []types.LineItem{it}, map[string]types.LineItem{"e1": it})
	if len(findingsFor(got, "e1", types.CategoryOvertime)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_OvertimeWithoutPay(t *testing.T) {
	it := item("e1")
	it.BaseSalary = d("17333")
	it.OvertimeHours = map[string]decimal.Decimal{"rate15": d("6"), "rate50": d("4")}
	it.OvertimePay = decimal.Zero

	got := Detect(types.PayrollRun{}, []types.LineItem{it}, map[string]types.LineItem{"e1": it})
	fs := findingsFor(got, "e1", types.CategoryOvertime)
	if len(fs) != 1 {
		t.Fatalf("got=%+v", got)
	}
	f := fs[0]
	if f.IssueType != types.IssueTypeError {
		t.Fatalf("type=%q", f.IssueType)
	}
	// 10h * (17333/173.33) * 1.15 = 1150
	if f.ExpectedAmount == nil || !f.ExpectedAmount.Equal(d("1150")) {
		t.Fatalf("expected=%v", f.ExpectedAmount)
	}
	if f.ActualAmount == nil || !f.ActualAmount.IsZero() {
		t.Fatalf("actual=%v", f.ActualAmount)
	}
}

func TestDetect_OvertimePaidIsClean(t *testing.T) {
	it := item("e1")
	it.OvertimeHours = map[string]decimal.Decimal{"rate15": d("3")}
	it.OvertimePay = d("2000")
	got := Detect(types.PayrollRun{}, []types.LineItem{it}, map[string]types.LineItem{"e1": it})
	if len(findingsFor(got, "e1", types.CategoryOvertime)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_VarianceAboveThreshold(t *testing.T) {
	prev := item("e1")
	prev.NetSalary = d("100000")
	cur := item("e1")
	cur.NetSalary = d("135000")

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": prev})
	fs := findingsFor(got, "e1", types.CategoryComparison)
	if len(fs) != 1 {
		t.Fatalf("got=%+v", got)
	}
	f := fs[0]
	if f.IssueType != types.IssueTypeWarning {
		t.Fatalf("type=%q", f.IssueType)
	}
	if f.ExpectedAmount == nil || !f.ExpectedAmount.Equal(d("100000")) {
		t.Fatalf("expected=%v", f.ExpectedAmount)
	}
	if f.ActualAmount == nil || !f.ActualAmount.Equal(d("135000")) {
		t.Fatalf("actual=%v", f.ActualAmount)
	}
}

func TestDetect_VarianceBelowThreshold(t *testing.T) {
	prev := item("e1")
	prev.NetSalary = d("100000")
	cur := item("e1")
	cur.NetSalary = d("125000")

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": prev})
	if len(findingsFor(got, "e1", types.CategoryComparison)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_VarianceAtThresholdIsClean(t *testing.T) {
	// The rule fires strictly above 30%, not at it.
	prev := item("e1")
	prev.NetSalary = d("100000")
	cur := item("e1")
	cur.NetSalary = d("130000")

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": prev})
	if len(findingsFor(got, "e1", types.CategoryComparison)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_ZeroSumOvertimeTiersIsClean(t *testing.T) {
	it := item("e1")
	it.OvertimeHours = map[string]decimal.Decimal{"rate15": decimal.Zero, "rate50": decimal.Zero}
	it.OvertimePay = decimal.Zero
	got := Detect(types.PayrollRun{}, []types.LineItem{it}, map[string]types.LineItem{"e1": it})
	if len(findingsFor(got, "e1", types.CategoryOvertime)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_VarianceNegative(t *testing.T) {
	prev := item("e1")
	prev.NetSalary = d("100000")
	cur := item("e1")
	cur.NetSalary = d("60000")

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": prev})
	if len(findingsFor(got, "e1", types.CategoryComparison)) != 1 {
		t.Fatalf("got=%+v", got)
	}
}

func TestVarianceReason_Priority(t *testing.T) {
	it := item("e1")
	it.DaysAbsent = 6
	it.Bonuses = d("90000")
	if got := varianceReason(it); got != "unpaid absences (6 days)" {
		t.Fatalf("got=%q", got)
	}

	it.DaysAbsent = 2
	if got := varianceReason(it); got != "large bonus (90000.00)" {
		t.Fatalf("got=%q", got)
	}

	it.Bonuses = decimal.Zero
	if got := varianceReason(it); got != "unknown reason" {
		t.Fatalf("got=%q", got)
	}
}

func TestDetect_FirstPayrollProrata(t *testing.T) {
	cur := item("e1")
	cur.DaysWorked = 10

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, nil)
	fs := findingsFor(got, "e1", types.CategoryProrata)
	if len(fs) != 1 {
		t.Fatalf("got=%+v", got)
	}
	if fs[0].IssueType != types.IssueTypeInfo {
		t.Fatalf("type=%q", fs[0].IssueType)
	}

	// Full month worked: no prorata note even without a previous period.
	cur.DaysWorked = 22
	got = Detect(types.PayrollRun{}, []types.LineItem{cur}, nil)
	if len(findingsFor(got, "e1", types.CategoryProrata)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_NoProrataWhenPreviousExists(t *testing.T) {
	prev := item("e1")
	cur := item("e1")
	cur.DaysWorked = 10

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": prev})
	if len(findingsFor(got, "e1", types.CategoryProrata)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_LargeBonus(t *testing.T) {
	cur := item("e1")
	cur.GrossSalary = d("100000")
	cur.Bonuses = d("250000")

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": cur})
	fs := findingsFor(got, "e1", types.CategoryBonus)
	if len(fs) != 1 {
		t.Fatalf("got=%+v", got)
	}
	if fs[0].ActualAmount == nil || !fs[0].ActualAmount.Equal(d("250000")) {
		t.Fatalf("actual=%v", fs[0].ActualAmount)
	}

	cur.Bonuses = d("200000")
	got = Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": cur})
	if len(findingsFor(got, "e1", types.CategoryBonus)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_RulesAreAdditive(t *testing.T) {
	// One employee trips overtime, variance and bonus rules at once.
	prev := item("e1")
	prev.NetSalary = d("100000")

	cur := item("e1")
	cur.NetSalary = d("200000")
	cur.GrossSalary = d("100000")
	cur.Bonuses = d("300000")
	cur.OvertimeHours = map[string]decimal.Decimal{"rate15": d("5")}
	cur.OvertimePay = decimal.Zero

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": prev})
	if len(got) != 3 {
		t.Fatalf("len=%d got=%+v", len(got), got)
	}
}

func TestDetect_ZeroPreviousNetSkipsVariance(t *testing.T) {
	prev := item("e1")
	prev.NetSalary = decimal.Zero
	cur := item("e1")
	cur.NetSalary = d("50000")

	got := Detect(types.PayrollRun{}, []types.LineItem{cur}, map[string]types.LineItem{"e1": prev})
	if len(findingsFor(got, "e1", types.CategoryComparison)) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	prev := item("e1")
	cur := item("e1")
	cur.NetSalary = d("140000")
	items := []types.LineItem{cur, item("e2")}
	prevBy := map[string]types.LineItem{"e1": prev}

	a := Detect(types.PayrollRun{}, items, prevBy)
	b := Detect(types.PayrollRun{}, items, prevBy)
	if len(a) != len(b) {
		t.Fatalf("len a=%d b=%d", len(a), len(b))
	}
	for i := range a {
		if a[i].EmployeeID != b[i].EmployeeID || a[i].Title != b[i].Title {
			t.Fatalf("a[%d]=%+v b[%d]=%+v", i, a[i], i, b[i])
		}
	}
}
