package calc

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeLineItem_FullMonthNoOvertime(t *testing.T) {
	got := ComputeLineItem(EmployeeInputs{
		EmployeeID:   "e1",
		EmployeeName: "Mya",
		BaseSalary:   d("40000"),
		DaysWorked:   22,
	})
	if !got.GrossSalary.Equal(d("40000")) {
		t.Fatalf("gross=%s", got.GrossSalary)
	}
	if !got.NetSalary.Equal(d("40000")) {
		t.Fatalf("net=%s", got.NetSalary)
	}
	if !got.OvertimePay.IsZero() {
		t.Fatalf("overtimePay=%s", got.OvertimePay)
	}
}

func TestComputeLineItem_Prorata(t *testing.T) {
	got := ComputeLineItem(EmployeeInputs{
		EmployeeID: "e1",
		BaseSalary: d("44000"),
		DaysWorked: 11,
	})
	// 44000 / 22 * 11
	if !got.GrossSalary.Equal(d("22000")) {
		t.Fatalf("gross=%s", got.GrossSalary)
	}
}

func TestComputeLineItem_OvertimePay(t *testing.T) {
	got := ComputeLineItem(EmployeeInputs{
		EmployeeID: "e1",
		BaseSalary: d("17333"),
		DaysWorked: 22,
		OvertimeHours: map[string]decimal.Decimal{
			"rate15": d("6"),
			"rate50": d("4"),
		},
	})
	// hourlyRate = 17333/173.33 = 100, 10h * 100 * 1.15 = 1150
	if !got.OvertimePay.Equal(d("1150")) {
		t.Fatalf("overtimePay=%s", got.OvertimePay)
	}
	if !got.GrossSalary.Equal(d("18483")) {
		t.Fatalf("gross=%s", got.GrossSalary)
	}
}

func TestComputeLineItem_Withholding(t *testing.T) {
	got := ComputeLineItem(EmployeeInputs{
		EmployeeID: "e1",
		BaseSalary: d("100000"),
		DaysWorked: 22,
	})
	// 100000 * 5% - 2500 = 2500
	if !got.NetSalary.Equal(d("97500")) {
		t.Fatalf("net=%s", got.NetSalary)
	}
}

func TestComputeLineItem_DoesNotShareTierMap(t *testing.T) {
	tiers := map[string]decimal.Decimal{"rate15": d("2")}
	got := ComputeLineItem(EmployeeInputs{EmployeeID: "e1", BaseSalary: d("20000"), DaysWorked: 22, OvertimeHours: tiers})
	tiers["rate15"] = d("99")
	if !got.OvertimeHours["rate15"].Equal(d("2")) {
		t.Fatalf("tier map aliased: %s", got.OvertimeHours["rate15"])
	}
}

func TestComputeRun_MatchesComputeLineItem(t *testing.T) {
	inputs := []EmployeeInputs{
		{EmployeeID: "e1", BaseSalary: d("40000"), DaysWorked: 22},
		{EmployeeID: "e2", BaseSalary: d("52000"), Bonuses: d("8000"), DaysWorked: 18,
			OvertimeHours: map[string]decimal.Decimal{"rate50": d("7.5")}},
	}

	bulk := ComputeRun(inputs)
	if len(bulk) != 2 {
		t.Fatalf("len=%d", len(bulk))
	}
	for i, in := range inputs {
		single := ComputeLineItem(in)
		if !bulk[i].GrossSalary.Equal(single.GrossSalary) ||
			!bulk[i].NetSalary.Equal(single.NetSalary) ||
			!bulk[i].OvertimePay.Equal(single.OvertimePay) {
			t.Fatalf("bulk[%d]=%+v single=%+v", i, bulk[i], single)
		}
	}
}

func TestBracketForGross(t *testing.T) {
	cases := []struct {
		gross string
		rate  int64
		quick int64
	}{
		{"50000", 0, 0},
		{"50000.01", 5, 2500},
		{"150000", 5, 2500},
		{"400000", 10, 10000},
		{"800000", 15, 30000},
		{"800000.01", 20, 70000},
	}
	for _, tc := range cases {
		rate, quick := bracketForGross(d(tc.gross))
		if rate != tc.rate || quick != tc.quick {
			t.Fatalf("gross=%s rate=%d quick=%d", tc.gross, rate, quick)
		}
	}
}
