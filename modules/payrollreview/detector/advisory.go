package detector

import (
	"strconv"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/petalhr/petal/modules/payrollreview/domain/types"
	"github.com/petalhr/petal/pkg/payroll/calc"
)

var newAdvisoryCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("item", cel.MapType(cel.StringType, cel.StringType)))
}

var advisoryProgramCache sync.Map

func advisoryProgram(env *cel.Env, expr string) (cel.Program, error) {
	if cached, ok := advisoryProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	advisoryProgramCache.Store(expr, prg)
	return prg, nil
}

// EvaluateAdvisoryRules runs tenant-defined CEL rules over the run's line
// items. Rules are advisory: a rule that fails to compile or evaluate is
// skipped, never surfaced as a request error. Callers pass rules already
// ordered by priority.
func EvaluateAdvisoryRules(rules []types.ReviewRule, items []types.LineItem) []types.Finding {
	if len(rules) == 0 || len(items) == 0 {
		return nil
	}
	env, err := newAdvisoryCELEnv()
	if err != nil {
		return nil
	}

	var out []types.Finding
	for _, rule := range rules {
		eligibility, err := advisoryProgram(env, rule.EligibilityExpr)
		if err != nil {
			continue
		}
		for _, item := range items {
			facts := lineItemFacts(item)
			val, _, err := eligibility.Eval(map[string]any{"item": facts})
			if err != nil {
				continue
			}
			matched, ok := val.Value().(bool)
			if !ok || !matched {
				continue
			}

			title := evalAdvisoryString(env, rule.TitleExpr, facts)
			if title == "" {
				title = rule.RuleID
			}

			out = append(out, types.Finding{
				EmployeeID:  item.EmployeeID,
				IssueType:   types.IssueTypeInfo,
				Category:    advisoryCategory(rule.Category),
				Title:       title,
				Description: evalAdvisoryString(env, rule.DetailExpr, facts),
			})
		}
	}
	return out
}

func evalAdvisoryString(env *cel.Env, expr string, facts map[string]string) string {
	if expr == "" {
		return ""
	}
	prg, err := advisoryProgram(env, expr)
	if err != nil {
		return ""
	}
	val, _, err := prg.Eval(map[string]any{"item": facts})
	if err != nil {
		return ""
	}
	s, ok := val.Value().(string)
	if !ok {
		return ""
	}
	return s
}

func advisoryCategory(c types.IssueCategory) types.IssueCategory {
	switch c {
	case types.CategoryOvertime, types.CategoryComparison, types.CategoryProrata, types.CategoryDeduction, types.CategoryBonus:
		return c
	default:
		return types.CategoryDeduction
	}
}

func lineItemFacts(item types.LineItem) map[string]string {
	return map[string]string{
		"employee_id":          item.EmployeeID,
		"employee_name":        item.EmployeeName,
		"base_salary":          item.BaseSalary.String(),
		"gross_salary":         item.GrossSalary.String(),
		"net_salary":           item.NetSalary.String(),
		"overtime_pay":         item.OvertimePay.String(),
		"bonuses":              item.Bonuses.String(),
		"days_worked":          strconv.Itoa(item.DaysWorked),
		"days_absent":          strconv.Itoa(item.DaysAbsent),
		"total_overtime_hours": calc.TotalOvertimeHours(item.OvertimeHours).String(),
	}
}
