package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// celEnv declares the variables an ExprRule may reference. Grounded on
// pkg/kernel/celdp's CEL-based policy-decision-point interface shape,
// generalized to Moat's own PolicyBundle predicate fields.
var celEnv = mustCELEnv()

func mustCELEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("scope", cel.StringType),
		cel.Variable("domains", cel.ListType(cel.StringType)),
		cel.Variable("spend_cents", cel.IntType),
		cel.Variable("risk_class", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("policy: cel env construction failed: %v", err))
	}
	return env
}

// evalExprRule compiles and evaluates expr against the given request
// variables, returning its boolean result. A compile or type-check error
// is returned rather than panicking — a malformed ExprRule must fail
// closed (the caller denies on error), never fail open.
func evalExprRule(expr string, scope string, domains []string, spendCents int64, riskClass string) (bool, error) {
	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("policy: expr_rule compile: %w", issues.Err())
	}
	program, err := celEnv.Program(ast)
	if err != nil {
		return false, fmt.Errorf("policy: expr_rule program: %w", err)
	}

	out, _, err := program.Eval(map[string]interface{}{
		"scope":       scope,
		"domains":     domains,
		"spend_cents": spendCents,
		"risk_class":  riskClass,
	})
	if err != nil {
		return false, fmt.Errorf("policy: expr_rule eval: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy: expr_rule must evaluate to bool, got %T", out.Value())
	}
	return result, nil
}
