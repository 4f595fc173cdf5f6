package policy

import (
	"fmt"
	"log/slog"
)

func SummerizeConclusion(conclusions []Conclusion, defaultAllow bool) bool {
	result := UNSET
	for _, c := range conclusions {
		switch c {
		case ALLOW:
			return true
		case DENY:
			return false
		default:
			result = result.Or(c)
		}
	}
	if result == UNSET {
		return defaultAllow
	}
	return result == ALLOW || result == OK
}

func EvaluatePolicy(policydoc PolicyDocument, ctx RequestContext, action string) (Conclusion, error) {

	policy, ok := policydoc.Versions[Version]
	if !ok {
		return UNSET, fmt.Errorf("unsupported policy version")
	}

	statements, ok := policy.Statements[action]
	if !ok {
		return UNSET, nil
	}

	conclusion := UNSET
	for _, stmt := range statements {
		evalResult, err := Eval(ctx, stmt.Condition)
		if err != nil {
			slog.Debug(
				"policy statement failed to evaluate",
				slog.String("policy", policydoc.Name),
				slog.String("action", action),
				slog.String("error", err.Error()),
				slog.String("module", "policy"),
			)
			continue
		}

		if matched, _ := evalResult.Result.(bool); matched {
			conclusion = conclusion.Or(ParseConclusion(stmt.Emit))
		}
	}
	return conclusion, nil
}

// Decide evaluates action and falls back to the document's default for it.
func Decide(policydoc PolicyDocument, ctx RequestContext, action string) (bool, error) {
	conclusion, err := EvaluatePolicy(policydoc, ctx, action)
	if err != nil {
		return false, err
	}
	defaultAllow := policydoc.Versions[Version].Defaults[action]
	return SummerizeConclusion([]Conclusion{conclusion}, defaultAllow), nil
}

func Eval(ctx RequestContext, expr Expr) (EvalResult, error) {

	if expr.Const != nil {
		return EvalResult{
			Operator: "Const",
			Result:   expr.Const,
		}, nil
	}

	args := make([]any, 0, len(expr.Args))
	for _, arg := range expr.Args {
		result, err := Eval(ctx, arg)
		if err != nil {
			return EvalResult{
				Operator: expr.Operator,
				Error:    err.Error(),
			}, err
		}
		args = append(args, result.Result)
	}

	if operatorFunc, exists := operators[expr.Operator]; exists {
		return operatorFunc(ctx, args)
	}

	return fail(expr.Operator, fmt.Errorf("unknown operator: %s", expr.Operator))
}
