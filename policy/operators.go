package policy

import (
	"fmt"
	"reflect"
	"slices"
)

type Operator func(ctx RequestContext, args []any) (EvalResult, error)

var operators = make(map[string]Operator)

func init() {
	operators["And"] = opAnd
	operators["Or"] = opOr
	operators["Not"] = opNot
	operators["Eq"] = opEq
	operators["Contains"] = opContains
	operators["Load"] = opLoad
	operators["IsSet"] = opIsSet
}

func fail(op string, err error) (EvalResult, error) {
	return EvalResult{
		Operator: op,
		Error:    err.Error(),
	}, err
}

func bools(op string, args []any) ([]bool, error) {
	out := make([]bool, len(args))
	for i, arg := range args {
		b, ok := arg.(bool)
		if !ok {
			return nil, fmt.Errorf("bad argument type for %s at index %d. Expected bool but got %s", op, i, reflect.TypeOf(arg))
		}
		out[i] = b
	}
	return out, nil
}

func isComparable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

func opAnd(ctx RequestContext, args []any) (EvalResult, error) {
	values, err := bools("And", args)
	if err != nil {
		return fail("And", err)
	}
	return EvalResult{Operator: "And", Result: !slices.Contains(values, false)}, nil
}

func opOr(ctx RequestContext, args []any) (EvalResult, error) {
	values, err := bools("Or", args)
	if err != nil {
		return fail("Or", err)
	}
	return EvalResult{Operator: "Or", Result: slices.Contains(values, true)}, nil
}

func opNot(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		return fail("Not", fmt.Errorf("bad argument length for Not. Expected 1 but got %d", len(args)))
	}
	values, err := bools("Not", args)
	if err != nil {
		return fail("Not", err)
	}
	return EvalResult{Operator: "Not", Result: !values[0]}, nil
}

func opEq(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 2 {
		return fail("Eq", fmt.Errorf("bad argument length for Eq. Expected 2 but got %d", len(args)))
	}
	if !isComparable(args[0]) || !isComparable(args[1]) {
		return fail("Eq", fmt.Errorf("bad argument type for Eq. Arguments must be comparable"))
	}
	return EvalResult{Operator: "Eq", Result: args[0] == args[1]}, nil
}

func opContains(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 2 {
		return fail("Contains", fmt.Errorf("bad argument length for Contains. Expected 2 but got %d", len(args)))
	}

	switch list := args[0].(type) {
	case []any:
		return EvalResult{Operator: "Contains", Result: slices.Contains(list, args[1])}, nil
	case []string:
		s, _ := args[1].(string)
		return EvalResult{Operator: "Contains", Result: slices.Contains(list, s)}, nil
	default:
		return fail("Contains", fmt.Errorf("bad argument type for Contains. Expected list but got %s", reflect.TypeOf(args[0])))
	}
}

func opLoad(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		return fail("Load", fmt.Errorf("bad argument length for Load. Expected 1 but got %d", len(args)))
	}

	key, ok := args[0].(string)
	if !ok {
		return fail("Load", fmt.Errorf("bad argument type for Load. Expected string but got %s", reflect.TypeOf(args[0])))
	}

	value, ok := resolveDotNotation(structToMap(ctx), key)
	if !ok {
		return fail("Load", fmt.Errorf("key not found: %s", key))
	}

	return EvalResult{Operator: "Load", Result: value}, nil
}

// opIsSet is Load that reports presence instead of failing.
func opIsSet(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		return fail("IsSet", fmt.Errorf("bad argument length for IsSet. Expected 1 but got %d", len(args)))
	}
	key, ok := args[0].(string)
	if !ok {
		return fail("IsSet", fmt.Errorf("bad argument type for IsSet. Expected string but got %s", reflect.TypeOf(args[0])))
	}
	value, ok := resolveDotNotation(structToMap(ctx), key)
	return EvalResult{Operator: "IsSet", Result: ok && value != nil && value != ""}, nil
}
