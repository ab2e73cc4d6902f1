package policy

import (
	"math"

	perrors "rtgssim/pkg/errors"
)

// MaxDepth bounds tree descent depth at evaluation time, mirroring the bound
// enforced on tree shape at load time (see validator.go). It exists here
// too as a cheap circuit breaker against a tree that somehow evaded
// validation.
const MaxDepth = 32

// Evaluate walks tree starting at its root, descending through Condition
// nodes according to ctx, and returns the Action at the leaf reached.
//
// If arithmetic evaluation fails (divide by zero outside SafeDiv, or depth
// exceeded), Evaluate returns the tree kind's safe default action together
// with the error: interpreter-level arithmetic failure is recoverable by
// design, logged as a diagnostic event by the caller, never fatal.
func Evaluate(tree *Tree, ctx *EvalContext, kind TreeKind) (*Action, error) {
	node := tree
	for depth := 0; depth < MaxDepth; depth++ {
		if node == nil {
			return SafeDefaultAction(kind), nil
		}
		if node.Action != nil {
			return node.Action, nil
		}
		if node.Condition == nil {
			return SafeDefaultAction(kind), nil
		}
		b, err := evalBool(node.Condition.Bool, ctx)
		if err != nil {
			return SafeDefaultAction(kind), err
		}
		if b {
			node = node.Condition.OnTrue
		} else {
			node = node.Condition.OnFalse
		}
	}
	return SafeDefaultAction(kind), perrors.NewKinded(perrors.KindArithmeticFailure, "policy tree descent exceeded max depth", nil)
}

func evalBool(b BoolExpr, ctx *EvalContext) (bool, error) {
	switch {
	case b.Cmp != nil:
		left, err := evalValue(b.Cmp.Left, ctx)
		if err != nil {
			return false, err
		}
		right, err := evalValue(b.Cmp.Right, ctx)
		if err != nil {
			return false, err
		}
		return compare(b.Cmp.Op, left, right), nil
	case b.And != nil:
		for _, sub := range b.And {
			v, err := evalBool(sub, ctx)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil
	case b.Or != nil:
		for _, sub := range b.Or {
			v, err := evalBool(sub, ctx)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	case b.Not != nil:
		v, err := evalBool(*b.Not, ctx)
		if err != nil {
			return false, err
		}
		return !v, nil
	default:
		return false, perrors.NewKinded(perrors.KindArithmeticFailure, "empty boolean expression", nil)
	}
}

func compare(op CmpOp, left, right float64) bool {
	switch op {
	case CmpEq:
		return left == right
	case CmpNeq:
		return left != right
	case CmpLt:
		return left < right
	case CmpLte:
		return left <= right
	case CmpGt:
		return left > right
	case CmpGte:
		return left >= right
	default:
		return false
	}
}

func evalValue(v Value, ctx *EvalContext) (float64, error) {
	switch {
	case v.Field != nil:
		val, ok := ctx.get(*v.Field)
		if !ok {
			return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "field not present in eval context", perrors.ErrPolicyFieldUnknown)
		}
		return val, nil
	case v.Param != nil:
		val, ok := ctx.getParam(*v.Param)
		if !ok {
			return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "param not present in eval context", perrors.ErrPolicyParamUnknown)
		}
		return val, nil
	case v.Literal != nil:
		return *v.Literal, nil
	case v.Compute != nil:
		return evalCompute(*v.Compute, ctx)
	default:
		return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "empty value expression", nil)
	}
}

func evalCompute(c Compute, ctx *EvalContext) (float64, error) {
	args := make([]float64, len(c.Args))
	for i, a := range c.Args {
		v, err := evalValue(a, ctx)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	switch c.Op {
	case ComputeAdd:
		return need(args, 2, func() float64 { return args[0] + args[1] })
	case ComputeSub:
		return need(args, 2, func() float64 { return args[0] - args[1] })
	case ComputeMul:
		return need(args, 2, func() float64 { return args[0] * args[1] })
	case ComputeDiv:
		if len(args) != 2 {
			return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "div requires exactly 2 args", nil)
		}
		if args[1] == 0 {
			return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "division by zero", perrors.ErrDivideByZero)
		}
		return args[0] / args[1], nil
	case ComputeSafeDiv:
		if len(args) != 3 {
			return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "safe_div requires exactly 3 args", nil)
		}
		if args[1] == 0 {
			return args[2], nil
		}
		return args[0] / args[1], nil
	case ComputeMin:
		if len(args) == 0 {
			return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "min requires at least 1 arg", nil)
		}
		m := args[0]
		for _, a := range args[1:] {
			if a < m {
				m = a
			}
		}
		return m, nil
	case ComputeMax:
		if len(args) == 0 {
			return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "max requires at least 1 arg", nil)
		}
		m := args[0]
		for _, a := range args[1:] {
			if a > m {
				m = a
			}
		}
		return m, nil
	case ComputeCeil:
		return need(args, 1, func() float64 { return math.Ceil(args[0]) })
	case ComputeFloor:
		return need(args, 1, func() float64 { return math.Floor(args[0]) })
	case ComputeRound:
		return need(args, 1, func() float64 { return math.Round(args[0]) })
	case ComputeAbs:
		return need(args, 1, func() float64 { return math.Abs(args[0]) })
	case ComputeClamp:
		if len(args) != 3 {
			return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "clamp requires exactly 3 args", nil)
		}
		val, lo, hi := args[0], args[1], args[2]
		if lo > hi {
			lo, hi = hi, lo
		}
		return math.Min(math.Max(val, lo), hi), nil
	default:
		return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "unknown compute op", nil)
	}
}

func need(args []float64, n int, f func() float64) (float64, error) {
	if len(args) != n {
		return 0, perrors.NewKinded(perrors.KindArithmeticFailure, "wrong arity for compute op", nil)
	}
	return f(), nil
}

// ResolveNumSplits evaluates a Split action's NumSplits value and clamps it
// to [1, maxPacingFactor], rounding to the nearest integer.
func ResolveNumSplits(p *SplitParams, ctx *EvalContext, maxPacingFactor int) (int, error) {
	v, err := evalValue(p.NumSplits, ctx)
	if err != nil {
		return 1, err
	}
	n := int(math.Round(v))
	if n < 1 {
		n = 1
	}
	if n > maxPacingFactor {
		n = maxPacingFactor
	}
	return n, nil
}

// ResolveValue evaluates an arbitrary Value against ctx, for action
// parameters that stay in float space (bank-tree state registers).
func ResolveValue(v Value, ctx *EvalContext) (float64, error) {
	return evalValue(v, ctx)
}

// ResolveAmount evaluates a collateral amount Value, floor-rounding to a
// non-negative integer cent amount (money contexts never produce fractional
// or negative cents).
func ResolveAmount(v Value, ctx *EvalContext) (int64, error) {
	f, err := evalValue(v, ctx)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		f = 0
	}
	return int64(math.Floor(f)), nil
}
