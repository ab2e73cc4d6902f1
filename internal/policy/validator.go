package policy

import (
	perrors "rtgssim/pkg/errors"
)

// MaxTreeDepth bounds how many Condition nodes may be descended before a
// leaf Action must be reached. Enforced once at load time so the
// interpreter's own MaxDepth circuit breaker should never actually trip in
// a tree that passed Validate.
const MaxTreeDepth = 20

// Policy bundles a tree with the declared parameter set it closes over.
// Params are named constants a tree author can reference via ParamValue
// without hardcoding a literal; they are supplied once at load time and
// held fixed for the life of the policy (distinct from EvalContext, which
// is rebuilt every evaluation from live simulation state).
type Policy struct {
	Kind   TreeKind
	Root   *Tree
	Params map[string]float64
}

// NewPolicy constructs a Policy and validates it immediately; an invalid
// tree is never returned to the caller.
func NewPolicy(kind TreeKind, root *Tree, params map[string]float64) (*Policy, error) {
	p := &Policy{Kind: kind, Root: root, Params: params}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate walks the whole tree once, checking: every Field reference is
// legal for Kind, every Param reference was declared, every Action's type
// is legal for Kind and carries the payload its type requires, the tree is
// acyclic, and no path exceeds MaxTreeDepth.
func (p *Policy) Validate() error {
	if p.Root == nil {
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "tree has no root", nil)
	}
	visiting := make(map[*Tree]bool)
	return p.validateNode(p.Root, visiting, 0)
}

func (p *Policy) validateNode(node *Tree, visiting map[*Tree]bool, depth int) error {
	if node == nil {
		return nil
	}
	if visiting[node] {
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "tree contains a cycle", perrors.ErrPolicyTreeNotATree)
	}
	if depth > MaxTreeDepth {
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "tree exceeds max depth", perrors.ErrPolicyTooDeep)
	}
	visiting[node] = true
	defer delete(visiting, node)

	switch {
	case node.Action != nil && node.Condition != nil:
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "node has both an action and a condition", nil)
	case node.Action != nil:
		return p.validateAction(node.Action)
	case node.Condition != nil:
		if err := p.validateBool(node.Condition.Bool); err != nil {
			return err
		}
		if err := p.validateNode(node.Condition.OnTrue, visiting, depth+1); err != nil {
			return err
		}
		return p.validateNode(node.Condition.OnFalse, visiting, depth+1)
	default:
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "empty tree node", nil)
	}
}

func (p *Policy) validateBool(b BoolExpr) error {
	switch {
	case b.Cmp != nil:
		if err := p.validateValue(b.Cmp.Left); err != nil {
			return err
		}
		return p.validateValue(b.Cmp.Right)
	case b.And != nil:
		for _, sub := range b.And {
			if err := p.validateBool(sub); err != nil {
				return err
			}
		}
		return nil
	case b.Or != nil:
		for _, sub := range b.Or {
			if err := p.validateBool(sub); err != nil {
				return err
			}
		}
		return nil
	case b.Not != nil:
		return p.validateBool(*b.Not)
	default:
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "empty boolean expression", nil)
	}
}

func (p *Policy) validateValue(v Value) error {
	switch {
	case v.Field != nil:
		if !AllowedInTree(*v.Field, p.Kind) {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "field not allowed in this tree kind", perrors.ErrPolicyFieldUnknown)
		}
		return nil
	case v.Param != nil:
		if _, ok := p.Params[*v.Param]; !ok {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "param not declared", perrors.ErrPolicyParamUnknown)
		}
		return nil
	case v.Literal != nil:
		return nil
	case v.Compute != nil:
		for _, a := range v.Compute.Args {
			if err := p.validateValue(a); err != nil {
				return err
			}
		}
		return validateArity(*v.Compute)
	default:
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "empty value expression", nil)
	}
}

func validateArity(c Compute) error {
	n := len(c.Args)
	switch c.Op {
	case ComputeAdd, ComputeSub, ComputeMul, ComputeDiv:
		if n != 2 {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "wrong arity for binary compute op", nil)
		}
	case ComputeMin, ComputeMax:
		if n < 1 {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "wrong arity for n-ary compute op", nil)
		}
	case ComputeCeil, ComputeFloor, ComputeRound, ComputeAbs:
		if n != 1 {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "wrong arity for unary compute op", nil)
		}
	case ComputeClamp:
		if n != 3 {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "clamp requires exactly 3 args", nil)
		}
	case ComputeSafeDiv:
		if n != 3 {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "safe_div requires exactly 3 args", nil)
		}
	default:
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "unknown compute op", nil)
	}
	return nil
}

func (p *Policy) validateAction(a *Action) error {
	if !LegalInTree(a.Type, p.Kind) {
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "action not legal for this tree kind", perrors.ErrPolicyWrongTreeType)
	}
	switch a.Type {
	case ActionSplit:
		if a.Split == nil {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "split action missing parameters", nil)
		}
		return p.validateValue(a.Split.NumSplits)
	case ActionPostCollateral:
		if a.PostCollateral == nil {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "post_collateral action missing parameters", nil)
		}
		return p.validateValue(a.PostCollateral.Amount)
	case ActionWithdrawCollateral:
		if a.WithdrawCollateral == nil {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "withdraw_collateral action missing parameters", nil)
		}
		return p.validateValue(a.WithdrawCollateral.Amount)
	case ActionSetState:
		if a.SetState == nil {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "set_state action missing parameters", nil)
		}
		if a.SetState.Key < 0 || a.SetState.Key > 9 {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "set_state key out of range", nil)
		}
		return p.validateValue(a.SetState.Value)
	case ActionAddState:
		if a.AddState == nil {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "add_state action missing parameters", nil)
		}
		if a.AddState.Key < 0 || a.AddState.Key > 9 {
			return perrors.NewKinded(perrors.KindPolicyValidationFailed, "add_state key out of range", nil)
		}
		return p.validateValue(a.AddState.Delta)
	case ActionReleaseV, ActionHold, ActionDrop, ActionHoldCollateral, ActionNoAction:
		return nil
	default:
		return perrors.NewKinded(perrors.KindPolicyValidationFailed, "unknown action type", nil)
	}
}
