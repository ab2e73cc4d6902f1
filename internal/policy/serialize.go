package policy

import (
	"encoding/json"
	"fmt"

	perrors "rtgssim/pkg/errors"
)

// This file implements the canonical JSON form of a policy tree: the
// wire representation the `FromJson` config policy variant (spec §4.3)
// reads, and the shape an LLM-proposed candidate must parse as (spec §6
// LLM client contract). Round-tripping a Policy through ToJSON/
// PolicyFromJSON twice must be the identity on canonical form (spec §8).

// wireTree mirrors Tree but serializes Field references by name and
// carries only whichever of Condition/Action is set, same as the
// in-memory type.
type wireTree struct {
	Condition *wireCondition `json:"condition,omitempty"`
	Action    *wireAction    `json:"action,omitempty"`
}

type wireCondition struct {
	Bool    wireBoolExpr `json:"bool"`
	OnTrue  *wireTree    `json:"on_true"`
	OnFalse *wireTree    `json:"on_false"`
}

type wireBoolExpr struct {
	Cmp *wireComparison `json:"cmp,omitempty"`
	And []wireBoolExpr  `json:"and,omitempty"`
	Or  []wireBoolExpr  `json:"or,omitempty"`
	Not *wireBoolExpr   `json:"not,omitempty"`
}

type wireComparison struct {
	Op    CmpOp     `json:"op"`
	Left  wireValue `json:"left"`
	Right wireValue `json:"right"`
}

type wireValue struct {
	Field   *string      `json:"field,omitempty"`
	Param   *string      `json:"param,omitempty"`
	Literal *float64     `json:"literal,omitempty"`
	Compute *wireCompute `json:"compute,omitempty"`
}

type wireCompute struct {
	Op   ComputeOp   `json:"op"`
	Args []wireValue `json:"args"`
}

type wireAction struct {
	Type               ActionType          `json:"type"`
	Reason             string              `json:"reason,omitempty"`
	Split              *wireSplit          `json:"split,omitempty"`
	PostCollateral     *wireCollateralAmt  `json:"post_collateral,omitempty"`
	WithdrawCollateral *wireCollateralAmt  `json:"withdraw_collateral,omitempty"`
	SetState           *wireSetState       `json:"set_state,omitempty"`
	AddState           *wireSetState       `json:"add_state,omitempty"`
}

type wireSplit struct {
	NumSplits wireValue `json:"num_splits"`
}

type wireCollateralAmt struct {
	Amount wireValue `json:"amount"`
}

type wireSetState struct {
	Key   int       `json:"key"`
	Value wireValue `json:"value"`
}

// wireDoc is the top-level JSON document: a tree plus the declared
// parameter set it closes over, per the Policy type.
type wireDoc struct {
	Kind   string             `json:"kind"`
	Params map[string]float64 `json:"params,omitempty"`
	Root   *wireTree          `json:"root"`
}

var treeKindNames = map[TreeKind]string{
	TreePayment:             "payment",
	TreeStrategicCollateral: "strategic_collateral",
	TreeEndOfTickCollateral: "end_of_tick_collateral",
	TreeBank:                "bank",
}

var treeKindsByName = map[string]TreeKind{
	"payment":                TreePayment,
	"strategic_collateral":   TreeStrategicCollateral,
	"end_of_tick_collateral": TreeEndOfTickCollateral,
	"bank":                   TreeBank,
}

// ToJSON renders p in its canonical wire form.
func (p *Policy) ToJSON() ([]byte, error) {
	kindName, ok := treeKindNames[p.Kind]
	if !ok {
		return nil, fmt.Errorf("policy: unknown tree kind %d", p.Kind)
	}
	root, err := treeToWire(p.Root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireDoc{Kind: kindName, Params: p.Params, Root: root})
}

// PolicyFromJSON parses data into a Policy and validates it, erroring with
// KindPolicyValidationFailed on any structural problem per spec §4.3/§7:
// an LLM response or FromJson config entry that doesn't parse into a
// legal tree is never returned to the caller.
func PolicyFromJSON(data []byte) (*Policy, error) {
	var doc wireDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, wrapParseErr(err)
	}
	kind, ok := treeKindsByName[doc.Kind]
	if !ok {
		return nil, wrapParseErr(fmt.Errorf("unknown tree kind %q", doc.Kind))
	}
	root, err := wireToTree(doc.Root)
	if err != nil {
		return nil, wrapParseErr(err)
	}
	return NewPolicy(kind, root, doc.Params)
}

func treeToWire(t *Tree) (*wireTree, error) {
	if t == nil {
		return nil, nil
	}
	if t.Action != nil {
		a, err := actionToWire(t.Action)
		if err != nil {
			return nil, err
		}
		return &wireTree{Action: a}, nil
	}
	if t.Condition == nil {
		return nil, fmt.Errorf("policy: tree node has neither condition nor action")
	}
	boolExpr, err := boolToWire(t.Condition.Bool)
	if err != nil {
		return nil, err
	}
	onTrue, err := treeToWire(t.Condition.OnTrue)
	if err != nil {
		return nil, err
	}
	onFalse, err := treeToWire(t.Condition.OnFalse)
	if err != nil {
		return nil, err
	}
	return &wireTree{Condition: &wireCondition{Bool: boolExpr, OnTrue: onTrue, OnFalse: onFalse}}, nil
}

func boolToWire(b BoolExpr) (wireBoolExpr, error) {
	var out wireBoolExpr
	if b.Cmp != nil {
		left, err := valueToWire(b.Cmp.Left)
		if err != nil {
			return out, err
		}
		right, err := valueToWire(b.Cmp.Right)
		if err != nil {
			return out, err
		}
		out.Cmp = &wireComparison{Op: b.Cmp.Op, Left: left, Right: right}
	}
	for _, sub := range b.And {
		w, err := boolToWire(sub)
		if err != nil {
			return out, err
		}
		out.And = append(out.And, w)
	}
	for _, sub := range b.Or {
		w, err := boolToWire(sub)
		if err != nil {
			return out, err
		}
		out.Or = append(out.Or, w)
	}
	if b.Not != nil {
		w, err := boolToWire(*b.Not)
		if err != nil {
			return out, err
		}
		out.Not = &w
	}
	return out, nil
}

func valueToWire(v Value) (wireValue, error) {
	var out wireValue
	switch {
	case v.Field != nil:
		name, ok := FieldName(*v.Field)
		if !ok {
			return out, fmt.Errorf("policy: unknown field id %d", *v.Field)
		}
		out.Field = &name
	case v.Param != nil:
		out.Param = v.Param
	case v.Literal != nil:
		out.Literal = v.Literal
	case v.Compute != nil:
		args := make([]wireValue, 0, len(v.Compute.Args))
		for _, a := range v.Compute.Args {
			w, err := valueToWire(a)
			if err != nil {
				return out, err
			}
			args = append(args, w)
		}
		out.Compute = &wireCompute{Op: v.Compute.Op, Args: args}
	default:
		return out, fmt.Errorf("policy: value has no variant set")
	}
	return out, nil
}

func actionToWire(a *Action) (*wireAction, error) {
	out := &wireAction{Type: a.Type, Reason: a.Reason}
	var err error
	if a.Split != nil {
		var ns wireValue
		if ns, err = valueToWire(a.Split.NumSplits); err != nil {
			return nil, err
		}
		out.Split = &wireSplit{NumSplits: ns}
	}
	if a.PostCollateral != nil {
		var amt wireValue
		if amt, err = valueToWire(a.PostCollateral.Amount); err != nil {
			return nil, err
		}
		out.PostCollateral = &wireCollateralAmt{Amount: amt}
	}
	if a.WithdrawCollateral != nil {
		var amt wireValue
		if amt, err = valueToWire(a.WithdrawCollateral.Amount); err != nil {
			return nil, err
		}
		out.WithdrawCollateral = &wireCollateralAmt{Amount: amt}
	}
	if a.SetState != nil {
		var v wireValue
		if v, err = valueToWire(a.SetState.Value); err != nil {
			return nil, err
		}
		out.SetState = &wireSetState{Key: a.SetState.Key, Value: v}
	}
	if a.AddState != nil {
		var v wireValue
		if v, err = valueToWire(a.AddState.Delta); err != nil {
			return nil, err
		}
		out.AddState = &wireSetState{Key: a.AddState.Key, Value: v}
	}
	return out, nil
}

func wireToTree(t *wireTree) (*Tree, error) {
	if t == nil {
		return nil, nil
	}
	if t.Action != nil {
		a, err := wireToAction(t.Action)
		if err != nil {
			return nil, err
		}
		return leafAction(a), nil
	}
	if t.Condition == nil {
		return nil, fmt.Errorf("policy: wire tree node has neither condition nor action")
	}
	boolExpr, err := wireToBool(t.Condition.Bool)
	if err != nil {
		return nil, err
	}
	onTrue, err := wireToTree(t.Condition.OnTrue)
	if err != nil {
		return nil, err
	}
	onFalse, err := wireToTree(t.Condition.OnFalse)
	if err != nil {
		return nil, err
	}
	return &Tree{Condition: &Condition{Bool: boolExpr, OnTrue: onTrue, OnFalse: onFalse}}, nil
}

func wireToBool(w wireBoolExpr) (BoolExpr, error) {
	var out BoolExpr
	if w.Cmp != nil {
		left, err := wireToValue(w.Cmp.Left)
		if err != nil {
			return out, err
		}
		right, err := wireToValue(w.Cmp.Right)
		if err != nil {
			return out, err
		}
		out.Cmp = &Comparison{Op: w.Cmp.Op, Left: left, Right: right}
	}
	for _, sub := range w.And {
		b, err := wireToBool(sub)
		if err != nil {
			return out, err
		}
		out.And = append(out.And, b)
	}
	for _, sub := range w.Or {
		b, err := wireToBool(sub)
		if err != nil {
			return out, err
		}
		out.Or = append(out.Or, b)
	}
	if w.Not != nil {
		b, err := wireToBool(*w.Not)
		if err != nil {
			return out, err
		}
		out.Not = &b
	}
	return out, nil
}

func wireToValue(w wireValue) (Value, error) {
	switch {
	case w.Field != nil:
		f, ok := FieldByName(*w.Field)
		if !ok {
			return Value{}, fmt.Errorf("policy: unknown field name %q", *w.Field)
		}
		return FieldValue(f), nil
	case w.Param != nil:
		return ParamValue(*w.Param), nil
	case w.Literal != nil:
		return LiteralValue(*w.Literal), nil
	case w.Compute != nil:
		args := make([]Value, 0, len(w.Compute.Args))
		for _, a := range w.Compute.Args {
			v, err := wireToValue(a)
			if err != nil {
				return Value{}, err
			}
			args = append(args, v)
		}
		return Value{Compute: &Compute{Op: w.Compute.Op, Args: args}}, nil
	default:
		return Value{}, fmt.Errorf("policy: wire value has no variant set")
	}
}

func wireToAction(w *wireAction) (*Action, error) {
	out := &Action{Type: w.Type, Reason: w.Reason}
	if w.Split != nil {
		v, err := wireToValue(w.Split.NumSplits)
		if err != nil {
			return nil, err
		}
		out.Split = &SplitParams{NumSplits: v}
	}
	if w.PostCollateral != nil {
		v, err := wireToValue(w.PostCollateral.Amount)
		if err != nil {
			return nil, err
		}
		out.PostCollateral = &CollateralAmountParams{Amount: v}
	}
	if w.WithdrawCollateral != nil {
		v, err := wireToValue(w.WithdrawCollateral.Amount)
		if err != nil {
			return nil, err
		}
		out.WithdrawCollateral = &CollateralAmountParams{Amount: v}
	}
	if w.SetState != nil {
		v, err := wireToValue(w.SetState.Value)
		if err != nil {
			return nil, err
		}
		out.SetState = &SetStateParams{Key: w.SetState.Key, Value: v}
	}
	if w.AddState != nil {
		v, err := wireToValue(w.AddState.Value)
		if err != nil {
			return nil, err
		}
		out.AddState = &AddStateParams{Key: w.AddState.Key, Delta: v}
	}
	return out, nil
}

func wrapParseErr(err error) error {
	return perrors.NewKinded(perrors.KindPolicyValidationFailed, "policy tree failed to parse", err)
}
