package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func releaseTree() *Tree {
	return leafAction(&Action{Type: ActionReleaseV})
}

func TestEvaluateSimpleCondition(t *testing.T) {
	tree := &Tree{
		Condition: &Condition{
			Bool: BoolExpr{Cmp: &Comparison{
				Op:    CmpGt,
				Left:  FieldValue(FieldBalance),
				Right: LiteralValue(0),
			}},
			OnTrue:  releaseTree(),
			OnFalse: leafAction(&Action{Type: ActionHold}),
		},
	}

	ctx := NewEvalContext().Set(FieldBalance, 100)
	action, err := Evaluate(tree, ctx, TreePayment)
	assert.NoError(t, err)
	assert.Equal(t, ActionReleaseV, action.Type)

	ctx2 := NewEvalContext().Set(FieldBalance, -5)
	action2, err := Evaluate(tree, ctx2, TreePayment)
	assert.NoError(t, err)
	assert.Equal(t, ActionHold, action2.Type)
}

func TestDivideByZeroFallsBackToSafeDefault(t *testing.T) {
	tree := &Tree{
		Condition: &Condition{
			Bool: BoolExpr{Cmp: &Comparison{
				Op:   CmpGt,
				Left: FieldValue(FieldBalance),
				Right: Value{Compute: &Compute{
					Op:   ComputeDiv,
					Args: []Value{LiteralValue(10), LiteralValue(0)},
				}},
			}},
			OnTrue:  releaseTree(),
			OnFalse: leafAction(&Action{Type: ActionDrop}),
		},
	}

	ctx := NewEvalContext().Set(FieldBalance, 50)
	action, err := Evaluate(tree, ctx, TreePayment)
	assert.Error(t, err)
	assert.Equal(t, ActionReleaseV, action.Type)
	assert.Equal(t, "safe_default_arithmetic_failure", action.Reason)
}

func TestSafeDivNeverFails(t *testing.T) {
	v := Value{Compute: &Compute{
		Op:   ComputeSafeDiv,
		Args: []Value{LiteralValue(10), LiteralValue(0), LiteralValue(-1)},
	}}
	ctx := NewEvalContext()
	result, err := evalValue(v, ctx)
	assert.NoError(t, err)
	assert.Equal(t, -1.0, result)
}

func TestClampBoundsValue(t *testing.T) {
	v := Value{Compute: &Compute{
		Op:   ComputeClamp,
		Args: []Value{LiteralValue(150), LiteralValue(0), LiteralValue(100)},
	}}
	result, err := evalValue(v, NewEvalContext())
	assert.NoError(t, err)
	assert.Equal(t, 100.0, result)
}

func TestBoolFalseIffZero(t *testing.T) {
	ctx := NewEvalContext().SetBool(FieldTxIsSplit, false)
	v, ok := ctx.get(FieldTxIsSplit)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	ctx.SetBool(FieldTxIsSplit, true)
	v, _ = ctx.get(FieldTxIsSplit)
	assert.Equal(t, 1.0, v)
}

func TestResolveNumSplitsClampsToMaxPacingFactor(t *testing.T) {
	params := &SplitParams{NumSplits: LiteralValue(25)}
	n, err := ResolveNumSplits(params, NewEvalContext(), 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	paramsLow := &SplitParams{NumSplits: LiteralValue(0)}
	n2, err := ResolveNumSplits(paramsLow, NewEvalContext(), 5)
	assert.NoError(t, err)
	assert.Equal(t, 1, n2)
}

func TestValidateRejectsFieldOutsideTreeKind(t *testing.T) {
	tree := &Tree{
		Condition: &Condition{
			Bool: BoolExpr{Cmp: &Comparison{
				Op:    CmpGt,
				Left:  FieldValue(FieldTxAmount), // payment-only field
				Right: LiteralValue(0),
			}},
			OnTrue:  leafAction(&Action{Type: ActionPostCollateral, PostCollateral: &CollateralAmountParams{Amount: LiteralValue(1)}}),
			OnFalse: leafAction(&Action{Type: ActionHoldCollateral}),
		},
	}
	_, err := NewPolicy(TreeStrategicCollateral, tree, nil)
	assert.Error(t, err)
}

func TestValidateRejectsActionIllegalForTreeKind(t *testing.T) {
	tree := leafAction(&Action{Type: ActionSplit, Split: &SplitParams{NumSplits: LiteralValue(2)}})
	_, err := NewPolicy(TreeBank, tree, nil)
	assert.Error(t, err)
}

func TestValidateRejectsUndeclaredParam(t *testing.T) {
	tree := &Tree{
		Condition: &Condition{
			Bool: BoolExpr{Cmp: &Comparison{
				Op:    CmpGt,
				Left:  FieldValue(FieldBalance),
				Right: ParamValue("threshold"),
			}},
			OnTrue:  releaseTree(),
			OnFalse: leafAction(&Action{Type: ActionHold}),
		},
	}
	_, err := NewPolicy(TreePayment, tree, map[string]float64{})
	assert.Error(t, err)

	_, err2 := NewPolicy(TreePayment, tree, map[string]float64{"threshold": 100})
	assert.NoError(t, err2)
}

func TestValidateRejectsCycle(t *testing.T) {
	a := &Tree{}
	b := &Tree{}
	a.Condition = &Condition{Bool: BoolExpr{Cmp: &Comparison{Op: CmpGt, Left: FieldValue(FieldBalance), Right: LiteralValue(0)}}, OnTrue: b, OnFalse: releaseTree()}
	b.Condition = &Condition{Bool: BoolExpr{Cmp: &Comparison{Op: CmpGt, Left: FieldValue(FieldBalance), Right: LiteralValue(0)}}, OnTrue: a, OnFalse: releaseTree()}

	_, err := NewPolicy(TreePayment, a, nil)
	assert.Error(t, err)
}

func TestValidateRejectsSetStateKeyOutOfRange(t *testing.T) {
	tree := leafAction(&Action{Type: ActionSetState, SetState: &SetStateParams{Key: 12, Value: LiteralValue(1)}})
	_, err := NewPolicy(TreeBank, tree, nil)
	assert.Error(t, err)
}
