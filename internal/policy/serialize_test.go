package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePaymentPolicy(t *testing.T) *Policy {
	t.Helper()
	tree := &Tree{
		Condition: &Condition{
			Bool: BoolExpr{Cmp: &Comparison{
				Op:   CmpGte,
				Left: FieldValue(FieldEffectiveLiquidity),
				Right: Value{Compute: &Compute{
					Op:   ComputeMul,
					Args: []Value{FieldValue(FieldTxAmount), ParamValue("safety_factor")},
				}},
			}},
			OnTrue: leafAction(&Action{Type: ActionReleaseV}),
			OnFalse: leafAction(&Action{
				Type:  ActionSplit,
				Split: &SplitParams{NumSplits: LiteralValue(3)},
			}),
		},
	}
	p, err := NewPolicy(TreePayment, tree, map[string]float64{"safety_factor": 1.1})
	require.NoError(t, err)
	return p
}

func TestPolicyJSONRoundTripIsIdentityOnCanonicalForm(t *testing.T) {
	p := samplePaymentPolicy(t)

	first, err := p.ToJSON()
	require.NoError(t, err)

	reparsed, err := PolicyFromJSON(first)
	require.NoError(t, err)

	second, err := reparsed.ToJSON()
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestPolicyFromJSONRejectsUnknownField(t *testing.T) {
	doc := `{"kind":"payment","root":{"action":{"type":"release"}},"params":{}}`
	p, err := PolicyFromJSON([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, ActionReleaseV, p.Root.Action.Type)

	badDoc := `{"kind":"payment","root":{"condition":{"bool":{"cmp":{"op":"==","left":{"field":"not_a_real_field"},"right":{"literal":0}}},"on_true":{"action":{"type":"release"}},"on_false":{"action":{"type":"hold"}}}}}`
	_, err = PolicyFromJSON([]byte(badDoc))
	assert.Error(t, err)
}

func TestPolicyFromJSONRejectsActionIllegalForKind(t *testing.T) {
	doc := `{"kind":"payment","root":{"action":{"type":"post_collateral","post_collateral":{"amount":{"literal":100}}}}}`
	_, err := PolicyFromJSON([]byte(doc))
	assert.Error(t, err)
}
