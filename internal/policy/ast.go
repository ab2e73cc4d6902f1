package policy

// Tree is the root of a decision tree for one of the four tree families
// (payment, strategic collateral, end-of-tick collateral, bank). A Tree
// node is either an interior Condition node or a leaf Action node.
type Tree struct {
	Condition *Condition
	Action    *Action
}

func leafAction(a *Action) *Tree { return &Tree{Action: a} }

// Condition is an interior node: a boolean expression plus the two
// subtrees to descend into depending on its evaluated value.
type Condition struct {
	Bool    BoolExpr
	OnTrue  *Tree
	OnFalse *Tree
}

// BoolExpr is the boolean sub-language: comparisons and logical connectives
// over Values.
type BoolExpr struct {
	Cmp *Comparison
	And []BoolExpr
	Or  []BoolExpr
	Not *BoolExpr
}

// CmpOp is a comparison operator.
type CmpOp string

const (
	CmpEq  CmpOp = "=="
	CmpNeq CmpOp = "!="
	CmpLt  CmpOp = "<"
	CmpLte CmpOp = "<="
	CmpGt  CmpOp = ">"
	CmpGte CmpOp = ">="
)

// Comparison compares two Values.
type Comparison struct {
	Op    CmpOp
	Left  Value
	Right Value
}

// Value is the expression sub-language producing a float64 at eval time.
// Exactly one of the fields is set.
type Value struct {
	Field   *Field
	Param   *string
	Literal *float64
	Compute *Compute
}

func FieldValue(f Field) Value     { return Value{Field: &f} }
func ParamValue(name string) Value { return Value{Param: &name} }
func LiteralValue(v float64) Value { return Value{Literal: &v} }

// ComputeOp identifies which arithmetic operation a Compute node performs.
type ComputeOp string

const (
	ComputeAdd     ComputeOp = "add"
	ComputeSub     ComputeOp = "sub"
	ComputeMul     ComputeOp = "mul"
	ComputeDiv     ComputeOp = "div"
	ComputeMin     ComputeOp = "min"
	ComputeMax     ComputeOp = "max"
	ComputeCeil    ComputeOp = "ceil"
	ComputeFloor   ComputeOp = "floor"
	ComputeRound   ComputeOp = "round"
	ComputeAbs     ComputeOp = "abs"
	ComputeClamp   ComputeOp = "clamp"
	ComputeSafeDiv ComputeOp = "safe_div"
)

// Compute is the arithmetic sub-language. Op selects which of the operand
// fields is meaningful:
//
//	add, sub, mul, div: Args[0], Args[1]      (binary)
//	min, max:           Args (n-ary, len>=1)
//	ceil, floor, round, abs: Args[0]          (unary)
//	clamp: Args[0]=value, Args[1]=min, Args[2]=max
//	safe_div: Args[0]=numerator, Args[1]=denominator, Args[2]=default
type Compute struct {
	Op   ComputeOp
	Args []Value
}

// Action is a leaf node: the effect to apply once decision-tree descent
// terminates. Exactly one of the typed payload fields is set, and it must
// match the Type / tree kind the Action is legal in.
type Action struct {
	Type ActionType

	// payment_tree
	Split *SplitParams

	// strategic_collateral_tree, end_of_tick_collateral_tree
	PostCollateral     *CollateralAmountParams
	WithdrawCollateral *CollateralAmountParams

	// bank_tree
	SetState *SetStateParams
	AddState *AddStateParams

	// common, optional free-text carried into the diagnostic event stream
	Reason string
}

// ActionType enumerates every leaf action across all four tree kinds. Which
// ActionType values are legal in which TreeKind is enforced at validation
// time (see validator.go).
type ActionType string

const (
	ActionReleaseV           ActionType = "release"
	ActionHold               ActionType = "hold"
	ActionDrop               ActionType = "drop"
	ActionSplit              ActionType = "split"
	ActionPostCollateral     ActionType = "post_collateral"
	ActionWithdrawCollateral ActionType = "withdraw_collateral"
	ActionHoldCollateral     ActionType = "hold_collateral"
	ActionSetState           ActionType = "set_state"
	ActionAddState           ActionType = "add_state"
	ActionNoAction           ActionType = "no_action"
)

// SplitParams carries the split count for a Split action. NumSplits is a
// Value so the tree can compute it (e.g. from queue pressure) rather than
// only ever using a literal.
type SplitParams struct {
	NumSplits Value
}

// CollateralAmountParams carries the amount Value for PostCollateral /
// WithdrawCollateral actions.
type CollateralAmountParams struct {
	Amount Value
}

// SetStateParams sets a named bank state register to a computed value.
type SetStateParams struct {
	Key   int // index into the 0..9 state register set
	Value Value
}

// AddStateParams adds a computed delta to a named bank state register.
type AddStateParams struct {
	Key   int
	Delta Value
}

// legalActionsByTree enumerates which ActionType values a tree of each kind
// may use in its leaves.
var legalActionsByTree = map[TreeKind]map[ActionType]bool{
	TreePayment: {
		ActionReleaseV: true,
		ActionHold:     true,
		ActionDrop:     true,
		ActionSplit:    true,
	},
	TreeStrategicCollateral: {
		ActionPostCollateral:     true,
		ActionWithdrawCollateral: true,
		ActionHoldCollateral:     true,
	},
	TreeEndOfTickCollateral: {
		ActionPostCollateral:     true,
		ActionWithdrawCollateral: true,
		ActionHoldCollateral:     true,
	},
	TreeBank: {
		ActionSetState: true,
		ActionAddState: true,
		ActionNoAction: true,
	},
}

// LegalInTree reports whether ActionType a may terminate a tree of kind k.
func LegalInTree(a ActionType, k TreeKind) bool {
	return legalActionsByTree[k][a]
}

// SafeDefaultAction returns the action a tree of kind k must fall back to
// when evaluation hits a recoverable arithmetic failure (e.g. a division
// whose SafeDiv default also can't be computed, which should not happen,
// or a malformed literal). Payment trees default to releasing the
// transaction rather than silently stranding it; collateral trees default
// to holding collateral steady; the bank tree defaults to doing nothing.
func SafeDefaultAction(k TreeKind) *Action {
	switch k {
	case TreePayment:
		return &Action{Type: ActionReleaseV, Reason: "safe_default_arithmetic_failure"}
	case TreeStrategicCollateral, TreeEndOfTickCollateral:
		return &Action{Type: ActionHoldCollateral, Reason: "safe_default_arithmetic_failure"}
	case TreeBank:
		return &Action{Type: ActionNoAction, Reason: "safe_default_arithmetic_failure"}
	default:
		return &Action{Type: ActionNoAction, Reason: "safe_default_arithmetic_failure"}
	}
}
