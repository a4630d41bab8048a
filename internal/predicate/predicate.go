// Package predicate holds the scan-filter collaborator consumed by
// internal/recordmgr. The record manager never hard-codes an expression
// language; it calls an Evaluator interface, exactly as spec.md §4.4.6
// and §9 ("predicate evaluator should be a trait/interface parameter to
// scans") specify. This package also offers small composable
// constructors so callers (the CLI, tests) don't have to hand-roll a
// closure for every comparison — it is not a query-expression language.
package predicate

import (
	"fmt"

	"github.com/haldor-db/recordstore/internal/schema"
)

// Evaluator is the external collaborator a scan consults per candidate
// record. Eval returns a boolean-typed Value; Scan.Next reads its Bool
// field and discards the rest.
type Evaluator interface {
	Eval(rec *schema.Record, sch schema.Schema) (schema.Value, error)
}

// Condition wraps an Evaluator. A nil Condition (or one wrapping a nil
// Evaluator) means "no predicate", matching spec.md §4.4.6's cond == null.
type Condition struct {
	eval Evaluator
}

// None is the zero Condition: every record passes.
var None = Condition{}

// NewCondition wraps an arbitrary Evaluator.
func NewCondition(e Evaluator) Condition {
	return Condition{eval: e}
}

// Eval returns true when there is no wrapped evaluator, or delegates to it.
func (c Condition) Eval(rec *schema.Record, sch schema.Schema) (bool, error) {
	if c.eval == nil {
		return true, nil
	}
	v, err := c.eval.Eval(rec, sch)
	if err != nil {
		return false, err
	}
	if v.Type != schema.TypeBool {
		return false, fmt.Errorf("predicate: evaluator returned non-bool value of type %s", v.Type)
	}
	return v.Bool, nil
}

// Op is a comparison operator usable with Compare.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// compareEvaluator implements Evaluator for a single "attr OP literal" test.
type compareEvaluator struct {
	attrIdx int
	op      Op
	literal schema.Value
}

// Compare builds an Evaluator testing the attribute at attrIdx against a
// literal value using op.
func Compare(attrIdx int, op Op, literal schema.Value) Evaluator {
	return compareEvaluator{attrIdx: attrIdx, op: op, literal: literal}
}

func (c compareEvaluator) Eval(rec *schema.Record, sch schema.Schema) (schema.Value, error) {
	v, err := sch.GetAttr(rec.Data, c.attrIdx)
	if err != nil {
		return schema.Value{}, err
	}
	if v.Type != c.literal.Type {
		return schema.Value{}, fmt.Errorf("predicate: compare type mismatch: attribute is %s, literal is %s", v.Type, c.literal.Type)
	}

	var result bool
	switch v.Type {
	case schema.TypeInt:
		result = compareOrdered(v.Int, c.literal.Int, c.op)
	case schema.TypeFloat:
		result = compareOrdered(v.Float, c.literal.Float, c.op)
	case schema.TypeString:
		result = compareOrdered(v.String, c.literal.String, c.op)
	case schema.TypeBool:
		switch c.op {
		case OpEq:
			result = v.Bool == c.literal.Bool
		case OpNe:
			result = v.Bool != c.literal.Bool
		default:
			return schema.Value{}, fmt.Errorf("predicate: operator %d not valid for BOOL", c.op)
		}
	}
	return schema.BoolValue(result), nil
}

type ordered interface {
	~int32 | ~float32 | ~string
}

func compareOrdered[T ordered](a, b T, op Op) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	default:
		return false
	}
}

// andEvaluator / orEvaluator / notEvaluator compose other evaluators.
type andEvaluator struct{ left, right Evaluator }
type orEvaluator struct{ left, right Evaluator }
type notEvaluator struct{ inner Evaluator }

// And builds an Evaluator that is true iff both operands are true.
func And(left, right Evaluator) Evaluator { return andEvaluator{left, right} }

// Or builds an Evaluator that is true iff either operand is true.
func Or(left, right Evaluator) Evaluator { return orEvaluator{left, right} }

// Not negates the wrapped evaluator's boolean result.
func Not(inner Evaluator) Evaluator { return notEvaluator{inner} }

func (e andEvaluator) Eval(rec *schema.Record, sch schema.Schema) (schema.Value, error) {
	lv, err := e.left.Eval(rec, sch)
	if err != nil {
		return schema.Value{}, err
	}
	if !lv.Bool {
		return schema.BoolValue(false), nil
	}
	rv, err := e.right.Eval(rec, sch)
	if err != nil {
		return schema.Value{}, err
	}
	return schema.BoolValue(rv.Bool), nil
}

func (e orEvaluator) Eval(rec *schema.Record, sch schema.Schema) (schema.Value, error) {
	lv, err := e.left.Eval(rec, sch)
	if err != nil {
		return schema.Value{}, err
	}
	if lv.Bool {
		return schema.BoolValue(true), nil
	}
	rv, err := e.right.Eval(rec, sch)
	if err != nil {
		return schema.Value{}, err
	}
	return schema.BoolValue(rv.Bool), nil
}

func (e notEvaluator) Eval(rec *schema.Record, sch schema.Schema) (schema.Value, error) {
	v, err := e.inner.Eval(rec, sch)
	if err != nil {
		return schema.Value{}, err
	}
	return schema.BoolValue(!v.Bool), nil
}
