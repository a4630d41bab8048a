package predicate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haldor-db/recordstore/internal/schema"
)

func salarySchema() schema.Schema {
	return schema.New([]schema.Attribute{
		{Name: "id", Type: schema.TypeInt},
		{Name: "name", Type: schema.TypeString, Length: 10},
		{Name: "salary", Type: schema.TypeFloat},
	}, nil)
}

func recordWithSalary(t *testing.T, s schema.Schema, salary float32) *schema.Record {
	t.Helper()
	rec := schema.NewRecord(s)
	require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(1)))
	require.NoError(t, rec.SetAttr(s, 1, schema.StringValue("x")))
	require.NoError(t, rec.SetAttr(s, 2, schema.FloatValue(salary)))
	return rec
}

func TestNoneCondition_AlwaysTrue(t *testing.T) {
	s := salarySchema()
	rec := recordWithSalary(t, s, 500)
	ok, err := None.Eval(rec, s)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompare_GreaterEqual(t *testing.T) {
	s := salarySchema()
	cond := NewCondition(Compare(2, OpGe, schema.FloatValue(800.0)))

	low := recordWithSalary(t, s, 500)
	high := recordWithSalary(t, s, 900)

	okLow, err := cond.Eval(low, s)
	require.NoError(t, err)
	require.False(t, okLow)

	okHigh, err := cond.Eval(high, s)
	require.NoError(t, err)
	require.True(t, okHigh)
}

func TestNot_InvertsComparison(t *testing.T) {
	s := salarySchema()
	cond := NewCondition(Not(Compare(2, OpLt, schema.FloatValue(800.0))))

	high := recordWithSalary(t, s, 900)
	ok, err := cond.Eval(high, s)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAndOr(t *testing.T) {
	s := salarySchema()
	rec := recordWithSalary(t, s, 500)

	andCond := NewCondition(And(
		Compare(2, OpGe, schema.FloatValue(300.0)),
		Compare(2, OpLe, schema.FloatValue(600.0)),
	))
	ok, err := andCond.Eval(rec, s)
	require.NoError(t, err)
	require.True(t, ok)

	orCond := NewCondition(Or(
		Compare(2, OpLt, schema.FloatValue(100.0)),
		Compare(2, OpGt, schema.FloatValue(400.0)),
	))
	ok, err = orCond.Eval(rec, s)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompare_TypeMismatch(t *testing.T) {
	s := salarySchema()
	rec := recordWithSalary(t, s, 500)
	cond := NewCondition(Compare(2, OpEq, schema.IntValue(5)))
	_, err := cond.Eval(rec, s)
	require.Error(t, err)
}
