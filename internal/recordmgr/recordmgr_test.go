package recordmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haldor-db/recordstore/internal/predicate"
	"github.com/haldor-db/recordstore/internal/schema"
)

func tempTableName(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "employees.tbl")
}

func twoIntSchema() schema.Schema {
	return schema.New([]schema.Attribute{
		{Name: "a", Type: schema.TypeInt},
		{Name: "b", Type: schema.TypeInt},
	}, []int{0})
}

func TestCreateOpenCloseTable(t *testing.T) {
	name := tempTableName(t)
	s := twoIntSchema()

	require.NoError(t, CreateTable(name, s))

	tbl, err := OpenTable(name)
	require.NoError(t, err)
	require.Equal(t, int64(0), tbl.GetNumTuples())
	require.Equal(t, s.Width(), tbl.Schema().Width())
	require.Equal(t, []int{0}, tbl.Schema().KeyAttrs)

	require.NoError(t, tbl.CloseTable())
	require.NoError(t, DeleteTable(name))
	_, err = os.Stat(name)
	require.True(t, os.IsNotExist(err))
}

func TestInsertGetRoundTrip(t *testing.T) {
	name := tempTableName(t)
	s := schema.New([]schema.Attribute{{Name: "a", Type: schema.TypeInt}}, nil)
	require.NoError(t, CreateTable(name, s))

	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rec := schema.NewRecord(s)
	require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(42)))
	require.NoError(t, tbl.InsertRecord(rec))
	require.Equal(t, int64(1), tbl.GetNumTuples())

	got, err := tbl.GetRecord(rec.RID)
	require.NoError(t, err)
	v, err := got.GetAttr(s, 0)
	require.NoError(t, err)
	require.Equal(t, int32(42), v.Int)
}

func TestGetRecord_OutOfRangeSlotFailsPrecondition(t *testing.T) {
	name := tempTableName(t)
	s := twoIntSchema()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rec := schema.NewRecord(s)
	require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(1)))
	require.NoError(t, rec.SetAttr(s, 1, schema.IntValue(2)))
	require.NoError(t, tbl.InsertRecord(rec))

	tooFar := schema.RID{Page: rec.RID.Page, Slot: 1 << 20}
	_, err = tbl.GetRecord(tooFar)
	require.ErrorIs(t, err, ErrPrecondition)

	negative := schema.RID{Page: rec.RID.Page, Slot: -1}
	_, err = tbl.GetRecord(negative)
	require.ErrorIs(t, err, ErrPrecondition)

	err = tbl.UpdateRecord(tooFar, rec)
	require.ErrorIs(t, err, ErrPrecondition)

	err = tbl.DeleteRecord(tooFar)
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestDeleteThenGetYieldsSlotEmpty(t *testing.T) {
	name := tempTableName(t)
	s := twoIntSchema()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rec := schema.NewRecord(s)
	require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(1)))
	require.NoError(t, rec.SetAttr(s, 1, schema.IntValue(2)))
	require.NoError(t, tbl.InsertRecord(rec))

	require.NoError(t, tbl.DeleteRecord(rec.RID))
	require.Equal(t, int64(0), tbl.GetNumTuples())

	_, err = tbl.GetRecord(rec.RID)
	require.ErrorIs(t, err, ErrSlotEmpty)
}

func TestDeleteOnFreeSlotIsNoop(t *testing.T) {
	name := tempTableName(t)
	s := twoIntSchema()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rec := schema.NewRecord(s)
	require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(1)))
	require.NoError(t, rec.SetAttr(s, 1, schema.IntValue(2)))
	require.NoError(t, tbl.InsertRecord(rec))
	require.NoError(t, tbl.DeleteRecord(rec.RID))

	// Deleting again must be a silent success, not an error.
	require.NoError(t, tbl.DeleteRecord(rec.RID))
}

func TestUpdateRecordVisibility(t *testing.T) {
	name := tempTableName(t)
	s := schema.New([]schema.Attribute{{Name: "salary", Type: schema.TypeFloat}}, nil)
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rec := schema.NewRecord(s)
	require.NoError(t, rec.SetAttr(s, 0, schema.FloatValue(500.0)))
	require.NoError(t, tbl.InsertRecord(rec))

	updated := schema.NewRecord(s)
	require.NoError(t, updated.SetAttr(s, 0, schema.FloatValue(600.0)))
	require.NoError(t, tbl.UpdateRecord(rec.RID, updated))

	got, err := tbl.GetRecord(rec.RID)
	require.NoError(t, err)
	v, err := got.GetAttr(s, 0)
	require.NoError(t, err)
	require.InDelta(t, 600.0, v.Float, 0.0001)
	require.Equal(t, int64(1), tbl.GetNumTuples())
}

func TestUpdateOnFreeSlotFails(t *testing.T) {
	name := tempTableName(t)
	s := twoIntSchema()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rec := schema.NewRecord(s)
	require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(1)))
	require.NoError(t, rec.SetAttr(s, 1, schema.IntValue(2)))
	require.NoError(t, tbl.InsertRecord(rec))
	require.NoError(t, tbl.DeleteRecord(rec.RID))

	err = tbl.UpdateRecord(rec.RID, rec)
	require.ErrorIs(t, err, ErrSlotEmpty)
}

func TestScanNullPredicateYieldsAllInOrder(t *testing.T) {
	name := tempTableName(t)
	s := twoIntSchema()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	const n = 20
	var rids []schema.RID
	for i := 0; i < n; i++ {
		rec := schema.NewRecord(s)
		require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(int32(i))))
		require.NoError(t, rec.SetAttr(s, 1, schema.IntValue(int32(i*2))))
		require.NoError(t, tbl.InsertRecord(rec))
		rids = append(rids, rec.RID)
	}

	scan := tbl.StartScan(predicate.None)
	defer scan.CloseScan()

	var seen []int32
	for {
		rec, err := scan.Next()
		if err == ErrScanExhausted {
			break
		}
		require.NoError(t, err)
		v, err := rec.GetAttr(s, 0)
		require.NoError(t, err)
		seen = append(seen, v.Int)
	}
	require.Len(t, seen, n)
	for i, v := range seen {
		require.Equal(t, int32(i), v)
	}
}

func TestScanAfterDeleteSkipsTombstones(t *testing.T) {
	name := tempTableName(t)
	s := twoIntSchema()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	var rids []schema.RID
	for i := 0; i < 20; i++ {
		rec := schema.NewRecord(s)
		require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(int32(i))))
		require.NoError(t, rec.SetAttr(s, 1, schema.IntValue(int32(i))))
		require.NoError(t, tbl.InsertRecord(rec))
		rids = append(rids, rec.RID)
	}

	for i := 0; i < 10; i++ {
		require.NoError(t, tbl.DeleteRecord(rids[i]))
	}

	scan := tbl.StartScan(predicate.None)
	defer scan.CloseScan()

	count := 0
	for {
		_, err := scan.Next()
		if err == ErrScanExhausted {
			break
		}
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 10, count)

	for i := 0; i < 10; i++ {
		_, err := tbl.GetRecord(rids[i])
		require.ErrorIs(t, err, ErrSlotEmpty)
	}
}

func TestScanWithPredicate(t *testing.T) {
	name := tempTableName(t)
	s := schema.New([]schema.Attribute{
		{Name: "id", Type: schema.TypeInt},
		{Name: "name", Type: schema.TypeString, Length: 10},
		{Name: "salary", Type: schema.TypeFloat},
	}, nil)
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	salaries := make([]float32, 20)
	for i := range salaries {
		salaries[i] = 300.0 + float32(i)*35
	}
	for i, sal := range salaries {
		rec := schema.NewRecord(s)
		require.NoError(t, rec.SetAttr(s, 0, schema.IntValue(int32(i))))
		require.NoError(t, rec.SetAttr(s, 1, schema.StringValue("n")))
		require.NoError(t, rec.SetAttr(s, 2, schema.FloatValue(sal)))
		require.NoError(t, tbl.InsertRecord(rec))
	}

	cond := predicate.NewCondition(predicate.Not(predicate.Compare(2, predicate.OpLt, schema.FloatValue(800.0))))
	scan := tbl.StartScan(cond)
	defer scan.CloseScan()

	var got int
	expected := 0
	for _, sal := range salaries {
		if sal >= 800.0 {
			expected++
		}
	}
	for {
		rec, err := scan.Next()
		if err == ErrScanExhausted {
			break
		}
		require.NoError(t, err)
		v, err := rec.GetAttr(s, 2)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v.Float, float32(800.0))
		got++
	}
	require.Equal(t, expected, got)
}
