package recordmgr

import (
	"github.com/haldor-db/recordstore/internal/predicate"
	"github.com/haldor-db/recordstore/internal/schema"
)

// Scan drives a sequential page-then-slot walk over a table's data
// pages, filtering through an optional predicate.Condition (spec.md
// §4.4.6). A zero-value Condition (predicate.None) matches every record.
type Scan struct {
	table *Table
	cond  predicate.Condition
	page  int64
	slot  int
	done  bool
}

// StartScan initializes scan state at (page=1, slot=0) with cond applied
// to every candidate record.
func (t *Table) StartScan(cond predicate.Condition) *Scan {
	return &Scan{table: t, cond: cond, page: 1, slot: 0}
}

// Next returns the next matching record, or ErrScanExhausted once every
// data page has been visited.
func (s *Scan) Next() (*schema.Record, error) {
	if s.done {
		return nil, ErrScanExhausted
	}

	t := s.table
	width := t.recordWidth()

	for {
		if s.page < 1 || s.page >= t.file.TotalPages() {
			s.done = true
			return nil, ErrScanExhausted
		}

		h, err := t.pool.PinPage(s.page)
		if err != nil {
			return nil, err
		}
		dp := newDataPageView(h.Data(), width)

		for s.slot < dp.numSlots {
			slot := s.slot
			if !dp.isUsed(slot) {
				s.slot++
				continue
			}

			rec := schema.NewRecord(t.meta.schema)
			copy(rec.Data, dp.payload(slot))
			rec.RID = schema.RID{Page: s.page, Slot: int32(slot)}

			matches, err := s.cond.Eval(rec, t.meta.schema)
			if err != nil {
				_ = t.pool.UnpinPage(h)
				return nil, err
			}
			s.slot++
			if matches {
				if err := t.pool.UnpinPage(h); err != nil {
					return nil, err
				}
				return rec, nil
			}
		}

		if err := t.pool.UnpinPage(h); err != nil {
			return nil, err
		}
		s.slot = 0
		s.page++
	}
}

// CloseScan releases the scan's state. There is nothing to free beyond
// the Go garbage collector's ordinary reclamation, but the method exists
// to mirror spec.md §4.4.6's explicit lifecycle call.
func (s *Scan) CloseScan() {
	s.done = true
}
