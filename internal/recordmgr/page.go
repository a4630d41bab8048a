package recordmgr

import "github.com/haldor-db/recordstore/internal/bx"

// slotDirectoryWidth returns M, the number of slots a data page can hold
// for a record width of recordWidth bytes: M = floor((pageSize-4)/(R+1))
// per spec.md §3.
func slotDirectoryWidth(pageSize, recordWidth int) int {
	return (pageSize - 4) / (recordWidth + 1)
}

// dataPage is a thin view over one data page's raw bytes, structured as
// spec.md §3 describes: a 4-byte slots_used header, an M-byte slot
// directory (0/1 per slot), and M slot payloads of width recordWidth.
type dataPage struct {
	buf         []byte
	numSlots    int
	recordWidth int
}

func newDataPageView(buf []byte, recordWidth int) dataPage {
	return dataPage{
		buf:         buf,
		numSlots:    slotDirectoryWidth(len(buf), recordWidth),
		recordWidth: recordWidth,
	}
}

func (p dataPage) slotsUsed() int32 {
	return bx.I32(p.buf[0:4])
}

func (p dataPage) setSlotsUsed(n int32) {
	bx.PutI32(p.buf[0:4], n)
}

func (p dataPage) directoryByte(slot int) byte {
	return p.buf[4+slot]
}

func (p dataPage) setDirectoryByte(slot int, used bool) {
	if used {
		p.buf[4+slot] = 1
	} else {
		p.buf[4+slot] = 0
	}
}

// isUsed reports whether slot's directory byte is set. An out-of-range
// slot is treated as unused rather than panicking, so callers can rely on
// a bounds check happening once, at the RID validation site.
func (p dataPage) isUsed(slot int) bool {
	if slot < 0 || slot >= p.numSlots {
		return false
	}
	return p.directoryByte(slot) != 0
}

func (p dataPage) payloadOffset(slot int) int {
	return 4 + p.numSlots + slot*p.recordWidth
}

func (p dataPage) payload(slot int) []byte {
	off := p.payloadOffset(slot)
	return p.buf[off : off+p.recordWidth]
}

// firstFreeSlot returns the index of the first slot whose directory byte
// is 0, or -1 if the page is full.
func (p dataPage) firstFreeSlot() int {
	for i := 0; i < p.numSlots; i++ {
		if !p.isUsed(i) {
			return i
		}
	}
	return -1
}

// initEmpty zero-fills slots_used and the slot directory of a freshly
// allocated data page.
func (p dataPage) initEmpty() {
	p.setSlotsUsed(0)
	for i := 0; i < p.numSlots; i++ {
		p.setDirectoryByte(i, false)
	}
}
