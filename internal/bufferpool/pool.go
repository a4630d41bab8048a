// Package bufferpool implements a fixed-size page buffer pool bound to one
// on-disk page file. Every table the record manager opens owns exactly one
// Pool; pools are never shared across page files (see spec.md's resource
// model — callers must not open the same page file through two pools).
package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haldor-db/recordstore/internal/pagefile"
)

var (
	logDebugPrefix = "bufferpool: "

	// ErrNoFreeFrame is returned by PinPage when every frame is pinned. The
	// teacher's CLOCK pool never had this failure mode reachable in the
	// same way; spec.md flags the "evict frame 0 regardless of pin count"
	// fallback as a latent bug the reimplementation must not repeat. This
	// pool fails loudly instead.
	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all frames pinned)")

	// ErrInvalidPage is returned for a negative page number.
	ErrInvalidPage = errors.New("bufferpool: invalid page number")

	// ErrPoolShutdownPinned is returned by Shutdown when a frame is still pinned.
	ErrPoolShutdownPinned = errors.New("bufferpool: shutdown attempted with a pinned frame")

	// ErrStrategyNotImplemented is returned by NewPool for any strategy
	// other than the least-usage policy, which is the only victim-selection
	// algorithm this pool actually implements (spec.md §4.2.1).
	ErrStrategyNotImplemented = errors.New("bufferpool: replacement strategy not implemented")
)

// Strategy names the replacement policy recorded at init time. Only
// StrategyLRU (the least-usage algorithm of spec.md §4.2.1) has a working
// victim-selection function; the others are enumerable configuration only,
// preserved so a future pool can plug them in without renaming the type.
type Strategy int

const (
	StrategyFIFO Strategy = iota
	StrategyLRU
	StrategyClock
	StrategyLRUK
)

// ParseStrategy maps a config string ("fifo"|"lru"|"clock"|"lruk",
// case-insensitive) to a Strategy. It accepts all four names even though
// NewPool only actually implements StrategyLRU, so a config file naming
// an unimplemented strategy fails at NewPool with ErrStrategyNotImplemented
// rather than at parse time.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo":
		return StrategyFIFO, nil
	case "lru":
		return StrategyLRU, nil
	case "clock":
		return StrategyClock, nil
	case "lruk", "lru_k", "lru-k":
		return StrategyLRUK, nil
	default:
		return 0, fmt.Errorf("bufferpool: unknown strategy %q", name)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyFIFO:
		return "FIFO"
	case StrategyLRU:
		return "LRU"
	case StrategyClock:
		return "CLOCK"
	case StrategyLRUK:
		return "LRU_K"
	default:
		return "UNKNOWN"
	}
}

// Frame is an in-memory slot holding at most one page plus its metadata.
// usage replaces the teacher's CLOCK Ref bit: it is a logical timestamp
// bumped on every pin, and the victim is the resident frame with the
// smallest usage among those with fixCount == 0.
type Frame struct {
	data     []byte
	pageNum  int64
	dirty    bool
	fixCount int
	usage    uint64
}

// Handle is a borrowed, mutable view onto a pinned frame's bytes. It is
// valid only until the matching UnpinPage call — the pool owns the buffer
// exclusively and never copies it out.
type Handle struct {
	pool    *Pool
	pageNum int64
}

// Data returns the frame's live byte buffer. Mutations are visible to the
// pool immediately; call MarkDirty afterwards so the pool knows to write
// the page back.
func (h *Handle) Data() []byte {
	idx, ok := h.pool.index[h.pageNum]
	if !ok {
		return nil
	}
	return h.pool.frames[idx].data
}

// PageNum returns the page number this handle refers to.
func (h *Handle) PageNum() int64 { return h.pageNum }

// Pool owns a fixed array of frames bound to one page file. Unlike the
// teacher's Pool, there is no mutex here: spec.md's resource model is
// explicitly single-threaded/cooperative, so the pool is not safe for
// concurrent use from multiple goroutines.
type Pool struct {
	file     *pagefile.PageFile
	frames   []*Frame
	index    map[int64]int // pageNum -> frame index
	strategy Strategy
	clock    uint64 // monotonic counter driving Frame.usage

	readIO  uint64
	writeIO uint64
}

// NewPool allocates numFrames frames bound to file. strategy is recorded
// for observability; only StrategyLRU has a victim-selection function, so
// any other value fails fast rather than silently behaving like LRU.
func NewPool(file *pagefile.PageFile, numFrames int, strategy Strategy) (*Pool, error) {
	if file == nil {
		return nil, fmt.Errorf("bufferpool: init: page file must not be nil")
	}
	if numFrames <= 0 {
		return nil, fmt.Errorf("bufferpool: init: numFrames must be positive, got %d", numFrames)
	}
	if strategy != StrategyLRU {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotImplemented, strategy)
	}

	frames := make([]*Frame, numFrames)
	for i := range frames {
		frames[i] = &Frame{pageNum: pagefile.NoPage}
	}

	p := &Pool{
		file:     file,
		frames:   frames,
		index:    make(map[int64]int, numFrames),
		strategy: strategy,
	}
	slog.Debug(logDebugPrefix+"init", "numFrames", numFrames, "strategy", strategy)
	return p, nil
}

// PinPage implements spec.md §4.2's pin algorithm: a hit increments
// fixCount and refreshes usage; a miss places the page onto a free frame
// or, failing that, the least-usage unpinned victim, writing the victim
// back first if dirty, then loads the requested page (growing the file
// as needed).
func (p *Pool) PinPage(pageNum int64) (*Handle, error) {
	if pageNum < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, pageNum)
	}

	if idx, ok := p.index[pageNum]; ok {
		f := p.frames[idx]
		f.fixCount++
		p.clock++
		f.usage = p.clock
		slog.Debug(logDebugPrefix+"pin hit", "page", pageNum, "frame", idx, "fixCount", f.fixCount)
		return &Handle{pool: p, pageNum: pageNum}, nil
	}

	idx, err := p.placementFrame()
	if err != nil {
		return nil, err
	}
	f := p.frames[idx]

	if f.dirty {
		if err := p.writeBack(f); err != nil {
			return nil, err
		}
	}
	if f.pageNum != pagefile.NoPage {
		delete(p.index, f.pageNum)
	}

	if err := p.file.EnsureCapacity(pageNum + 1); err != nil {
		return nil, err
	}
	if f.data == nil {
		f.data = make([]byte, pagefile.PageSize)
	}
	if err := p.file.ReadBlock(pageNum, f.data); err != nil {
		return nil, err
	}
	p.readIO++

	f.pageNum = pageNum
	f.dirty = false
	f.fixCount = 1
	p.clock++
	f.usage = p.clock
	p.index[pageNum] = idx

	slog.Debug(logDebugPrefix+"pin miss loaded", "page", pageNum, "frame", idx)
	return &Handle{pool: p, pageNum: pageNum}, nil
}

// placementFrame picks a frame for a newly pinned page: any unloaded frame
// first, else the least-usage victim among unpinned frames.
func (p *Pool) placementFrame() (int, error) {
	for i, f := range p.frames {
		if f.pageNum == pagefile.NoPage {
			return i, nil
		}
	}
	return p.pickVictim()
}

// pickVictim implements spec.md §4.2.1: among frames with fixCount == 0,
// choose the smallest usage, ties broken by lowest index.
func (p *Pool) pickVictim() (int, error) {
	victim := -1
	var victimUsage uint64
	for i, f := range p.frames {
		if f.fixCount != 0 {
			continue
		}
		if victim == -1 || f.usage < victimUsage {
			victim = i
			victimUsage = f.usage
		}
	}
	if victim == -1 {
		slog.Debug(logDebugPrefix + "no victim available, all frames pinned")
		return -1, ErrNoFreeFrame
	}
	return victim, nil
}

func (p *Pool) writeBack(f *Frame) error {
	if err := p.file.WriteBlock(f.pageNum, f.data); err != nil {
		return err
	}
	p.writeIO++
	f.dirty = false
	slog.Debug(logDebugPrefix+"write-back", "page", f.pageNum)
	return nil
}

// UnpinPage decrements the frame's fixCount if positive; a zero fixCount
// is a silent no-op (spec.md §7).
func (p *Pool) UnpinPage(h *Handle) error {
	if h == nil {
		return nil
	}
	idx, ok := p.index[h.pageNum]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f.fixCount > 0 {
		f.fixCount--
	}
	return nil
}

// MarkDirty flags the frame behind h as dirty.
func (p *Pool) MarkDirty(h *Handle) error {
	if h == nil {
		return nil
	}
	idx, ok := p.index[h.pageNum]
	if !ok {
		return fmt.Errorf("bufferpool: mark dirty: page %d not resident", h.pageNum)
	}
	p.frames[idx].dirty = true
	return nil
}

// ForcePage writes the frame back if dirty, regardless of pin count.
func (p *Pool) ForcePage(h *Handle) error {
	if h == nil {
		return nil
	}
	idx, ok := p.index[h.pageNum]
	if !ok {
		return fmt.Errorf("bufferpool: force page: page %d not resident", h.pageNum)
	}
	f := p.frames[idx]
	if !f.dirty {
		return nil
	}
	return p.writeBack(f)
}

// ForceFlushPool writes back every dirty frame with fixCount == 0. Pinned
// dirty frames are left untouched, matching spec.md §4.2's definition.
func (p *Pool) ForceFlushPool() error {
	slog.Debug(logDebugPrefix + "force flush pool")
	for _, f := range p.frames {
		if f.pageNum == pagefile.NoPage || !f.dirty || f.fixCount != 0 {
			continue
		}
		if err := p.writeBack(f); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown flushes, then requires every frame to be unpinned before
// releasing the pool's buffers.
func (p *Pool) Shutdown() error {
	if err := p.ForceFlushPool(); err != nil {
		return err
	}
	for _, f := range p.frames {
		if f.fixCount != 0 {
			return fmt.Errorf("%w: page %d has fixCount %d", ErrPoolShutdownPinned, f.pageNum, f.fixCount)
		}
	}
	for _, f := range p.frames {
		f.data = nil
		f.pageNum = pagefile.NoPage
		f.dirty = false
		f.usage = 0
	}
	p.index = make(map[int64]int)
	slog.Debug(logDebugPrefix + "shutdown complete")
	return nil
}

// FrameContents returns, for each frame, the page number it currently
// holds (or pagefile.NoPage).
func (p *Pool) FrameContents() []int64 {
	out := make([]int64, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.pageNum
	}
	return out
}

// DirtyFlags returns the dirty bit of every frame.
func (p *Pool) DirtyFlags() []bool {
	out := make([]bool, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.dirty
	}
	return out
}

// FixCounts returns the pin count of every frame.
func (p *Pool) FixCounts() []int {
	out := make([]int, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.fixCount
	}
	return out
}

// NumReadIO returns the cumulative count of physical block reads.
func (p *Pool) NumReadIO() uint64 { return p.readIO }

// NumWriteIO returns the cumulative count of physical block writes.
func (p *Pool) NumWriteIO() uint64 { return p.writeIO }

// NumFrames returns the pool's fixed frame count.
func (p *Pool) NumFrames() int { return len(p.frames) }
