// Package pagefile implements block-addressable I/O over a flat file of
// fixed-size pages. It performs no caching: every call is a direct seek +
// read/write against the underlying os.File. The buffer pool is the only
// intended caller in the hot path.
package pagefile

import (
	"errors"
	"io"
	"log/slog"
	"os"

	pkgerrors "github.com/pkg/errors"
)

// PageSize is the fixed block size used by every page file this package
// manages. It is a package constant, not a per-file parameter, because the
// buffer pool and record manager both assume a single compile-time page
// size (spec.md's PAGE_SIZE).
const PageSize = 4096

// NoPage is the sentinel meaning "no page loaded" or "no such page".
const NoPage int64 = -1

var (
	ErrFileNotFound = errors.New("pagefile: file not found")
	ErrIO           = errors.New("pagefile: I/O error")
	ErrOutOfRange   = errors.New("pagefile: page number out of range")
)

// PageFile is a block-addressable flat file. It holds its own *os.File
// exclusively while open; callers must not open the same underlying file
// through two PageFile handles at once (see spec.md's concurrency model).
type PageFile struct {
	name       string
	f          *os.File
	totalPages int64
}

// CreatePageFile creates a file of exactly one zero-filled page. It fails
// if the file already exists or cannot be created.
func CreatePageFile(name string) error {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return pkgerrors.Wrapf(ErrIO, "create page file %q: %v", name, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(make([]byte, PageSize)); err != nil {
		return pkgerrors.Wrapf(ErrIO, "zero-fill initial page of %q: %v", name, err)
	}
	return nil
}

// DestroyPageFile removes the file backing a page file.
func DestroyPageFile(name string) error {
	if err := os.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pkgerrors.Wrapf(ErrFileNotFound, "destroy page file %q", name)
		}
		return pkgerrors.Wrapf(ErrIO, "destroy page file %q: %v", name, err)
	}
	return nil
}

// OpenPageFile opens an existing page file for read/write and populates
// totalPages from the file's current size.
func OpenPageFile(name string) (*PageFile, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, pkgerrors.Wrapf(ErrFileNotFound, "open page file %q", name)
		}
		return nil, pkgerrors.Wrapf(ErrIO, "open page file %q: %v", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, pkgerrors.Wrapf(ErrIO, "stat page file %q: %v", name, err)
	}

	pf := &PageFile{
		name:       name,
		f:          f,
		totalPages: info.Size() / PageSize,
	}
	slog.Debug("pagefile: opened", "name", name, "totalPages", pf.totalPages)
	return pf, nil
}

// Close closes the underlying file.
func (pf *PageFile) Close() error {
	if pf == nil || pf.f == nil {
		return nil
	}
	err := pf.f.Close()
	pf.f = nil
	if err != nil {
		return pkgerrors.Wrapf(ErrIO, "close page file %q: %v", pf.name, err)
	}
	return nil
}

// TotalPages returns the number of pages currently in the file.
func (pf *PageFile) TotalPages() int64 {
	return pf.totalPages
}

// ReadBlock reads page n into buf, which must be exactly PageSize bytes.
// It fails when n is out of range.
func (pf *PageFile) ReadBlock(n int64, buf []byte) error {
	if n < 0 {
		return pkgerrors.Wrapf(ErrOutOfRange, "read block %d: negative page number", n)
	}
	if n >= pf.totalPages {
		return pkgerrors.Wrapf(ErrOutOfRange, "read block %d: only %d pages present", n, pf.totalPages)
	}
	if len(buf) != PageSize {
		return pkgerrors.Errorf("pagefile: read buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}

	off := n * PageSize
	nRead, err := pf.f.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.Wrapf(ErrIO, "read block %d: %v", n, err)
	}
	// A short read (e.g. a sparse/truncated file) is zero-padded to PageSize.
	for i := nRead; i < PageSize; i++ {
		buf[i] = 0
	}
	return nil
}

// WriteBlock writes buf (exactly PageSize bytes) to page n. Writing beyond
// the current end of file is only valid via AppendEmptyBlock/EnsureCapacity
// having grown the file first; WriteBlock itself never changes totalPages.
func (pf *PageFile) WriteBlock(n int64, buf []byte) error {
	if n < 0 {
		return pkgerrors.Wrapf(ErrOutOfRange, "write block %d: negative page number", n)
	}
	if len(buf) != PageSize {
		return pkgerrors.Errorf("pagefile: write buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}

	off := n * PageSize
	if _, err := pf.f.WriteAt(buf, off); err != nil {
		return pkgerrors.Wrapf(ErrIO, "write block %d: %v", n, err)
	}
	return nil
}

// AppendEmptyBlock zero-fills and appends one page, incrementing totalPages.
func (pf *PageFile) AppendEmptyBlock() error {
	off := pf.totalPages * PageSize
	if _, err := pf.f.WriteAt(make([]byte, PageSize), off); err != nil {
		return pkgerrors.Wrapf(ErrIO, "append empty block: %v", err)
	}
	pf.totalPages++
	return nil
}

// EnsureCapacity appends empty blocks until TotalPages() >= k.
func (pf *PageFile) EnsureCapacity(k int64) error {
	for pf.totalPages < k {
		if err := pf.AppendEmptyBlock(); err != nil {
			return err
		}
	}
	return nil
}
