package recordmgr

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/haldor-db/recordstore/internal/pagefile"
	"github.com/haldor-db/recordstore/internal/schema"
)

// ErrMetadataTooLarge is returned when a schema's serialized page-0
// metadata would not fit in one page. The teacher's analog
// (writeTableInfo) used strcpy into an intermediate buffer and silently
// overflowed; this resolves the open issue from spec.md §9 by bound
// checking instead.
var ErrMetadataTooLarge = errors.New("recordmgr: serialized table metadata exceeds page size")

// tableMeta is the in-memory mirror of page 0's contents.
type tableMeta struct {
	numTuples    int64
	nextFreePage int64
	schema       schema.Schema
}

// encodeMetadata renders a tableMeta into the page-0 text format of
// spec.md §3, amended with a third metadata line persisting the
// key-attribute index set (resolving the "key set not persisted" open
// issue from spec.md §9 — reopen no longer substitutes the {0} stub).
func encodeMetadata(m tableMeta) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d\n", m.numTuples, m.nextFreePage)
	fmt.Fprintf(&buf, "%d\n", len(m.schema.Attrs))
	for _, a := range m.schema.Attrs {
		fmt.Fprintf(&buf, "%d %d %s\n", int(a.Type), a.Length, a.Name)
	}
	fmt.Fprintf(&buf, "%d", len(m.schema.KeyAttrs))
	for _, k := range m.schema.KeyAttrs {
		fmt.Fprintf(&buf, " %d", k)
	}
	buf.WriteByte('\n')

	if buf.Len() > pagefile.PageSize {
		return nil, fmt.Errorf("%w: %d bytes, page size %d", ErrMetadataTooLarge, buf.Len(), pagefile.PageSize)
	}

	page := make([]byte, pagefile.PageSize)
	copy(page, buf.Bytes())
	return page, nil
}

// decodeMetadata parses page 0's bytes back into a tableMeta.
func decodeMetadata(page []byte) (tableMeta, error) {
	scanner := bufio.NewScanner(bytes.NewReader(page))
	// bytes.NewReader(page) contains trailing NUL padding; bufio.Scanner's
	// default line split works fine since NUL bytes never appear inside the
	// textual lines we expect and are simply read as one final empty-ish
	// token we never reach.
	var m tableMeta

	if !scanner.Scan() {
		return m, fmt.Errorf("recordmgr: metadata: missing tuple-count line")
	}
	line1 := strings.TrimRight(scanner.Text(), "\x00")
	var numTuples, nextFree int64
	if _, err := fmt.Sscanf(line1, "%d %d", &numTuples, &nextFree); err != nil {
		return m, fmt.Errorf("recordmgr: metadata: parse tuple-count line %q: %w", line1, err)
	}
	m.numTuples = numTuples
	m.nextFreePage = nextFree

	if !scanner.Scan() {
		return m, fmt.Errorf("recordmgr: metadata: missing attribute-count line")
	}
	line2 := strings.TrimRight(scanner.Text(), "\x00")
	numAttr, err := strconv.Atoi(strings.TrimSpace(line2))
	if err != nil {
		return m, fmt.Errorf("recordmgr: metadata: parse attribute-count line %q: %w", line2, err)
	}

	attrs := make([]schema.Attribute, 0, numAttr)
	for i := 0; i < numAttr; i++ {
		if !scanner.Scan() {
			return m, fmt.Errorf("recordmgr: metadata: missing attribute line %d", i)
		}
		line := strings.TrimRight(scanner.Text(), "\x00")
		var code, length int
		var name string
		if _, err := fmt.Sscanf(line, "%d %d %s", &code, &length, &name); err != nil {
			return m, fmt.Errorf("recordmgr: metadata: parse attribute line %q: %w", line, err)
		}
		typ, err := schema.ParseType(code)
		if err != nil {
			return m, err
		}
		attrs = append(attrs, schema.Attribute{Name: name, Type: typ, Length: length})
	}

	keyAttrs := []int{}
	if scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\x00")
		fields := strings.Fields(line)
		if len(fields) > 0 {
			numKeys, err := strconv.Atoi(fields[0])
			if err == nil {
				for i := 0; i < numKeys && i+1 < len(fields); i++ {
					k, err := strconv.Atoi(fields[i+1])
					if err != nil {
						return m, fmt.Errorf("recordmgr: metadata: parse key-attr line %q: %w", line, err)
					}
					keyAttrs = append(keyAttrs, k)
				}
			}
		}
	}

	m.schema = schema.New(attrs, keyAttrs)
	return m, nil
}
