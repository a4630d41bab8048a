// Command pagestat opens a page file directly through internal/pagefile
// — no record manager, no buffer pool — and prints, per data page, the
// slots_used header and the raw slot-directory bitmap. It exists for the
// case where recordctl stats is unavailable because page 0's metadata
// itself is suspected corrupt.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/haldor-db/recordstore/internal/bx"
	"github.com/haldor-db/recordstore/internal/config"
	"github.com/haldor-db/recordstore/internal/pagefile"
)

func main() {
	var recordWidth int
	var cfgPath string
	flag.IntVar(&recordWidth, "record-width", 0, "record width R in bytes, needed to compute the slot directory size M")
	flag.StringVar(&cfgPath, "config", "", "path to a recordctl YAML config file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: pagestat [--config file] [--record-width R] <file>")
		os.Exit(2)
	}

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			slog.Warn("pagestat: falling back to defaults", "error", err)
		} else {
			cfg = loaded
		}
	}

	name := flag.Arg(0)
	if !filepath.IsAbs(name) {
		name = filepath.Join(cfg.DataDir, name)
	}

	pf, err := pagefile.OpenPageFile(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pagestat:", err)
		os.Exit(1)
	}
	defer pf.Close()

	fmt.Printf("%s: %d pages\n", name, pf.TotalPages())

	if recordWidth <= 0 {
		fmt.Println("pass --record-width to decode data-page slot directories; dumping page 0 raw bytes only")
		dumpPage0(pf)
		return
	}

	m := (pagefile.PageSize - 4) / (recordWidth + 1)
	buf := make([]byte, pagefile.PageSize)
	for n := int64(1); n < pf.TotalPages(); n++ {
		if err := pf.ReadBlock(n, buf); err != nil {
			fmt.Fprintf(os.Stderr, "pagestat: read page %d: %v\n", n, err)
			continue
		}
		slotsUsed := bx.I32(buf[0:4])
		fmt.Printf("page %d: slots_used=%d directory=", n, slotsUsed)
		for i := 0; i < m; i++ {
			fmt.Printf("%d", buf[4+i])
		}
		fmt.Println()
	}
}

func dumpPage0(pf *pagefile.PageFile) {
	buf := make([]byte, pagefile.PageSize)
	if err := pf.ReadBlock(0, buf); err != nil {
		fmt.Fprintln(os.Stderr, "pagestat: read page 0:", err)
		return
	}
	end := 0
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	fmt.Printf("page 0 metadata:\n%s\n", buf[:end])
}
