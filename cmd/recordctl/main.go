// Command recordctl is a flag-based subcommand dispatcher for creating,
// loading, scanning, and inspecting record-manager tables — matching the
// teacher's cmd/server/main.go convention of stdlib flag.StringVar plus a
// config loader, rather than a CLI framework.
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/haldor-db/recordstore/internal/bufferpool"
	"github.com/haldor-db/recordstore/internal/config"
	"github.com/haldor-db/recordstore/internal/obslog"
	"github.com/haldor-db/recordstore/internal/predicate"
	"github.com/haldor-db/recordstore/internal/recordmgr"
	"github.com/haldor-db/recordstore/internal/schema"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cfgPath string
	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	fs.StringVar(&cfgPath, "config", "", "path to a recordctl YAML config file")

	cmd := os.Args[1]
	args := os.Args[2:]

	// requestID correlates every log line emitted by one CLI invocation,
	// the way a server would tag a request.
	requestID := uuid.NewString()

	switch cmd {
	case "create":
		runCreate(fs, args, cfgPath, requestID)
	case "load":
		runLoad(fs, args, cfgPath, requestID)
	case "scan":
		runScan(fs, args, cfgPath, requestID)
	case "get":
		runGet(fs, args, cfgPath, requestID)
	case "stats":
		runStats(fs, args, cfgPath, requestID)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `recordctl <create|load|scan|get|stats> [flags] <table> ...`)
}

func loadConfig(cfgPath string) *config.Config {
	if cfgPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Warn("recordctl: falling back to defaults", "error", err)
		return config.Default()
	}
	return cfg
}

// tablePath resolves table against cfg.DataDir, the way recordctl locates
// every table file it opens or creates.
func tablePath(cfg *config.Config, table string) string {
	if filepath.IsAbs(table) {
		return table
	}
	return filepath.Join(cfg.DataDir, table)
}

// poolOptions translates cfg's BufferFrames/Strategy into the arguments
// recordmgr.CreateTableWithOptions/OpenTableWithOptions expect, falling
// back to the package defaults on an unparseable strategy name.
func poolOptions(cfg *config.Config, requestID string) (int, bufferpool.Strategy) {
	numFrames := cfg.BufferFrames
	if numFrames <= 0 {
		numFrames = recordmgr.DefaultPoolFrames
	}
	strategy, err := bufferpool.ParseStrategy(cfg.Strategy)
	if err != nil {
		slog.Warn("recordctl: falling back to LRU", "requestID", requestID, "error", err)
		strategy = bufferpool.StrategyLRU
	}
	return numFrames, strategy
}

// parseSchemaSpec parses "a:int,b:string:20,c:float" into attributes.
func parseSchemaSpec(spec string) ([]schema.Attribute, error) {
	var attrs []schema.Attribute
	for _, field := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(field), ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("recordctl: bad schema field %q, want name:type[:length]", field)
		}
		name := parts[0]
		var typ schema.Type
		length := 0
		switch strings.ToLower(parts[1]) {
		case "int":
			typ = schema.TypeInt
		case "float":
			typ = schema.TypeFloat
		case "bool":
			typ = schema.TypeBool
		case "string":
			typ = schema.TypeString
			if len(parts) < 3 {
				return nil, fmt.Errorf("recordctl: string attribute %q needs a length", name)
			}
			n, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("recordctl: bad length for %q: %w", name, err)
			}
			length = n
		default:
			return nil, fmt.Errorf("recordctl: unknown type %q for attribute %q", parts[1], name)
		}
		attrs = append(attrs, schema.Attribute{Name: name, Type: typ, Length: length})
	}
	return attrs, nil
}

func runCreate(fs *flag.FlagSet, args []string, cfgPath, requestID string) {
	var schemaSpec string
	fs.StringVar(&schemaSpec, "schema", "", "comma-separated name:type[:length] attribute list")
	fs.Parse(args)
	cfg := loadConfig(cfgPath)

	if fs.NArg() < 1 || schemaSpec == "" {
		fmt.Fprintln(os.Stderr, "usage: recordctl create --schema a:int,b:string:20 <table>")
		os.Exit(2)
	}
	table := tablePath(cfg, fs.Arg(0))

	attrs, err := parseSchemaSpec(schemaSpec)
	if err != nil {
		slog.Error("recordctl: create failed", "requestID", requestID, "error", err)
		os.Exit(1)
	}

	s := schema.New(attrs, nil)
	numFrames, strategy := poolOptions(cfg, requestID)
	if err := recordmgr.CreateTableWithOptions(table, s, numFrames, strategy); err != nil {
		slog.Error("recordctl: create failed", "requestID", requestID, "error", err)
		os.Exit(1)
	}
	fmt.Printf("created table %s with record width %d bytes\n", table, s.Width())
}

func runLoad(fs *flag.FlagSet, args []string, cfgPath, requestID string) {
	fs.Parse(args)
	cfg := loadConfig(cfgPath)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: recordctl load <table> <csv-file>")
		os.Exit(2)
	}
	table, csvPath := tablePath(cfg, fs.Arg(0)), fs.Arg(1)

	numFrames, strategy := poolOptions(cfg, requestID)
	tbl, err := recordmgr.OpenTableWithOptions(table, numFrames, strategy)
	if err != nil {
		slog.Error("recordctl: load failed", "requestID", requestID, "error", err)
		os.Exit(1)
	}
	defer tbl.CloseTable()

	f, err := os.Open(csvPath)
	if err != nil {
		slog.Error("recordctl: load failed", "requestID", requestID, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	s := tbl.Schema()
	reader := csv.NewReader(bufio.NewReader(f))
	inserted := 0
rows:
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		rec := schema.NewRecord(s)
		for i, field := range row {
			if i >= len(s.Attrs) {
				break
			}
			v, err := parseFieldValue(s.Attrs[i].Type, field)
			if err != nil {
				slog.Error("recordctl: load: skipping row", "requestID", requestID, "error", err)
				continue rows
			}
			if err := rec.SetAttr(s, i, v); err != nil {
				slog.Error("recordctl: load: skipping row", "requestID", requestID, "error", err)
				continue rows
			}
		}
		if err := tbl.InsertRecord(rec); err != nil {
			slog.Error("recordctl: load: insert failed", "requestID", requestID, "error", err)
			continue
		}
		inserted++
	}
	fmt.Printf("loaded %d rows into %s\n", inserted, table)
}

func parseFieldValue(t schema.Type, field string) (schema.Value, error) {
	switch t {
	case schema.TypeInt:
		n, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.IntValue(int32(n)), nil
	case schema.TypeFloat:
		f, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.FloatValue(float32(f)), nil
	case schema.TypeBool:
		b, err := strconv.ParseBool(field)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.BoolValue(b), nil
	case schema.TypeString:
		return schema.StringValue(field), nil
	default:
		return schema.Value{}, fmt.Errorf("recordctl: unsupported type %s", t)
	}
}

func runScan(fs *flag.FlagSet, args []string, cfgPath, requestID string) {
	var where string
	fs.StringVar(&where, "where", "", `predicate "col op literal", e.g. "salary >= 800"`)
	fs.Parse(args)
	cfg := loadConfig(cfgPath)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: recordctl scan [--where \"col op literal\"] <table>")
		os.Exit(2)
	}
	table := tablePath(cfg, fs.Arg(0))

	numFrames, strategy := poolOptions(cfg, requestID)
	tbl, err := recordmgr.OpenTableWithOptions(table, numFrames, strategy)
	if err != nil {
		slog.Error("recordctl: scan failed", "requestID", requestID, "error", err)
		os.Exit(1)
	}
	defer tbl.CloseTable()

	s := tbl.Schema()
	cond := predicate.None
	if where != "" {
		c, err := parseWhere(s, where)
		if err != nil {
			slog.Error("recordctl: scan: bad --where", "requestID", requestID, "error", err)
			os.Exit(1)
		}
		cond = c
	}

	scan := tbl.StartScan(cond)
	defer scan.CloseScan()

	for {
		rec, err := scan.Next()
		if err == recordmgr.ErrScanExhausted {
			break
		}
		if err != nil {
			slog.Error("recordctl: scan failed", "requestID", requestID, "error", err)
			os.Exit(1)
		}
		printRecord(s, rec)
	}
}

func parseWhere(s schema.Schema, where string) (predicate.Condition, error) {
	fields := strings.Fields(where)
	if len(fields) != 3 {
		return predicate.None, fmt.Errorf("recordctl: --where must be \"col op literal\", got %q", where)
	}
	idx, err := s.IndexOf(fields[0])
	if err != nil {
		return predicate.None, err
	}
	var op predicate.Op
	switch fields[1] {
	case "=", "==":
		op = predicate.OpEq
	case "!=":
		op = predicate.OpNe
	case "<":
		op = predicate.OpLt
	case "<=":
		op = predicate.OpLe
	case ">":
		op = predicate.OpGt
	case ">=":
		op = predicate.OpGe
	default:
		return predicate.None, fmt.Errorf("recordctl: unknown operator %q", fields[1])
	}
	literal, err := parseFieldValue(s.Attrs[idx].Type, fields[2])
	if err != nil {
		return predicate.None, err
	}
	return predicate.NewCondition(predicate.Compare(idx, op, literal)), nil
}

func printRecord(s schema.Schema, rec *schema.Record) {
	parts := make([]string, len(s.Attrs))
	for i, a := range s.Attrs {
		v, err := rec.GetAttr(s, i)
		if err != nil {
			parts[i] = "<error>"
			continue
		}
		switch a.Type {
		case schema.TypeInt:
			parts[i] = fmt.Sprintf("%s=%d", a.Name, v.Int)
		case schema.TypeFloat:
			parts[i] = fmt.Sprintf("%s=%g", a.Name, v.Float)
		case schema.TypeBool:
			parts[i] = fmt.Sprintf("%s=%t", a.Name, v.Bool)
		case schema.TypeString:
			parts[i] = fmt.Sprintf("%s=%q", a.Name, v.String)
		}
	}
	fmt.Printf("(%d,%d) %s\n", rec.RID.Page, rec.RID.Slot, strings.Join(parts, " "))
}

func runGet(fs *flag.FlagSet, args []string, cfgPath, requestID string) {
	fs.Parse(args)
	cfg := loadConfig(cfgPath)

	if fs.NArg() < 3 {
		fmt.Fprintln(os.Stderr, "usage: recordctl get <table> <page> <slot>")
		os.Exit(2)
	}
	table := tablePath(cfg, fs.Arg(0))
	page, err := strconv.ParseInt(fs.Arg(1), 10, 64)
	if err != nil {
		fmt.Fprintln(os.Stderr, "recordctl: bad page number:", err)
		os.Exit(2)
	}
	slot, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		fmt.Fprintln(os.Stderr, "recordctl: bad slot number:", err)
		os.Exit(2)
	}

	numFrames, strategy := poolOptions(cfg, requestID)
	tbl, err := recordmgr.OpenTableWithOptions(table, numFrames, strategy)
	if err != nil {
		slog.Error("recordctl: get failed", "requestID", requestID, "error", err)
		os.Exit(1)
	}
	defer tbl.CloseTable()

	rec, err := tbl.GetRecord(schema.RID{Page: page, Slot: int32(slot)})
	if err != nil {
		slog.Error("recordctl: get failed", "requestID", requestID, "error", err)
		os.Exit(1)
	}
	printRecord(tbl.Schema(), rec)
}

func runStats(fs *flag.FlagSet, args []string, cfgPath, requestID string) {
	fs.Parse(args)
	cfg := loadConfig(cfgPath)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: recordctl stats <table>")
		os.Exit(2)
	}
	table := tablePath(cfg, fs.Arg(0))

	numFrames, strategy := poolOptions(cfg, requestID)
	tbl, err := recordmgr.OpenTableWithOptions(table, numFrames, strategy)
	if err != nil {
		slog.Error("recordctl: stats failed", "requestID", requestID, "error", err)
		os.Exit(1)
	}
	defer tbl.CloseTable()

	pool := tbl.Pool()
	contents := pool.FrameContents()
	dirty := pool.DirtyFlags()
	fix := pool.FixCounts()

	fmt.Printf("table %s: %d tuples\n", table, tbl.GetNumTuples())
	for i := range contents {
		fmt.Printf("  frame %d: page=%d dirty=%t fixCount=%d\n", i, contents[i], dirty[i], fix[i])
	}
	fmt.Printf("  readIO=%d writeIO=%d\n", pool.NumReadIO(), pool.NumWriteIO())
}

func init() {
	obslog.Setup(os.Getenv("RECORDCTL_LOG_LEVEL"))
}
