// Command allocations runs the allocation engine against a configured store
// without the HTTP server.
//
//	allocations persist [--replace] [--input file] [--store path] [--driver file|sqlite|postgres] [--data-dir dir]
//	allocations conflicts [--input file] [...store flags]
//	allocations backups [...store flags]
//	allocations restore --name backup [...store flags]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/app"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
)

const usage = `usage: allocations <command> [flags]

commands:
  persist    merge (default) or --replace the stored set with --input
  conflicts  report teacher and room double bookings of --input against the store
  backups    list backups of the store
  restore    replace the store with the backup named by --name

run "allocations <command> --help" for command flags
`

// exitConflicts is returned by the conflicts command when any double booking exists.
const exitConflicts = 3

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type storeFlags struct {
	driver   string
	store    string
	dataDir  string
	logLevel string
}

func (f *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.driver, "driver", "", "allocation store driver: file, sqlite or postgres")
	fs.StringVar(&f.store, "store", "", "allocation store path (JSON file or SQLite database)")
	fs.StringVar(&f.dataDir, "data-dir", "", "directory holding reference JSON files")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level")
}

func (f *storeFlags) apply(cfg *config.Config) {
	if f.driver != "" {
		cfg.Allocations.StoreDriver = strings.ToLower(f.driver)
	}
	if f.store != "" {
		if cfg.Allocations.StoreDriver == config.StoreDriverSQLite {
			cfg.Allocations.SQLitePath = f.store
		} else {
			cfg.Allocations.File = f.store
		}
	}
	if f.dataDir != "" {
		cfg.Reference.DataDir = f.dataDir
	}
	cfg.Reference.CacheEnabled = false
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf storeFlags
	sf.register(fs)
	var (
		replace bool
		input   string
		name    string
	)
	switch cmd {
	case "persist":
		fs.BoolVar(&replace, "replace", false, "replace the stored set instead of merging")
		fs.StringVar(&input, "input", "-", "JSON file with incoming allocations, - for stdin")
	case "conflicts":
		fs.StringVar(&input, "input", "-", "JSON file with allocations to check, - for stdin")
	case "backups":
	case "restore":
		fs.StringVar(&name, "name", "", "backup name as listed by the backups command")
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	sf.apply(cfg)
	logr := logger.NewCLI(sf.logLevel)
	defer logr.Sync() //nolint:errcheck

	engine, err := app.New(ctx, cfg, logr, nil)
	if err != nil {
		logr.Error("failed to open allocation store", zap.Error(err))
		return 1
	}
	defer engine.Close() //nolint:errcheck

	var result interface{}
	code := 0
	switch cmd {
	case "persist":
		var incoming []models.Allocation
		if incoming, err = readAllocations(input, stdin); err == nil {
			mode := models.PersistModeMerge
			if replace {
				mode = models.PersistModeReplace
			}
			result, err = engine.Allocations.Persist(ctx, incoming, mode)
		}
	case "conflicts":
		var entries []models.Allocation
		if entries, err = readAllocations(input, stdin); err == nil {
			var report models.ConflictReport
			report, err = engine.Allocations.CheckConflicts(ctx, entries)
			if !report.Empty() {
				code = exitConflicts
			}
			result = report
		}
	case "backups":
		result, err = engine.Allocations.ListBackups(ctx)
	case "restore":
		if strings.TrimSpace(name) == "" {
			err = errors.New("--name is required")
		} else {
			result, err = engine.Allocations.Restore(ctx, name)
		}
	}
	if err != nil {
		logr.Error(cmd+" failed", zap.Error(err))
		var verr *models.AllocationValidationError
		if errors.As(err, &verr) {
			_ = writeJSON(stdout, verr)
		}
		return 1
	}
	if err := writeJSON(stdout, result); err != nil {
		logr.Error("write output", zap.Error(err))
		return 1
	}
	return code
}

// readAllocations accepts either a bare JSON array or an object with an
// "allocations" array.
func readAllocations(path string, stdin io.Reader) ([]models.Allocation, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []models.Allocation{}, nil
	}
	if data[0] == '{' {
		var wrapped struct {
			Allocations []models.Allocation `json:"allocations"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		return wrapped.Allocations, nil
	}
	var items []models.Allocation
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return items, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
