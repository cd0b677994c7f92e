// Package app wires configuration, the store and the benchmark components
// behind the numbered empbench modes.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/arkilian/empbench/internal/benchmark"
	"github.com/arkilian/empbench/internal/config"
	"github.com/arkilian/empbench/internal/generator"
	"github.com/arkilian/empbench/internal/index"
	"github.com/arkilian/empbench/internal/logging"
	"github.com/arkilian/empbench/internal/repository"
	"github.com/arkilian/empbench/internal/schema"
	"github.com/arkilian/empbench/internal/storage"
	"github.com/arkilian/empbench/pkg/types"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// ErrUsage marks errors caused by a malformed command line.
var ErrUsage = errors.New("usage error")

// Mode selects the operation performed by Run.
type Mode int

const (
	ModeCreateSchema Mode = iota + 1
	ModeAdd
	ModeList
	ModeFill
	ModeBenchmark
	ModeDropIndexes
)

var modeNames = map[Mode]string{
	ModeCreateSchema: "create-schema",
	ModeAdd:          "add",
	ModeList:         "list",
	ModeFill:         "fill",
	ModeBenchmark:    "benchmark",
	ModeDropIndexes:  "drop-indexes",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses the numeric mode argument.
func ParseMode(s string) (Mode, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: mode %q is not a number", ErrUsage, s)
	}
	m := Mode(n)
	if _, ok := modeNames[m]; !ok {
		return 0, fmt.Errorf("%w: unknown mode %d (expected 1-%d)", ErrUsage, n, len(modeNames))
	}
	return m, nil
}

type handler func(ctx context.Context, args []string) error

// App runs one mode against one store.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	now    func() time.Time

	mapping *schema.Mapping
	db      *sql.DB
	dialect storage.Dialect
	repo    *repository.Repository
	indexes *index.Manager

	handlers map[Mode]handler

	mu     sync.Mutex
	opened bool
}

// New validates cfg and creates an App writing records and reports to out.
func New(cfg *config.Config, logger *zap.Logger, out io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logging.OrNop(logger),
		out:     out,
		now:     time.Now,
		mapping: schema.EmployeeMapping(),
	}
	a.handlers = map[Mode]handler{
		ModeCreateSchema: a.createSchema,
		ModeAdd:          a.addEmployee,
		ModeList:         a.listEmployees,
		ModeFill:         a.fill,
		ModeBenchmark:    a.benchmark,
		ModeDropIndexes:  a.dropIndexes,
	}
	return a, nil
}

// Open connects to the store and builds the repository and index manager.
func (a *App) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return fmt.Errorf("app is already open")
	}

	db, dialect, err := storage.Open(ctx, storage.Options{
		Driver:       a.cfg.Store.Driver,
		DSN:          a.cfg.Store.DSN,
		MaxOpenConns: a.cfg.Store.MaxOpenConns,
	})
	if err != nil {
		return err
	}

	repo, err := repository.New(db, dialect, a.mapping,
		repository.WithChunkSize(a.cfg.Generate.ChunkSize),
		repository.WithLogger(a.logger.Named("repository")))
	if err != nil {
		db.Close()
		return err
	}

	a.db = db
	a.dialect = dialect
	a.repo = repo
	a.indexes = index.NewManager(db, dialect, a.mapping, a.logger.Named("index"))
	a.opened = true

	a.logger.Info("store opened",
		zap.String("driver", a.cfg.Store.Driver),
		zap.String("dialect", dialect.Name()),
		zap.Int("chunk_size", repo.ChunkSize()))
	return nil
}

// Close releases the store handle.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.opened {
		return nil
	}
	a.opened = false
	return a.db.Close()
}

// Run executes mode with its positional arguments. The App must be open.
func (a *App) Run(ctx context.Context, mode Mode, args []string) error {
	h, ok := a.handlers[mode]
	if !ok {
		return fmt.Errorf("%w: unknown mode %d", ErrUsage, int(mode))
	}
	a.mu.Lock()
	opened := a.opened
	a.mu.Unlock()
	if !opened {
		return fmt.Errorf("app is not open")
	}

	start := time.Now()
	if err := h(ctx, args); err != nil {
		return err
	}
	a.logger.Debug("mode finished", zap.Stringer("mode", mode), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (a *App) createSchema(ctx context.Context, args []string) error {
	if err := expectArgs(ModeCreateSchema, args, 0); err != nil {
		return err
	}
	if err := a.repo.CreateSchema(ctx); err != nil {
		return err
	}
	a.logger.Info("schema created", zap.String("table", a.mapping.Table))
	return nil
}

func (a *App) addEmployee(ctx context.Context, args []string) error {
	if err := expectArgs(ModeAdd, args, 3); err != nil {
		return err
	}
	id, err := a.repo.Add(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "added employee %d\n", id)
	return err
}

func (a *App) listEmployees(ctx context.Context, args []string) error {
	if err := expectArgs(ModeList, args, 0); err != nil {
		return err
	}
	employees, err := a.repo.ListAllOrdered(ctx)
	if err != nil {
		return err
	}
	asOf := a.now()
	for _, e := range employees {
		if _, err := fmt.Fprintln(a.out, FormatEmployee(e, asOf)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) fill(ctx context.Context, args []string) error {
	if err := expectArgs(ModeFill, args, 0); err != nil {
		return err
	}

	gc := a.cfg.Generate
	gen := generator.New(generator.WithSeed(gc.Seed), generator.WithMarker(a.cfg.Benchmark.NamePrefix))

	start := time.Now()
	batch := gen.Combined(gc.RandomCount, gc.TargetedCount)
	a.logger.Info("batch generated",
		zap.Int("random", gc.RandomCount),
		zap.Int("targeted", gc.TargetedCount),
		zap.Duration("elapsed", time.Since(start)))

	written, err := a.repo.BulkInsert(ctx, batch)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "inserted %s records\n", humanize.Comma(written))
	return err
}

func (a *App) benchmark(ctx context.Context, args []string) error {
	if err := expectArgs(ModeBenchmark, args, 0); err != nil {
		return err
	}

	bc := a.cfg.Benchmark
	h := benchmark.NewHarness(a.repo, a.indexes, a.mapping, benchmark.Config{
		Driver:       a.cfg.Store.Driver,
		NamePrefix:   bc.NamePrefix,
		Gender:       bc.Gender,
		Repeat:       bc.Repeat,
		ResetIndexes: bc.ResetIndexes,
	}, a.logger.Named("benchmark"))

	report, err := h.Run(ctx)
	if err != nil {
		return err
	}

	if bc.PrintRows {
		for _, p := range report.Phases {
			fmt.Fprintf(a.out, "\nquery %s:\n", p.State)
			for _, e := range p.Records {
				fmt.Fprintf(a.out, "%s %s %s\n", e.FullName, types.FormatDate(e.BirthDate), e.Gender)
			}
		}
		fmt.Fprintln(a.out)
	}
	return report.Print(a.out)
}

func (a *App) dropIndexes(ctx context.Context, args []string) error {
	if err := expectArgs(ModeDropIndexes, args, 0); err != nil {
		return err
	}
	return a.indexes.DropAll(ctx, a.mapping.Indexes)
}

// FormatEmployee renders one line of the mode 3 listing.
func FormatEmployee(e types.Employee, asOf time.Time) string {
	return fmt.Sprintf("%s, %s, %s, %d years old", e.FullName, types.FormatDate(e.BirthDate), e.Gender, e.Age(asOf))
}

func expectArgs(mode Mode, args []string, n int) error {
	if len(args) == n {
		return nil
	}
	if mode == ModeAdd {
		return fmt.Errorf("%w: mode %d expects <full_name> <birth_date> <gender>, got %d arguments", ErrUsage, int(mode), len(args))
	}
	return fmt.Errorf("%w: mode %d takes no arguments, got %d", ErrUsage, int(mode), len(args))
}
