// Package benchmark times the predicate query before and after the
// secondary indexes exist.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/arkilian/empbench/internal/logging"
	"github.com/arkilian/empbench/internal/observability"
	"github.com/arkilian/empbench/internal/schema"
	"github.com/arkilian/empbench/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidTransition is returned when a phase is measured out of order.
var ErrInvalidTransition = errors.New("benchmark: invalid phase transition")

// State is the index state a measurement is taken in.
type State int

const (
	NoIndex State = iota
	Indexed
)

func (s State) String() string {
	switch s {
	case NoIndex:
		return "no_index"
	case Indexed:
		return "indexed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// QueryFunc runs one query and returns its fully materialized result.
type QueryFunc func(ctx context.Context) ([]types.Employee, error)

// Measure times fn. The clock starts right before the call and stops once
// the result slice is complete.
func Measure(ctx context.Context, fn QueryFunc) ([]types.Employee, time.Duration, error) {
	start := time.Now()
	records, err := fn(ctx)
	elapsed := time.Since(start)
	return records, elapsed, err
}

// Store is the part of the repository the harness queries.
type Store interface {
	QueryByPredicate(ctx context.Context, namePrefix, gender string) ([]types.Employee, error)
	Count(ctx context.Context) (int64, error)
}

// IndexManager creates, drops and lists the benchmark indexes.
type IndexManager interface {
	CreateAll(ctx context.Context, defs []types.IndexDef) error
	DropAll(ctx context.Context, defs []types.IndexDef) error
	ListIndexes(ctx context.Context) ([]string, error)
}

// Config controls a benchmark run.
type Config struct {
	// Driver is reported as-is
	Driver string

	NamePrefix string
	Gender     string

	// Repeat is the number of timed executions per phase; 0 means 1
	Repeat int

	// ResetIndexes drops the benchmark indexes before the NoIndex phase.
	// When off, Run fails with ErrInvalidTransition if any of them exists.
	ResetIndexes bool
}

// Harness drives one NoIndex → Indexed cycle. It is single use.
type Harness struct {
	store   Store
	indexes IndexManager
	mapping *schema.Mapping
	cfg     Config
	stats   *observability.QueryStats
	logger  *zap.Logger

	state    State
	measured map[State]bool
	phases   []PhaseResult
}

// NewHarness creates a harness in the NoIndex state.
func NewHarness(store Store, indexes IndexManager, mapping *schema.Mapping, cfg Config, logger *zap.Logger) *Harness {
	if cfg.Repeat < 1 {
		cfg.Repeat = 1
	}
	return &Harness{
		store:    store,
		indexes:  indexes,
		mapping:  mapping,
		cfg:      cfg,
		stats:    observability.NewQueryStats(),
		logger:   logging.OrNop(logger),
		state:    NoIndex,
		measured: make(map[State]bool),
	}
}

// State returns the current index state.
func (h *Harness) State() State {
	return h.state
}

// Stats returns the samples recorded so far.
func (h *Harness) Stats() *observability.QueryStats {
	return h.stats
}

// Predicate renders the measured predicate for display.
func (h *Harness) Predicate() string {
	return fmt.Sprintf("%s LIKE '%s%%' AND %s = '%s'",
		h.mapping.FullName, h.cfg.NamePrefix, h.mapping.Gender, h.cfg.Gender)
}

// MeasurePhase runs the predicate query Repeat times in state want and
// records the samples. Each state is measured once, in order, and NoIndex
// is only measured while none of the benchmark indexes exists.
func (h *Harness) MeasurePhase(ctx context.Context, want State) (PhaseResult, error) {
	if want != h.state || h.measured[want] {
		return PhaseResult{}, fmt.Errorf("%w: cannot measure %s in state %s", ErrInvalidTransition, want, h.state)
	}
	if want == NoIndex {
		present, err := h.presentIndexes(ctx)
		if err != nil {
			return PhaseResult{}, err
		}
		if len(present) > 0 {
			return PhaseResult{}, fmt.Errorf("%w: cannot measure %s while indexes %v exist; drop them first",
				ErrInvalidTransition, NoIndex, present)
		}
	}

	query := func(ctx context.Context) ([]types.Employee, error) {
		return h.store.QueryByPredicate(ctx, h.cfg.NamePrefix, h.cfg.Gender)
	}

	var records []types.Employee
	for i := 0; i < h.cfg.Repeat; i++ {
		found, elapsed, err := Measure(ctx, query)
		if err != nil {
			return PhaseResult{}, err
		}
		records = found
		h.stats.RecordSample(want.String(), elapsed)
		h.stats.RecordPredicate(h.mapping.FullName, "LIKE")
		h.stats.RecordPredicate(h.mapping.Gender, "=")
	}

	summary, _ := h.stats.Summary(want.String())
	result := PhaseResult{
		State:    want,
		Duration: summary.Median,
		Rows:     len(records),
		Timing:   summary,
		Records:  records,
	}
	h.measured[want] = true
	h.phases = append(h.phases, result)

	h.logger.Info("phase measured",
		zap.String("state", want.String()),
		zap.Int("rows", result.Rows),
		zap.Duration("elapsed", result.Duration),
		zap.Int("samples", summary.Count))
	return result, nil
}

// CreateIndexes creates the mapping's benchmark indexes and moves the harness
// to Indexed. The NoIndex phase must have been measured first.
func (h *Harness) CreateIndexes(ctx context.Context) error {
	if h.state != NoIndex || !h.measured[NoIndex] {
		return fmt.Errorf("%w: indexes can only be created after the %s phase", ErrInvalidTransition, NoIndex)
	}

	start := time.Now()
	if err := h.indexes.CreateAll(ctx, h.mapping.Indexes); err != nil {
		return err
	}
	h.logger.Info("benchmark indexes ready",
		zap.Int("indexes", len(h.mapping.Indexes)),
		zap.Duration("elapsed", time.Since(start)))

	h.state = Indexed
	return nil
}

// Run performs the whole cycle and returns the report.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	if h.cfg.ResetIndexes && h.state == NoIndex && !h.measured[NoIndex] {
		if err := h.indexes.DropAll(ctx, h.mapping.Indexes); err != nil {
			return nil, err
		}
	}

	rows, err := h.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := h.MeasurePhase(ctx, NoIndex); err != nil {
		return nil, err
	}
	if err := h.CreateIndexes(ctx); err != nil {
		return nil, err
	}
	if _, err := h.MeasurePhase(ctx, Indexed); err != nil {
		return nil, err
	}

	return &Report{
		RunID:      uuid.New(),
		Driver:     h.cfg.Driver,
		Predicate:  h.Predicate(),
		Rows:       rows,
		Phases:     append([]PhaseResult(nil), h.phases...),
		Predicates: h.stats.GetTopPredicates(len(h.mapping.Columns)),
	}, nil
}

// presentIndexes returns the benchmark indexes that currently exist.
func (h *Harness) presentIndexes(ctx context.Context) ([]string, error) {
	existing, err := h.indexes.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	var present []string
	for _, def := range h.mapping.Indexes {
		if slices.Contains(existing, def.Name) {
			present = append(present, def.Name)
		}
	}
	return present, nil
}
