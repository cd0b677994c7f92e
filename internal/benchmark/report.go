package benchmark

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/arkilian/empbench/internal/observability"
	"github.com/arkilian/empbench/pkg/types"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// PhaseResult is the measurement of one state.
type PhaseResult struct {
	State State `json:"state"`

	// Duration is the median of the phase's samples
	Duration time.Duration `json:"duration"`

	// Rows is the number of records the predicate matched
	Rows int `json:"rows"`

	Timing observability.TimingSummary `json:"timing"`

	// Records of the last execution
	Records []types.Employee `json:"-"`
}

// Report is the outcome of a benchmark run.
type Report struct {
	RunID     uuid.UUID     `json:"run_id"`
	Driver    string        `json:"driver"`
	Predicate string        `json:"predicate"`
	Rows      int64         `json:"rows"`
	Phases    []PhaseResult `json:"phases"`

	// Predicates counts how often each column was filtered on, most used first
	Predicates []observability.ColumnStats `json:"predicates"`
}

// Phase returns the result measured in state s.
func (r *Report) Phase(s State) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.State == s {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// Speedup is the NoIndex median divided by the Indexed median. ok is false
// when either phase is missing or the indexed median is zero.
func (r *Report) Speedup() (float64, bool) {
	before, ok1 := r.Phase(NoIndex)
	after, ok2 := r.Phase(Indexed)
	if !ok1 || !ok2 || after.Duration <= 0 {
		return 0, false
	}
	return float64(before.Duration) / float64(after.Duration), true
}

// Print writes the side-by-side comparison to w.
func (r *Report) Print(w io.Writer) error {
	pw := &printer{w: w}
	pw.printf("run:        %s\n", r.RunID)
	pw.printf("driver:     %s\n", r.Driver)
	pw.printf("predicate:  %s\n", r.Predicate)
	pw.printf("table rows: %s\n\n", humanize.Comma(r.Rows))

	pw.printf("%-10s %10s %12s %12s %12s %8s\n", "phase", "matched", "median", "min", "max", "samples")
	for _, p := range r.Phases {
		pw.printf("%-10s %10s %12s %12s %12s %8d\n",
			p.State,
			humanize.Comma(int64(p.Rows)),
			round(p.Duration),
			round(p.Timing.Min),
			round(p.Timing.Max),
			p.Timing.Count)
	}

	if ratio, ok := r.Speedup(); ok {
		pw.printf("\nspeedup:    %sx\n", humanize.FormatFloat("#,###.##", ratio))
	}

	if len(r.Predicates) > 0 {
		pw.printf("\npredicate columns:\n")
		for _, p := range r.Predicates {
			ops := make([]string, 0, len(p.Operators))
			for op := range p.Operators {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			for _, op := range ops {
				pw.printf("  %-12s %-5s %s\n", p.Column, op, humanize.Comma(int64(p.Operators[op])))
			}
		}
	}
	return pw.err
}

func round(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Microsecond)
	default:
		return d
	}
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
