// Package generator produces synthetic employee batches for bulk loading and
// for the index benchmark.
package generator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/arkilian/empbench/pkg/types"
)

// Defaults of the generated distribution.
const (
	DefaultMarker = "F"
	MinBirthYear  = 1950
	MaxBirthYear  = 2000

	// Day is capped so every month/day combination is a valid date
	MaxBirthDay = 28
)

// DefaultNames is the first-name pool. No entry starts with DefaultMarker, so
// random records never match the targeted predicate.
var DefaultNames = []string{"Ivan", "Dmitry", "Alexei"}

// DefaultSurnames is the surname pool; two surnames are drawn per record.
// Surnames never lead a full name, so "Fedorov" cannot match the predicate.
var DefaultSurnames = []string{"Ivanov", "Fedorov", "Sidorov", "Popov"}

// Generator draws records from fixed name pools. It is not safe for
// concurrent use.
type Generator struct {
	rng      *rand.Rand
	names    []string
	surnames []string
	marker   string
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes the generated sequence reproducible. A zero seed keeps the
// clock-seeded source.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		if seed != 0 {
			g.rng = rand.New(rand.NewSource(seed))
		}
	}
}

// WithNames replaces the first-name pool. Empty pools are ignored.
func WithNames(names ...string) Option {
	return func(g *Generator) {
		if len(names) > 0 {
			g.names = names
		}
	}
}

// WithSurnames replaces the surname pool. Empty pools are ignored.
func WithSurnames(surnames ...string) Option {
	return func(g *Generator) {
		if len(surnames) > 0 {
			g.surnames = surnames
		}
	}
}

// WithMarker replaces the prefix that marks targeted records.
func WithMarker(marker string) Option {
	return func(g *Generator) {
		if marker != "" {
			g.marker = marker
		}
	}
}

// New creates a generator with the default pools and a clock-seeded source.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		names:    DefaultNames,
		surnames: DefaultSurnames,
		marker:   DefaultMarker,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Marker returns the prefix carried by every targeted record.
func (g *Generator) Marker() string {
	return g.marker
}

// Random returns count uniformly random tuples. Non-positive counts yield an
// empty batch.
func (g *Generator) Random(count int) types.Batch {
	if count <= 0 {
		return types.Batch{}
	}
	batch := make(types.Batch, count)
	for i := range batch {
		gender := types.Male
		if g.rng.Intn(2) == 1 {
			gender = types.Female
		}
		batch[i] = g.tuple("", gender)
	}
	return batch
}

// Targeted returns count tuples that all match
// full_name LIKE marker% AND gender = 'Male'.
func (g *Generator) Targeted(count int) types.Batch {
	if count <= 0 {
		return types.Batch{}
	}
	batch := make(types.Batch, count)
	for i := range batch {
		batch[i] = g.tuple(g.marker, types.Male)
	}
	return batch
}

// Combined returns the random batch followed by the targeted batch.
func (g *Generator) Combined(randomCount, targetedCount int) types.Batch {
	random := g.Random(randomCount)
	targeted := g.Targeted(targetedCount)

	batch := make(types.Batch, 0, len(random)+len(targeted))
	batch = append(batch, random...)
	return append(batch, targeted...)
}

func (g *Generator) tuple(prefix string, gender types.Gender) types.Tuple {
	first := g.names[g.rng.Intn(len(g.names))]
	last1 := g.surnames[g.rng.Intn(len(g.surnames))]
	last2 := g.surnames[g.rng.Intn(len(g.surnames))]

	year := MinBirthYear + g.rng.Intn(MaxBirthYear-MinBirthYear+1)
	month := 1 + g.rng.Intn(12)
	day := 1 + g.rng.Intn(MaxBirthDay)

	return types.Tuple{
		FullName:  prefix + first + " " + last1 + " " + last2,
		BirthDate: fmt.Sprintf("%d-%d-%d", year, month, day),
		Gender:    string(gender),
	}
}
