package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/arkilian/empbench/internal/errors"
	"github.com/arkilian/empbench/internal/generator"
	"github.com/arkilian/empbench/internal/schema"
	"github.com/arkilian/empbench/internal/storage"
	"github.com/arkilian/empbench/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqliteDrivers = []string{"sqlite3", "sqlite"}

// newTestRepository opens a fresh SQLite file with the employees table created.
func newTestRepository(t testing.TB, driver string, opts ...Option) *Repository {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "employees.db")
	db, dialect, err := storage.Open(ctx, storage.Options{Driver: driver, DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := New(db, dialect, schema.EmployeeMapping(), opts...)
	require.NoError(t, err)
	require.NoError(t, repo.CreateSchema(ctx))
	return repo
}

func TestNew_InvalidMapping(t *testing.T) {
	m := schema.EmployeeMapping()
	m.Table = "employees; DROP TABLE x"

	_, err := New(nil, nil, m)
	require.Error(t, err)
	assert.True(t, apperrors.IsSchema(err))
}

func TestNew_ChunkSizeCappedByBindLimit(t *testing.T) {
	dialect, err := storage.DialectFor("sqlite3")
	require.NoError(t, err)

	repo, err := New(nil, dialect, schema.EmployeeMapping(), WithChunkSize(1000000))
	require.NoError(t, err)
	assert.Equal(t, 32766/3, repo.ChunkSize())

	repo, err = New(nil, dialect, schema.EmployeeMapping(), WithChunkSize(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, repo.ChunkSize())
}

func TestCreateSchema_Idempotent(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, driver)

			_, err := repo.Add(ctx, "Ivan Popov Ivanov", "1980-5-17", "Male")
			require.NoError(t, err)

			require.NoError(t, repo.CreateSchema(ctx))

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n, "re-creating the schema must keep existing rows")
		})
	}
}

func TestAdd_ListAllOrdered(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, driver)

			id1, err := repo.Add(ctx, "Sidorov Ivan", "1990-3-2", "Male")
			require.NoError(t, err)
			id2, err := repo.Add(ctx, "Ivanova Anna", "1985-12-31", "Female")
			require.NoError(t, err)
			id3, err := repo.Add(ctx, "Ivanova Anna", "1970-01-01", "Female")
			require.NoError(t, err)
			assert.Less(t, id1, id2)
			assert.Less(t, id2, id3)

			all, err := repo.ListAllOrdered(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)

			// Ties on full_name fall back to insertion order
			assert.Equal(t, id2, all[0].ID)
			assert.Equal(t, id3, all[1].ID)
			assert.Equal(t, id1, all[2].ID)

			assert.Equal(t, "Sidorov Ivan", all[2].FullName)
			assert.Equal(t, types.Male, all[2].Gender)
			assert.Equal(t, "1990-03-02", types.FormatDate(all[2].BirthDate))
			assert.Equal(t, "1985-12-31", types.FormatDate(all[0].BirthDate))

			asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
			assert.Equal(t, 33, all[2].Age(asOf))
			assert.Equal(t, 38, all[0].Age(asOf))
		})
	}
}

func TestAdd_RejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, "sqlite3")

	tests := []struct {
		name      string
		fullName  string
		birthDate string
		gender    string
		code      string
	}{
		{"empty name", " ", "1990-1-1", "Male", apperrors.CodeEmptyName},
		{"invalid month", "Ivan", "1990-13-01", "Male", apperrors.CodeInvalidDate},
		{"invalid day", "Ivan", "2023-02-29", "Male", apperrors.CodeInvalidDate},
		{"not a date", "Ivan", "yesterday", "Male", apperrors.CodeInvalidDate},
		{"lowercase gender", "Ivan", "1990-1-1", "male", apperrors.CodeInvalidGender},
		{"unknown gender", "Ivan", "1990-1-1", "Other", apperrors.CodeInvalidGender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Add(ctx, tt.fullName, tt.birthDate, tt.gender)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkInsert_PersistsEveryTuple(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, driver)

			gen := generator.New(generator.WithSeed(42))
			batch := gen.Combined(2500, 100)

			written, err := repo.BulkInsert(ctx, batch)
			require.NoError(t, err)
			assert.Equal(t, int64(2600), written)

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2600), n)
		})
	}
}

func TestBulkInsert_ChunkBoundaries(t *testing.T) {
	ctx := context.Background()

	for _, size := range []int{1, 6, 7, 8, 14, 15, 50} {
		repo := newTestRepository(t, "sqlite3", WithChunkSize(7))
		batch := generator.New(generator.WithSeed(int64(size))).Random(size)

		written, err := repo.BulkInsert(ctx, batch)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, int64(size), written, "size %d", size)

		all, err := repo.ListAllOrdered(ctx)
		require.NoError(t, err)
		require.Len(t, all, size)

		// Every generated tuple comes back once
		want := make(map[string]int)
		for _, tup := range batch {
			date, err := types.ParseBirthDate(tup.BirthDate)
			require.NoError(t, err)
			want[tup.FullName+"|"+types.FormatDate(date)+"|"+tup.Gender]++
		}
		for _, e := range all {
			want[e.FullName+"|"+types.FormatDate(e.BirthDate)+"|"+string(e.Gender)]--
		}
		for k, v := range want {
			assert.Zero(t, v, "size %d: %s", size, k)
		}
	}
}

func TestBulkInsert_Empty(t *testing.T) {
	repo := newTestRepository(t, "sqlite3")

	written, err := repo.BulkInsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, written)
}

func TestBulkInsert_MalformedTupleWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, "sqlite3", WithChunkSize(2))

	batch := generator.New(generator.WithSeed(7)).Random(5)
	batch[3].BirthDate = "1990-13-01"

	_, err := repo.BulkInsert(ctx, batch)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, apperrors.CodeInvalidDate, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "tuple 3")
	assert.Contains(t, err.Error(), "1990-13-01")

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkInsert_StoreFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, "sqlite3", WithChunkSize(3))

	batch := generator.New(generator.WithSeed(9)).Random(10)

	// Break the table after validation can no longer catch it
	_, err := repo.db.ExecContext(ctx, "DROP TABLE employees")
	require.NoError(t, err)

	_, err = repo.BulkInsert(ctx, batch)
	require.Error(t, err)
	assert.True(t, apperrors.IsStore(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 10, appErr.Details["batch_size"])
}

func TestBulkInsert_IgnoresCancellation(t *testing.T) {
	repo := newTestRepository(t, "sqlite3", WithChunkSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	written, err := repo.BulkInsert(ctx, generator.New(generator.WithSeed(3)).Random(35))
	require.NoError(t, err)
	assert.Equal(t, int64(35), written)
}

func TestQueryByPredicate_TargetedOnlyStore(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, driver)

			gen := generator.New(generator.WithSeed(11))
			_, err := repo.BulkInsert(ctx, gen.Targeted(25))
			require.NoError(t, err)

			found, err := repo.QueryByPredicate(ctx, "F", "Male")
			require.NoError(t, err)
			assert.Len(t, found, 25)
			for _, e := range found {
				assert.True(t, strings.HasPrefix(e.FullName, "F"))
				assert.Equal(t, types.Male, e.Gender)
			}
		})
	}
}

func TestQueryByPredicate_MatchesExactlyTheTargetedRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, "sqlite3")

	gen := generator.New(generator.WithSeed(5))
	_, err := repo.BulkInsert(ctx, gen.Combined(3000, 40))
	require.NoError(t, err)

	// Near misses
	_, err = repo.Add(ctx, "FIvan Popov Popov", "1990-1-1", "Female")
	require.NoError(t, err)
	_, err = repo.Add(ctx, "fIvan Popov Popov", "1990-1-1", "Male")
	require.NoError(t, err)
	_, err = repo.Add(ctx, "Ivan F Popov", "1990-1-1", "Male")
	require.NoError(t, err)

	found, err := repo.QueryByPredicate(ctx, "F", "Male")
	require.NoError(t, err)
	assert.Len(t, found, 40)

	female, err := repo.QueryByPredicate(ctx, "F", "Female")
	require.NoError(t, err)
	require.Len(t, female, 1)
	assert.Equal(t, "FIvan Popov Popov", female[0].FullName)
}

func TestQueryByPredicate_PrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, "sqlite3")

	for _, name := range []string{"F*oo", "Foo", "F[1]", "F1", "F?a", "Fa", "F%x", "F_y"} {
		_, err := repo.Add(ctx, name, "1990-1-1", "Male")
		require.NoError(t, err)
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"F*", []string{"F*oo"}},
		{"F[", []string{"F[1]"}},
		{"F?", []string{"F?a"}},
		{"F%", []string{"F%x"}},
		{"F_", []string{"F_y"}},
		{"Fo", []string{"Foo"}},
	}

	for _, tt := range tests {
		found, err := repo.QueryByPredicate(ctx, tt.prefix, "Male")
		require.NoError(t, err, tt.prefix)

		names := make([]string, 0, len(found))
		for _, e := range found {
			names = append(names, e.FullName)
		}
		assert.ElementsMatch(t, tt.want, names, "prefix %q", tt.prefix)
	}
}

func TestQueryByPredicate_InvalidGender(t *testing.T) {
	repo := newTestRepository(t, "sqlite3")

	_, err := repo.QueryByPredicate(context.Background(), "F", "M")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, apperrors.CodeInvalidGender, apperrors.GetCode(err))
}

func TestQueryByPredicate_EmptyStore(t *testing.T) {
	repo := newTestRepository(t, "sqlite3")

	found, err := repo.QueryByPredicate(context.Background(), "F", "Male")
	require.NoError(t, err)
	assert.Empty(t, found)
}
