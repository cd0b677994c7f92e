package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/arkilian/empbench/internal/generator"
)

func BenchmarkBulkInsert(b *testing.B) {
	for _, chunk := range []int{1, 100, 1000} {
		b.Run(fmt.Sprintf("chunk=%d", chunk), func(b *testing.B) {
			batch := generator.New(generator.WithSeed(1)).Random(5000)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				repo := newTestRepository(b, "sqlite3", WithChunkSize(chunk))
				b.StartTimer()

				if _, err := repo.BulkInsert(context.Background(), batch); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkQueryByPredicate(b *testing.B) {
	ctx := context.Background()
	repo := newTestRepository(b, "sqlite3")
	if _, err := repo.BulkInsert(ctx, generator.New(generator.WithSeed(1)).Combined(50000, 100)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := repo.QueryByPredicate(ctx, "F", "Male"); err != nil {
			b.Fatal(err)
		}
	}
}
