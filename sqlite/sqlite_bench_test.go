package sqlite_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/docsrs/sqlite"
	"github.com/stretchr/testify/require"
)

// BenchmarkSaveResult compares saving snapshots whose resources changed
// against snapshots that only moved their fetch time.
func BenchmarkSaveResult(b *testing.B) {
	b.Run("changed", func(b *testing.B) {
		benchmarkSaveResult(b, true)
	})

	b.Run("unchanged", func(b *testing.B) {
		benchmarkSaveResult(b, false)
	})
}

func benchmarkSaveResult(b *testing.B, changed bool) {
	b.Helper()

	dbPath := filepath.Join(b.TempDir(), "bench.db")
	db := sqlite.NewDB(dbPath)
	require.NoError(b, db.Open())
	defer func() {
		db.Close()
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")
	}()

	ctx := context.Background()
	store := sqlite.NewResultStore(db)

	names := make([]string, 200)
	for i := range names {
		names[i] = fmt.Sprintf("Item%d", i)
	}
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		result := testResult("bench", base.Add(time.Duration(i)*time.Second), names...)
		if changed {
			result.Resources[0].Description = fmt.Sprintf("revision %d", i)
		}
		if err := store.SaveResult(ctx, result); err != nil {
			b.Fatal(err)
		}
	}
}
