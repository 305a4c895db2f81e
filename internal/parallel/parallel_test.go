package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_EachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 5}

	hits := make([]int32, 101)
	For(len(hits), func(i int) {
		atomic.AddInt32(&hits[i], 1)
	}, cfg)

	for i, h := range hits {
		if h != 1 {
			t.Errorf("index %d visited %d times", i, h)
		}
	}
}

func TestForPoses(t *testing.T) {
	cfg := DefaultConfig()

	batch, seqLen := 4, 130
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, seqLen)
	}

	ForPoses(batch, seqLen, func(b, l int) {
		results[b][l] = true
	}, cfg)

	for b := 0; b < batch; b++ {
		for l := 0; l < seqLen; l++ {
			if !results[b][l] {
				t.Errorf("Missing result at [%d][%d]", b, l)
			}
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Sequential()

	order := make([]int, 0, 10)
	For(10, func(i int) {
		order = append(order, i)
	}, cfg)

	for i, v := range order {
		if v != i {
			t.Fatalf("sequential order broken at %d: %v", i, order)
		}
	}
}

func BenchmarkFor(b *testing.B) {
	n := 128 * 64

	b.Run("parallel", func(b *testing.B) {
		cfg := DefaultConfig()
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfg := Sequential()
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				sum += int64(j)
			}, cfg)
		}
	})
}
