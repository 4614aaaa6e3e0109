package hashset

import (
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

func BenchmarkSetIter(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapIter[int64], genKeys[int64]))
	})
	b.Run("impl=denseSet", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSetIter[int64], genKeys[int64]))
	})
}

func BenchmarkSetHasHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapHasHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkRuntimeMapHasHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapHasHit[string], genKeys[string]))
	})
	b.Run("impl=denseSet", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSetHasHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkSetHasHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkSetHasHit[string], genKeys[string]))
	})
}

func BenchmarkSetHasMiss(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapHasMiss[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapHasMiss[string], genKeys[string]))
	})
	b.Run("impl=denseSet", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSetHasMiss[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkSetHasMiss[string], genKeys[string]))
	})
}

func BenchmarkSetInsertGrow(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapInsertGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapInsertGrow[string], genKeys[string]))
	})
	b.Run("impl=denseSet", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSetInsertGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkSetInsertGrow[string], genKeys[string]))
	})
}

func BenchmarkSetInsertPreAllocate(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapInsertPreAllocate[int64], genKeys[int64]))
	})
	b.Run("impl=denseSet", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSetInsertPreAllocate[int64], genKeys[int64]))
	})
}

func BenchmarkSetInsertDelete(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapInsertDelete[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapInsertDelete[string], genKeys[string]))
	})
	b.Run("impl=denseSet", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSetInsertDelete[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkSetInsertDelete[string], genKeys[string]))
	})
}

type benchTypes interface {
	int32 | int64 | string
}

func benchSizes[T benchTypes](
	f func(b *testing.B, n int, genKeys func(start, end int) []T), genKeys func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{
		16,
		128,
		1024,
		8192,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n, genKeys) })
		}
	}
}

func genKeys[T benchTypes](start, end int) []T {
	keys := make([]T, end-start)
	for i := range keys {
		switch p := any(&keys[i]).(type) {
		case *int32:
			*p = int32(start + i)
		case *int64:
			*p = int64(start + i)
		case *string:
			*p = strconv.Itoa(start + i)
		}
	}
	return keys
}

func benchmarkRuntimeMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]struct{}, n)
	for _, k := range genKeys(0, n) {
		m[k] = struct{}{}
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var x int
	for i := 0; i < b.N; i++ {
		for range m {
			x++
		}
	}
	b.StopTimer()
	cs.Stop()
	fmt.Fprint(io.Discard, x)
}

func benchmarkSetIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	s := New[T](n)
	for _, k := range genKeys(0, n) {
		s.Insert(k)
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var x int
	for i := 0; i < b.N; i++ {
		s.All(func(int, T) bool {
			x++
			return true
		})
	}
	b.StopTimer()
	cs.Stop()
	fmt.Fprint(io.Discard, x)
}

func benchmarkRuntimeMapHasHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]struct{}, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = struct{}{}
	}
	// Regenerate the keys to defeat the builtin map's pointer-equality
	// shortcut on string comparisons.
	keys = genKeys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m[keys[i&(n-1)]]
	}
	b.StopTimer()
	cs.Stop()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkSetHasHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	s := New[T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		s.Insert(k)
	}
	keys = genKeys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		ok = s.Has(keys[i&(n-1)])
	}
	b.StopTimer()
	cs.Stop()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapHasMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]struct{})
	for _, k := range genKeys(0, n) {
		m[k] = struct{}{}
	}
	miss := genKeys(-n, 0)
	cs := perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m[miss[i%len(miss)]]
	}
	b.StopTimer()
	cs.Stop()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkSetHasMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	s := New[T](0)
	for _, k := range genKeys(0, n) {
		s.Insert(k)
	}
	miss := genKeys(-n, 0)
	cs := perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		ok = s.Has(miss[i%len(miss)])
	}
	b.StopTimer()
	cs.Stop()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapInsertGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[T]struct{})
		for _, k := range keys {
			m[k] = struct{}{}
		}
	}
	cs.Stop()
}

func benchmarkSetInsertGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := New[T](0)
		for _, k := range keys {
			s.Insert(k)
		}
	}
	cs.Stop()
}

func benchmarkRuntimeMapInsertPreAllocate[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[T]struct{}, n)
		for _, k := range keys {
			m[k] = struct{}{}
		}
	}
	cs.Stop()
}

func benchmarkSetInsertPreAllocate[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := New[T](n)
		for _, k := range keys {
			s.Insert(k)
		}
	}
	cs.Stop()
}

func benchmarkRuntimeMapInsertDelete[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]struct{}, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = struct{}{}
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		delete(m, keys[j])
		m[keys[j]] = struct{}{}
	}
	cs.Stop()
}

func benchmarkSetInsertDelete[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	s := New[T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		s.Insert(k)
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		s.Delete(keys[j])
		s.Insert(keys[j])
	}
	cs.Stop()
}
