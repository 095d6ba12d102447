// Package parallel splits independent kernel work across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Number of worker goroutines to use.
	MinWork    int  // Minimum elements of work per goroutine.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinWork:    16 * 1024,
	}
}

// Sequential returns a Config that never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1}
}

// Range calls f(lo, hi) over disjoint ranges covering [0, n).
// costPerItem is the number of elements each item touches; small jobs run
// inline on the caller's goroutine. Range returns once every call finished.
func Range(n, costPerItem int, cfg Config, f func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers := cfg.NumWorkers
	if cfg.MinWork > 0 {
		workers = min(workers, n*max(costPerItem, 1)/cfg.MinWork)
	}
	workers = min(workers, n)
	if !cfg.Enabled || workers <= 1 {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			f(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
