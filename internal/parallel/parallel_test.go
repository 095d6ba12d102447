package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeCoversEveryItemOnce(t *testing.T) {
	cfgs := map[string]Config{
		"default":    DefaultConfig(),
		"sequential": Sequential(),
		"eager":      {Enabled: true, NumWorkers: 4, MinWork: 1},
	}
	for name, cfg := range cfgs {
		t.Run(name, func(t *testing.T) {
			const n = 1003
			counts := make([]int32, n)
			Range(n, 1, cfg, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&counts[i], 1)
				}
			})
			for i, c := range counts {
				assert.Equal(t, int32(1), c, "item %d", i)
			}
		})
	}
}

func TestRangeSmallJobRunsInline(t *testing.T) {
	var calls int
	Range(10, 1, Config{Enabled: true, NumWorkers: 8, MinWork: 1024}, func(lo, hi int) {
		calls++
		assert.Equal(t, 0, lo)
		assert.Equal(t, 10, hi)
	})
	assert.Equal(t, 1, calls)
}

func TestRangeEmpty(t *testing.T) {
	Range(0, 1, DefaultConfig(), func(_, _ int) {
		t.Fatal("f must not be called for n == 0")
	})
}
