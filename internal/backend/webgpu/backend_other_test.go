//go:build !windows

package webgpu

import (
	"testing"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/stretchr/testify/assert"
)

func TestUnavailable(t *testing.T) {
	assert.False(t, IsAvailable())
	_, err := backend.NewWithConfig("gpu", backend.DefaultSeed)
	assert.ErrorContains(t, err, "only built on windows")
}
