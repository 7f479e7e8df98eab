//go:build opencl

package opencl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturnedIDsCapped(t *testing.T) {
	tests := []struct {
		total uint32
		want  int
	}{
		{0, 0},
		{3, 3},
		{maxIDs, maxIDs},
		{maxIDs + 5, maxIDs},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, returned(tt.total), "total %d", tt.total)
	}
}
