package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateMem(t *testing.T) {
	t.Parallel()

	// 64x64x32 voxels over 200 frames at 8 bytes each.
	mem, tlen := EstimateMem([]int{64, 64, 32, 200})

	assert.Equal(t, 200, tlen)
	sizeGB := 8 * float64(64*64*32*200) / (1 << 30)
	assert.InDelta(t, sizeGB, mem.FileSizeGB, 1e-9)
	assert.InDelta(t, sizeGB*4, mem.ResampledGB, 1e-9)
	assert.InDelta(t, sizeGB*(2.0+4), mem.LargeMemGB, 1e-9)
}

func TestEstimateMem_ShortSeries(t *testing.T) {
	t.Parallel()

	// Below 100 frames the time factor clamps to 1.
	mem, tlen := EstimateMem([]int{64, 64, 32, 50})
	assert.Equal(t, 50, tlen)
	assert.InDelta(t, mem.FileSizeGB*5, mem.LargeMemGB, 1e-9)

	// A 3-D image counts as a single volume.
	_, tlen = EstimateMem([]int{64, 64, 32})
	assert.Equal(t, 1, tlen)
}

func TestShapeFromMetadata(t *testing.T) {
	t.Parallel()

	meta := map[string]any{"Shape": []any{64.0, 64.0, 32.0, 200.0}}
	assert.Equal(t, []int{64, 64, 32, 200}, ShapeFromMetadata(meta))

	assert.Nil(t, ShapeFromMetadata(map[string]any{}))
	assert.Nil(t, ShapeFromMetadata(map[string]any{"Shape": []any{"x"}}))
}
