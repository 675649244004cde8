package fit

// MemEstimate sizes the memory requirements of the fitting stages from the
// scan dimensions, in gigabytes. Tools are assumed to coerce voxel data to
// 8-byte floats.
type MemEstimate struct {
	FileSizeGB  float64
	ResampledGB float64
	LargeMemGB  float64
}

// EstimateMem derives memory figures from a scan's voxel grid shape
// (x, y, z, t). Returns the estimate and the series length. A shape with
// fewer than four dimensions is treated as a single volume.
func EstimateMem(shape []int) (MemEstimate, int) {
	nvox := 1
	for _, d := range shape {
		nvox *= d
	}
	tlen := 1
	if len(shape) >= 4 {
		tlen = shape[len(shape)-1]
	}

	sizeGB := 8 * float64(nvox) / (1 << 30)
	timeFactor := float64(tlen) / 100
	if timeFactor < 1 {
		timeFactor = 1
	}
	return MemEstimate{
		FileSizeGB:  sizeGB,
		ResampledGB: sizeGB * 4,
		LargeMemGB:  sizeGB * (timeFactor + 4),
	}, tlen
}

// ShapeFromMetadata extracts a scan's voxel grid shape from sidecar
// metadata (the "Shape" key, a list of numbers). Returns nil when absent.
func ShapeFromMetadata(meta map[string]any) []int {
	raw, ok := meta["Shape"].([]any)
	if !ok {
		return nil
	}
	shape := make([]int, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		shape = append(shape, int(f))
	}
	return shape
}
