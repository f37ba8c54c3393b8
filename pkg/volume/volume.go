// Package volume provides the storage contracts the conversion pipeline
// runs against: a read-only view of a 4D source volume addressable by chunk
// bounds, a write target for the output volume, an in-memory implementation
// of both, a seekable raw file store for windowed access to volumes too
// large to load, and standalone HDF5 container files for staging per-chunk
// results on disk.
package volume

import (
	"fmt"

	"msiconvert/internal/models"
)

// ReadView is a read-only view of a 4D volume. ReadRegion returns a dense
// row-major array covering exactly the given chunk bounds, with the layer
// axis outermost and the spectral axis innermost.
type ReadView interface {
	Bounds() models.Bounds
	ReadRegion(c models.ChunkBounds) ([]int32, error)
}

// WriteTarget accepts dense sub-arrays and writes them into the
// corresponding region of a pre-sized output volume. Callers writing
// concurrently must hand each writer a disjoint region; implementations do
// not lock.
type WriteTarget interface {
	Bounds() models.Bounds
	WriteRegion(c models.ChunkBounds, data []int32) error
}

// checkRegion validates that a chunk lies inside the volume bounds.
func checkRegion(b models.Bounds, c models.ChunkBounds) error {
	ranges := [4]struct {
		name  string
		r     models.Range
		bound int
	}{
		{"layer", c.Layer, b.Layers},
		{"width", c.Width, b.Width},
		{"height", c.Height, b.Height},
		{"spectra", c.Spectra, b.SpectrumLength},
	}
	for _, ax := range ranges {
		if ax.r.Start < 0 || ax.r.Start > ax.r.Stop || ax.r.Stop > ax.bound {
			return fmt.Errorf("%s range %d:%d outside bound %d", ax.name, ax.r.Start, ax.r.Stop, ax.bound)
		}
	}
	return nil
}

// MemoryVolume is a dense in-memory 4D volume backed by a single int32
// buffer in row-major order. It serves as the shared output buffer for
// memory-backed execution: concurrent WriteRegion calls over pairwise
// disjoint chunks touch disjoint slices of the buffer, so no locking is
// needed or used.
type MemoryVolume struct {
	bounds models.Bounds
	data   []int32
}

// NewMemoryVolume allocates a zero-filled volume of the given bounds.
func NewMemoryVolume(bounds models.Bounds) *MemoryVolume {
	return &MemoryVolume{
		bounds: bounds,
		data:   make([]int32, bounds.ElementCount()),
	}
}

// Bounds returns the full extent of the volume.
func (v *MemoryVolume) Bounds() models.Bounds {
	return v.bounds
}

// Data exposes the backing buffer. The layout is row-major with the layer
// axis outermost and the spectral axis innermost.
func (v *MemoryVolume) Data() []int32 {
	return v.data
}

// elementIndex returns the buffer offset of element (layer, x, y, bin).
func (v *MemoryVolume) elementIndex(layer, x, y, bin int) int64 {
	return ((int64(layer)*int64(v.bounds.Width)+int64(x))*int64(v.bounds.Height)+
		int64(y))*int64(v.bounds.SpectrumLength) + int64(bin)
}

// ReadRegion copies the chunk's region out of the volume into a fresh
// dense array.
func (v *MemoryVolume) ReadRegion(c models.ChunkBounds) ([]int32, error) {
	if err := checkRegion(v.bounds, c); err != nil {
		return nil, fmt.Errorf("read region %s: %w", c, err)
	}

	out := make([]int32, c.ElementCount())
	run := c.SpectrumLength()
	pos := 0
	for layer := c.Layer.Start; layer < c.Layer.Stop; layer++ {
		for x := c.Width.Start; x < c.Width.Stop; x++ {
			for y := c.Height.Start; y < c.Height.Stop; y++ {
				src := v.elementIndex(layer, x, y, c.Spectra.Start)
				copy(out[pos:pos+run], v.data[src:src+int64(run)])
				pos += run
			}
		}
	}
	return out, nil
}

// WriteRegion copies a dense array into the chunk's region of the volume.
func (v *MemoryVolume) WriteRegion(c models.ChunkBounds, data []int32) error {
	if err := checkRegion(v.bounds, c); err != nil {
		return fmt.Errorf("write region %s: %w", c, err)
	}
	if int64(len(data)) != c.ElementCount() {
		return fmt.Errorf("write region %s: data has %d elements, region has %d",
			c, len(data), c.ElementCount())
	}

	run := c.SpectrumLength()
	pos := 0
	for layer := c.Layer.Start; layer < c.Layer.Stop; layer++ {
		for x := c.Width.Start; x < c.Width.Stop; x++ {
			for y := c.Height.Start; y < c.Height.Stop; y++ {
				dst := v.elementIndex(layer, x, y, c.Spectra.Start)
				copy(v.data[dst:dst+int64(run)], data[pos:pos+run])
				pos += run
			}
		}
	}
	return nil
}
