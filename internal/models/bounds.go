// Package models defines the shared data model for chunked volume
// conversion: the extent of a full 4D dataset, the axis-aligned sub-regions
// used as units of parallel work, and the memory report that parameterizes
// chunk planning.
package models

import "fmt"

// BytesPerElement is the fixed storage width of a single volume element.
// All instrument datasets handled by this tool store int32 intensities,
// so the memory model assumes 4 bytes per element throughout.
const BytesPerElement = 4

const bytesPerGB = 1 << 30

// Bounds describes the full extent of a 4D volume:
// layers x width x height x spectral bins.
// A Bounds is immutable once constructed and lives for the whole
// conversion run.
type Bounds struct {
	// Layers is the number of stacked acquisition layers (z-axis)
	Layers int

	// Width is the number of pixels along the x-axis of each layer
	Width int

	// Height is the number of pixels along the y-axis of each layer
	Height int

	// SpectrumLength is the number of spectral bins recorded per pixel
	SpectrumLength int
}

// NewBounds constructs a Bounds after validating that all four extents
// are positive.
func NewBounds(layers, width, height, spectrumLength int) (Bounds, error) {
	b := Bounds{
		Layers:         layers,
		Width:          width,
		Height:         height,
		SpectrumLength: spectrumLength,
	}
	if layers <= 0 || width <= 0 || height <= 0 || spectrumLength <= 0 {
		return Bounds{}, fmt.Errorf("all bounds must be positive, got %v", b.Shape())
	}
	return b, nil
}

// Shape returns the four extents in storage order:
// (layers, width, height, spectrum length).
func (b Bounds) Shape() [4]int {
	return [4]int{b.Layers, b.Width, b.Height, b.SpectrumLength}
}

// ElementCount returns the total number of elements in the volume.
func (b Bounds) ElementCount() int64 {
	return int64(b.Layers) * int64(b.Width) * int64(b.Height) * int64(b.SpectrumLength)
}

// FullChunk returns the ChunkBounds covering the entire volume.
func (b Bounds) FullChunk() ChunkBounds {
	return ChunkBounds{
		Layer:   Range{0, b.Layers},
		Width:   Range{0, b.Width},
		Height:  Range{0, b.Height},
		Spectra: Range{0, b.SpectrumLength},
	}
}

// Range is a half-open integer interval [Start, Stop) along one axis.
type Range struct {
	Start int
	Stop  int
}

// Extent returns the number of indices covered by the range.
func (r Range) Extent() int {
	return r.Stop - r.Start
}

// ChunkBounds is an axis-aligned sub-region of a volume, expressed as four
// half-open ranges. It is the unit of parallel work and the unit of output
// merge. Two ChunkBounds are equal when their eight range endpoints are
// equal, so values can be compared directly and used as map keys.
type ChunkBounds struct {
	Layer   Range
	Width   Range
	Height  Range
	Spectra Range
}

// LayerCount returns the number of layers spanned by the chunk.
func (c ChunkBounds) LayerCount() int {
	return c.Layer.Extent()
}

// LayerWidth returns the chunk's extent along the x-axis.
func (c ChunkBounds) LayerWidth() int {
	return c.Width.Extent()
}

// LayerHeight returns the chunk's extent along the y-axis.
func (c ChunkBounds) LayerHeight() int {
	return c.Height.Extent()
}

// SpectrumLength returns the chunk's extent along the spectral axis.
func (c ChunkBounds) SpectrumLength() int {
	return c.Spectra.Extent()
}

// Shape returns the chunk's four extents in storage order.
func (c ChunkBounds) Shape() [4]int {
	return [4]int{c.LayerCount(), c.LayerWidth(), c.LayerHeight(), c.SpectrumLength()}
}

// ElementCount returns the number of elements covered by the chunk.
func (c ChunkBounds) ElementCount() int64 {
	return int64(c.LayerCount()) * int64(c.LayerWidth()) *
		int64(c.LayerHeight()) * int64(c.SpectrumLength())
}

// ApproximateSizeGB returns the chunk's in-memory footprint in gigabytes,
// assuming the fixed element width of BytesPerElement.
func (c ChunkBounds) ApproximateSizeGB() float64 {
	return float64(c.LayerCount()) * float64(c.LayerWidth()) *
		float64(c.LayerHeight()) * float64(c.SpectrumLength()) *
		BytesPerElement / bytesPerGB
}

// Degenerate reports whether the chunk carries no work because rounding
// during planning produced an empty layer or spectral slice. Degenerate
// chunks are valid values; executors skip them without producing output.
func (c ChunkBounds) Degenerate() bool {
	return c.LayerCount() == 0 || c.SpectrumLength() == 0
}

// String formats the chunk as its four ranges, used in worker failure logs.
func (c ChunkBounds) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d, %d:%d, %d:%d]",
		c.Layer.Start, c.Layer.Stop,
		c.Width.Start, c.Width.Stop,
		c.Height.Start, c.Height.Stop,
		c.Spectra.Start, c.Spectra.Stop)
}

// MemoryInfo reports the memory budget computed for a conversion run.
// It is produced once per run and consumed only to parameterize chunk
// planning; it is never mutated afterwards.
type MemoryInfo struct {
	// TotalGB is the in-memory size of the full volume in gigabytes
	TotalGB float64

	// MaxChunkGB is the per-chunk memory budget in gigabytes
	MaxChunkGB float64

	// MinChunkCount is the number of chunks the volume will be split into.
	// It is never below the chunk count requested by the caller.
	MinChunkCount int
}
