// Package chunking decides how a 4D volume is sliced into units of parallel
// work. Given the volume bounds, a requested minimum chunk count, an optional
// memory ceiling shared by all concurrent workers, and the worker count, it
// computes a per-chunk memory budget and enumerates two complete partitions
// of the volume: one laid out for per-pixel spectrum reads and one for
// per-bin image reads.
package chunking

import (
	"errors"
	"fmt"
	"math"

	"msiconvert/internal/models"
)

// ErrInvalidConfiguration is returned when a run is parameterized with a
// non-positive worker count or a non-positive memory ceiling. It fails the
// run before any planning happens.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// CalculateMemoryInfo computes the memory budget for a conversion run.
//
// The total volume footprint assumes the fixed element width from the data
// model. The initial per-chunk estimate divides that footprint by the
// requested minimum chunk count (treated as 1 when non-positive). When a
// memory ceiling is supplied (maxMemoryGB > 0; zero means unbounded), the
// concurrently resident footprint is one chunk per worker: if that exceeds
// the ceiling, the chunk count is raised until it fits.
//
// The result guarantees MaxChunkGB*workers <= maxMemoryGB whenever a ceiling
// was supplied, and MinChunkCount is never below the caller's request.
func CalculateMemoryInfo(minChunkCount int, maxMemoryGB float64, workers int, bounds models.Bounds) (models.MemoryInfo, error) {
	if workers < 1 {
		return models.MemoryInfo{}, fmt.Errorf("%w: worker count must be at least 1, got %d",
			ErrInvalidConfiguration, workers)
	}
	if maxMemoryGB < 0 {
		return models.MemoryInfo{}, fmt.Errorf("%w: memory ceiling must be positive, got %g",
			ErrInvalidConfiguration, maxMemoryGB)
	}

	totalGB := bounds.FullChunk().ApproximateSizeGB()

	if minChunkCount <= 0 {
		minChunkCount = 1
	}

	chunkCount := minChunkCount
	chunkGB := totalGB / float64(minChunkCount)
	if maxMemoryGB > 0 && chunkGB*float64(workers) > maxMemoryGB {
		chunkCount = int(math.Ceil(totalGB / (maxMemoryGB / float64(workers))))
	}
	chunkGB = totalGB / float64(chunkCount)

	return models.MemoryInfo{
		TotalGB:       totalGB,
		MaxChunkGB:    chunkGB,
		MinChunkCount: chunkCount,
	}, nil
}

// chunkImageDimensions distributes chunksPerImage roughly evenly over the
// two spatial axes of a layer. It takes ceil(sqrt(chunksPerImage)) as the
// target per-axis division count; when one axis is smaller than that target
// the axis is left undivided and the other axis absorbs the full division
// factor. When chunksPerImage exceeds the pixel count the subdivision is
// capped at the pixel grid and both axes get extent 1.
//
// This is a greedy heuristic, not a globally optimal split; ties shrink
// width before height.
func chunkImageDimensions(width, height, chunksPerImage int) (widthPerChunk, heightPerChunk int) {
	if chunksPerImage > width*height {
		return 1, 1
	}
	perDimension := int(math.Ceil(math.Sqrt(float64(chunksPerImage))))
	if width < perDimension {
		// width*width < chunksPerImage <= width*height, so height covers
		// the residual factor on its own
		heightPerChunk = max(1, int(math.Floor(float64(height)/(float64(chunksPerImage)/float64(width)))))
		return 1, heightPerChunk
	}
	if height < perDimension {
		widthPerChunk = max(1, int(math.Floor(float64(width)/(float64(chunksPerImage)/float64(height)))))
		return widthPerChunk, 1
	}
	return width / perDimension, height / perDimension
}

// enumerateChunks walks the Cartesian product of axis-aligned slabs covering
// the full volume, clamping the final slab on each axis to the true bound.
// The order is layer outermost, then width, then height, then spectra
// innermost. This order is what the executor receives, so it keys degenerate
// chunk skipping and chunk file naming; it must stay stable across runs.
func enumerateChunks(bounds models.Bounds, layersPerChunk, widthPerChunk, heightPerChunk, spectraPerChunk int) []models.ChunkBounds {
	var chunks []models.ChunkBounds
	for layerStart := 0; layerStart < bounds.Layers; layerStart += layersPerChunk {
		layerEnd := min(layerStart+layersPerChunk, bounds.Layers)
		for widthStart := 0; widthStart < bounds.Width; widthStart += widthPerChunk {
			widthEnd := min(widthStart+widthPerChunk, bounds.Width)
			for heightStart := 0; heightStart < bounds.Height; heightStart += heightPerChunk {
				heightEnd := min(heightStart+heightPerChunk, bounds.Height)
				for spectraStart := 0; spectraStart < bounds.SpectrumLength; spectraStart += spectraPerChunk {
					spectraEnd := min(spectraStart+spectraPerChunk, bounds.SpectrumLength)
					chunks = append(chunks, models.ChunkBounds{
						Layer:   models.Range{Start: layerStart, Stop: layerEnd},
						Width:   models.Range{Start: widthStart, Stop: widthEnd},
						Height:  models.Range{Start: heightStart, Stop: heightEnd},
						Spectra: models.Range{Start: spectraStart, Stop: spectraEnd},
					})
				}
			}
		}
	}
	return chunks
}

// chunkImagesThenSpectra builds the layout for the pixel-major output:
// the spatial grid is solved first, and whatever division budget remains is
// pushed onto the spectral axis.
func chunkImagesThenSpectra(bounds models.Bounds, chunksPerLayer, layersPerChunk int) []models.ChunkBounds {
	widthPerChunk, heightPerChunk := chunkImageDimensions(bounds.Width, bounds.Height, chunksPerLayer)

	chunksPerImage := (float64(bounds.Width) / float64(widthPerChunk)) *
		(float64(bounds.Height) / float64(heightPerChunk))
	chunksPerSpectrum := math.Ceil(float64(chunksPerLayer) / chunksPerImage)
	spectraPerChunk := max(1, int(math.Floor(float64(bounds.SpectrumLength)/chunksPerSpectrum)))

	return enumerateChunks(bounds, layersPerChunk, widthPerChunk, heightPerChunk, spectraPerChunk)
}

// chunkSpectraThenImages builds the layout for the bin-major output:
// the spectral axis is divided first, and the residual budget goes to the
// spatial grid.
func chunkSpectraThenImages(bounds models.Bounds, chunksPerLayer, layersPerChunk int) []models.ChunkBounds {
	spectraPerChunk := max(1, bounds.SpectrumLength/chunksPerLayer)
	chunksPerSpectrum := float64(bounds.SpectrumLength) / float64(spectraPerChunk)
	chunksPerImage := int(math.Ceil(float64(chunksPerLayer) / chunksPerSpectrum))

	widthPerChunk, heightPerChunk := chunkImageDimensions(bounds.Width, bounds.Height, chunksPerImage)

	return enumerateChunks(bounds, layersPerChunk, widthPerChunk, heightPerChunk, spectraPerChunk)
}

// CalculateChunks solves the memory budget and enumerates both chunk
// layouts for a volume. The two layouts partition the same volume to the
// same total chunk count but with different axis priority, because the two
// output representations have different hot-read axes.
//
// The returned spectraChunks feed the per-pixel spectrum output and the
// returned imageChunks feed the per-bin image output.
func CalculateChunks(minChunkCount int, maxMemoryGB float64, workers int, bounds models.Bounds) (spectraChunks, imageChunks []models.ChunkBounds, info models.MemoryInfo, err error) {
	info, err = CalculateMemoryInfo(minChunkCount, maxMemoryGB, workers, bounds)
	if err != nil {
		return nil, nil, models.MemoryInfo{}, err
	}

	// Layer granularity: spread whole layers across chunks while the chunk
	// count allows it, otherwise subdivide within single layers.
	var layersPerChunk, chunksPerLayer int
	if info.MinChunkCount < bounds.Layers {
		layersPerChunk = max(1, bounds.Layers/info.MinChunkCount)
		chunksPerLayer = 1
	} else {
		layersPerChunk = 1
		chunksPerLayer = (info.MinChunkCount + bounds.Layers - 1) / bounds.Layers
	}

	spectraChunks = chunkImagesThenSpectra(bounds, chunksPerLayer, layersPerChunk)
	imageChunks = chunkSpectraThenImages(bounds, chunksPerLayer, layersPerChunk)

	return spectraChunks, imageChunks, info, nil
}
