package pipeline

import (
	"fmt"
	"os"
	"time"

	"msiconvert/internal/models"
	"msiconvert/pkg/chunking"
	"msiconvert/pkg/progress"
	"msiconvert/pkg/volume"
)

// Names of the two conversion passes. Each pass gets its own chunk layout
// because the two output representations have different hot-read axes.
const (
	SpectraPass = "spectra"
	ImagesPass  = "images"
)

// Params holds the conversion configuration.
type Params struct {
	// InputFile is the source raw volume file
	InputFile string

	// SpectraOutputFile receives the pixel-major output volume
	SpectraOutputFile string

	// ImagesOutputFile receives the bin-major output volume
	ImagesOutputFile string

	// MinChunkCount is the requested minimum number of chunks; values
	// below 1 are treated as 1
	MinChunkCount int

	// MaxMemoryGB bounds the memory resident across all concurrent
	// workers; 0 means unbounded
	MaxMemoryGB float64

	// Workers is the number of concurrent workers (goroutines or worker
	// processes depending on mode)
	Workers int

	// OnDisk selects disk-backed execution: isolated worker processes
	// staging chunk files in ScratchDir, merged afterwards. Off means
	// memory-backed execution against a shared in-process buffer.
	OnDisk bool

	// ScratchDir holds job manifests and staged chunk files in disk mode.
	// Reusing a scratch directory resumes an interrupted run.
	ScratchDir string

	// StrictMerge fails the merge when a non-degenerate chunk file is
	// missing instead of leaving a zero-filled hole
	StrictMerge bool

	// Verify re-reads each output and reports round-trip metrics
	Verify bool

	// DoSpectra and DoImages select which passes run
	DoSpectra bool
	DoImages  bool

	// ProgressInterval spaces progress reports; zero disables them
	ProgressInterval time.Duration
}

// Converter drives a conversion run: solve the memory budget, plan both
// chunk layouts, execute each requested pass in the configured mode, and
// merge the results into the output volumes.
type Converter struct {
	params *Params

	bounds models.Bounds
	info   models.MemoryInfo

	spectraChunks []models.ChunkBounds
	imageChunks   []models.ChunkBounds
}

// NewConverter creates a converter for the given parameters.
func NewConverter(params *Params) *Converter {
	return &Converter{params: params}
}

// MemoryInfo returns the memory budget computed for the run. Valid after
// Process has planned the run.
func (c *Converter) MemoryInfo() models.MemoryInfo {
	return c.info
}

// Process runs the complete conversion pipeline.
func (c *Converter) Process() error {
	defer progress.TimeThis("Overall")()

	source, err := volume.OpenRawVolume(c.params.InputFile)
	if err != nil {
		return fmt.Errorf("failed to open input volume: %w", err)
	}
	defer source.Close()
	c.bounds = source.Bounds()

	fmt.Printf("Input volume %s: %d layers, %dx%d pixels, %d spectral bins\n",
		c.params.InputFile, c.bounds.Layers, c.bounds.Width, c.bounds.Height,
		c.bounds.SpectrumLength)

	c.spectraChunks, c.imageChunks, c.info, err = chunking.CalculateChunks(
		c.params.MinChunkCount, c.params.MaxMemoryGB, c.params.Workers, c.bounds)
	if err != nil {
		return fmt.Errorf("failed to plan chunks: %w", err)
	}

	fmt.Printf("Volume size: %.3f GB, chunk budget: %.3f GB over %d chunks, %d workers\n",
		c.info.TotalGB, c.info.MaxChunkGB, c.info.MinChunkCount, c.params.Workers)

	if c.params.OnDisk {
		if err := os.MkdirAll(c.params.ScratchDir, 0755); err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}
	}

	if c.params.DoSpectra {
		fmt.Println("Converting spectra representation...")
		if err := c.runPass(SpectraPass, c.spectraChunks, source, c.params.SpectraOutputFile); err != nil {
			return fmt.Errorf("spectra pass failed: %w", err)
		}
	}

	if c.params.DoImages {
		fmt.Println("Converting images representation...")
		if err := c.runPass(ImagesPass, c.imageChunks, source, c.params.ImagesOutputFile); err != nil {
			return fmt.Errorf("images pass failed: %w", err)
		}
	}

	return nil
}

// runPass materializes one layout's chunks and produces one output volume.
func (c *Converter) runPass(name string, chunks []models.ChunkBounds, source *volume.RawVolume, outPath string) error {
	if c.params.OnDisk {
		if err := c.runOnDisk(name, chunks, outPath); err != nil {
			return err
		}
	} else {
		if err := c.runInMemory(name, chunks, source, outPath); err != nil {
			return err
		}
	}

	if c.params.Verify {
		result, err := volume.OpenRawVolume(outPath)
		if err != nil {
			return fmt.Errorf("opening output for verification: %w", err)
		}
		defer result.Close()

		metrics, err := ValidateRoundTrip(source, result)
		if err != nil {
			return fmt.Errorf("verifying %q: %w", name, err)
		}
		fmt.Printf("Round-trip metrics for %q:\n", name)
		fmt.Printf("  RMSE: %.6f\n", metrics.RMSE)
		fmt.Printf("  Correlation: %.3f\n", metrics.Correlation)
		fmt.Printf("  Mean difference: %.6f\n", metrics.MeanDiff)
		fmt.Printf("  Exact match fraction: %.4f\n", metrics.MatchFraction)
	}
	return nil
}

// runOnDisk stages chunks through worker processes, then merges the chunk
// files into a windowed output volume so the full volume is never resident.
func (c *Converter) runOnDisk(name string, chunks []models.ChunkBounds, outPath string) error {
	runner := &ProcessRunner{
		SourcePath:       c.params.InputFile,
		ScratchDir:       c.params.ScratchDir,
		Workers:          c.params.Workers,
		ProgressInterval: c.params.ProgressInterval,
	}
	if err := runner.Run(name, chunks); err != nil {
		return err
	}

	out, err := volume.CreateRawVolume(outPath, c.bounds)
	if err != nil {
		return fmt.Errorf("creating output volume: %w", err)
	}
	defer out.Close()

	return MergeChunkFiles(c.params.ScratchDir, name, chunks, out,
		c.params.ProgressInterval, c.params.StrictMerge)
}

// runInMemory copies chunks concurrently into a shared pre-sized buffer and
// persists it in one write. RawVolume reads use positioned I/O, so the
// single source handle is safe to share across the task goroutines.
func (c *Converter) runInMemory(name string, chunks []models.ChunkBounds, source *volume.RawVolume, outPath string) error {
	buffer := volume.NewMemoryVolume(c.bounds)
	runner := &TaskRunner{
		Source:           source,
		Target:           buffer,
		Workers:          c.params.Workers,
		ProgressInterval: c.params.ProgressInterval,
	}
	if err := runner.Run(name, chunks); err != nil {
		return err
	}

	out, err := volume.CreateRawVolume(outPath, c.bounds)
	if err != nil {
		return fmt.Errorf("creating output volume: %w", err)
	}
	defer out.Close()

	if err := out.WriteRegion(c.bounds.FullChunk(), buffer.Data()); err != nil {
		return fmt.Errorf("writing output volume: %w", err)
	}
	return nil
}
