package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"msiconvert/pkg/config"
	"msiconvert/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "msiconvert.yaml", "Configuration file (optional)")
	inputFile := flag.String("input", "", "Input raw volume file")
	spectraOut := flag.String("output-spectra", "spectra.vol", "Output file for the pixel-major representation")
	imagesOut := flag.String("output-images", "images.vol", "Output file for the bin-major representation")
	workers := flag.Int("workers", 0, "Number of concurrent workers (default: all CPUs)")
	minChunks := flag.Int("chunks", 0, "Minimum number of chunks to split the volume into")
	maxMemory := flag.Float64("max-memory", -1, "Memory ceiling in GB shared by all workers (0 = unbounded)")
	onDisk := flag.Bool("on-disk", false, "Stage chunks as files via worker processes instead of in memory")
	scratchDir := flag.String("scratch", "", "Scratch directory for disk mode (reuse to resume a run)")
	strictMerge := flag.Bool("strict-merge", false, "Fail the merge when a chunk file is missing")
	verify := flag.Bool("verify", false, "Verify outputs against the source after conversion")
	noSpectra := flag.Bool("no-spectra", false, "Skip the pixel-major output pass")
	noImages := flag.Bool("no-images", false, "Skip the bin-major output pass")
	workerJob := flag.String("worker-job", "", "Internal: run as a chunk worker on the given job manifest")
	flag.Parse()

	// Worker mode: this process was spawned by a disk-backed run to
	// materialize one manifest's chunks with its own file handles.
	if *workerJob != "" {
		if err := pipeline.RunWorkerJob(*workerJob); err != nil {
			log.Fatalf("Worker failed: %v", err)
		}
		return
	}

	// Validate inputs
	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags override the configuration file
	if *workers > 0 {
		cfg.Processing.Workers = *workers
	}
	if cfg.Processing.Workers <= 0 {
		cfg.Processing.Workers = runtime.NumCPU()
	}
	if *minChunks > 0 {
		cfg.Processing.MinChunkCount = *minChunks
	}
	if *maxMemory >= 0 {
		cfg.Processing.MaxMemoryGB = *maxMemory
	}
	if *onDisk {
		cfg.Processing.OnDisk = true
	}
	if *scratchDir != "" {
		cfg.Processing.ScratchDir = *scratchDir
	}
	if *strictMerge {
		cfg.Output.StrictMerge = true
	}
	if *verify {
		cfg.Output.Verify = true
	}
	if *noSpectra {
		cfg.Output.DoSpectra = false
	}
	if *noImages {
		cfg.Output.DoImages = false
	}

	fmt.Println("================================")
	fmt.Println("MSICONVERT - chunked parallel conversion of 4D imaging volumes")
	fmt.Println("================================")

	params := &pipeline.Params{
		InputFile:         *inputFile,
		SpectraOutputFile: *spectraOut,
		ImagesOutputFile:  *imagesOut,
		MinChunkCount:     cfg.Processing.MinChunkCount,
		MaxMemoryGB:       cfg.Processing.MaxMemoryGB,
		Workers:           cfg.Processing.Workers,
		OnDisk:            cfg.Processing.OnDisk,
		ScratchDir:        cfg.Processing.ScratchDir,
		StrictMerge:       cfg.Output.StrictMerge,
		Verify:            cfg.Output.Verify,
		DoSpectra:         cfg.Output.DoSpectra,
		DoImages:          cfg.Output.DoImages,
		ProgressInterval:  time.Duration(cfg.Progress.IntervalSeconds * float64(time.Second)),
	}

	converter := pipeline.NewConverter(params)

	startTime := time.Now()
	if err := converter.Process(); err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
	processingTime := time.Since(startTime)

	info := converter.MemoryInfo()
	fmt.Printf("\nConversion completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Volume: %.3f GB split into %d chunks of at most %.3f GB\n",
		info.TotalGB, info.MinChunkCount, info.MaxChunkGB)
	fmt.Printf("Used %d workers in %s mode\n", cfg.Processing.Workers, modeName(cfg.Processing.OnDisk))
	if cfg.Output.DoSpectra {
		fmt.Printf("Pixel-major output saved to: %s\n", *spectraOut)
	}
	if cfg.Output.DoImages {
		fmt.Printf("Bin-major output saved to: %s\n", *imagesOut)
	}
}

func modeName(onDisk bool) string {
	if onDisk {
		return "disk-backed"
	}
	return "memory-backed"
}
