package pipeline

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"msiconvert/internal/models"
	"msiconvert/pkg/progress"
	"msiconvert/pkg/volume"
)

// ChunkFileName returns the standalone container file name for the chunk at
// the given position in a pass's enumeration order. Names are keyed by
// position, not content, so a rerun over identical inputs addresses the
// same files and can resume where a previous run stopped.
func ChunkFileName(name string, index int) string {
	return fmt.Sprintf("chunk_%s_%d.h5", name, index)
}

// workerChunk is one work item in a worker's job manifest.
type workerChunk struct {
	Index  int                `yaml:"index"`
	Bounds models.ChunkBounds `yaml:"bounds"`
}

// workerJob is the manifest handed to one worker process.
type workerJob struct {
	SourcePath string        `yaml:"sourcePath"`
	Name       string        `yaml:"name"`
	ScratchDir string        `yaml:"scratchDir"`
	Chunks     []workerChunk `yaml:"chunks"`
}

// ProcessRunner executes chunks in isolated worker processes. The
// underlying container accessors are not safe for concurrent use through a
// shared process handle, so true parallel I/O needs OS-level separation:
// each worker re-executes this binary in worker mode with its own file
// handles, reads only its own chunks' index ranges from the source volume,
// and stages each result as a standalone chunk file in the scratch
// directory. Chunk files that already exist are left alone, which makes a
// rerun over the same scratch directory regenerate only what is missing.
type ProcessRunner struct {
	// SourcePath is the raw volume file workers read from
	SourcePath string

	// ScratchDir receives job manifests and staged chunk files
	ScratchDir string

	// Workers is the number of worker processes to spawn
	Workers int

	// ProgressInterval spaces automatic progress reports; zero disables them
	ProgressInterval time.Duration

	// WorkerCommand overrides the command used to launch a worker; the job
	// manifest path is appended as the final argument. Empty means
	// re-executing this binary with -worker-job.
	WorkerCommand []string
}

// Run stripes the chunk list across worker job manifests, launches one
// process per manifest, and blocks until all workers have drained their
// chunks. A failing worker logs its chunk's bounds and exits non-zero,
// aborting that work item only; completed chunk files stay in place for a
// resumed run.
func (r *ProcessRunner) Run(name string, chunks []models.ChunkBounds) error {
	jobPaths, err := r.writeWorkerJobs(name, chunks)
	if err != nil {
		return err
	}

	command := r.WorkerCommand
	if command == nil {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating worker binary: %w", err)
		}
		command = []string{exe, "-worker-job"}
	}

	timer := &progress.Timer{
		Name:     name,
		Interval: r.ProgressInterval,
		Total:    len(chunks),
		Poll:     func() int { return r.countChunkFiles(name, len(chunks)) },
	}
	timer.Start()
	defer timer.Stop()

	cmds := make([]*exec.Cmd, 0, len(jobPaths))
	for _, jobPath := range jobPaths {
		args := append(append([]string{}, command[1:]...), jobPath)
		cmd := exec.Command(command[0], args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("starting worker process: %w", err)
		}
		cmds = append(cmds, cmd)
	}

	var firstErr error
	for i, cmd := range cmds {
		if err := cmd.Wait(); err != nil {
			log.Printf("worker %d failed: %v", i, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("worker %d: %w", i, err)
			}
		}
	}
	return firstErr
}

// writeWorkerJobs distributes chunks round-robin across Workers manifests
// so every worker sees a similar mix of chunk sizes, and writes each
// manifest into the scratch directory.
func (r *ProcessRunner) writeWorkerJobs(name string, chunks []models.ChunkBounds) ([]string, error) {
	if err := os.MkdirAll(r.ScratchDir, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	jobs := make([]*workerJob, r.Workers)
	for w := range jobs {
		jobs[w] = &workerJob{
			SourcePath: r.SourcePath,
			Name:       name,
			ScratchDir: r.ScratchDir,
		}
	}
	for i, c := range chunks {
		job := jobs[i%r.Workers]
		job.Chunks = append(job.Chunks, workerChunk{Index: i, Bounds: c})
	}

	var paths []string
	for w, job := range jobs {
		if len(job.Chunks) == 0 {
			continue
		}
		data, err := yaml.Marshal(job)
		if err != nil {
			return nil, fmt.Errorf("marshaling worker job: %w", err)
		}
		path := filepath.Join(r.ScratchDir, fmt.Sprintf("job_%s_%d.yaml", name, w))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing worker job: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// countChunkFiles reports how many of a pass's chunk files exist, used only
// for progress polling.
func (r *ProcessRunner) countChunkFiles(name string, total int) int {
	count := 0
	for i := 0; i < total; i++ {
		if _, err := os.Stat(filepath.Join(r.ScratchDir, ChunkFileName(name, i))); err == nil {
			count++
		}
	}
	return count
}

// RunWorkerJob is the worker-mode entry point: it loads a job manifest,
// opens its own handle on the source volume, and stages every assigned
// chunk as a standalone chunk file. Degenerate chunks and chunks whose
// files already exist are skipped without producing output. On failure the
// offending chunk's bounds are logged before the error propagates, so the
// coordinator's log locates the hole.
func RunWorkerJob(jobPath string) error {
	data, err := os.ReadFile(jobPath)
	if err != nil {
		return fmt.Errorf("reading worker job: %w", err)
	}
	var job workerJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("parsing worker job %s: %w", jobPath, err)
	}

	source, err := volume.OpenRawVolume(job.SourcePath)
	if err != nil {
		return fmt.Errorf("worker job %s: %w", jobPath, err)
	}
	defer source.Close()

	for _, item := range job.Chunks {
		if item.Bounds.Degenerate() {
			continue
		}
		outPath := filepath.Join(job.ScratchDir, ChunkFileName(job.Name, item.Index))
		if _, err := os.Stat(outPath); err == nil {
			continue
		}
		if err := stageChunk(source, item.Bounds, job.SourcePath, outPath); err != nil {
			log.Printf("chunk %s failed: %v", item.Bounds, err)
			return &ChunkWriteError{Chunk: item.Bounds, Err: err}
		}
	}
	return nil
}

func stageChunk(source volume.ReadView, c models.ChunkBounds, sourceID, outPath string) error {
	data, err := source.ReadRegion(c)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	return volume.WriteChunkFile(outPath, sourceID, c, data)
}
