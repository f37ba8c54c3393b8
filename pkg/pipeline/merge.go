package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"msiconvert/internal/models"
	"msiconvert/pkg/progress"
	"msiconvert/pkg/volume"
)

// MergeChunkFiles collects a pass's staged chunk files into the output
// volume. Chunks are visited strictly in enumeration order, so repeated
// runs over identical inputs produce byte-identical output given identical
// per-chunk results.
//
// A missing chunk file is skipped silently and its region left untouched.
// That covers degenerate chunks, which never produce a file, and it is what
// makes the pipeline resumable; the flip side is that a crashed worker's
// chunk becomes a zero-filled hole in the output rather than a merge-time
// failure. Callers that prefer a hard failure can pass strict=true.
func MergeChunkFiles(scratchDir, name string, chunks []models.ChunkBounds, target volume.WriteTarget, interval time.Duration, strict bool) error {
	timer := &progress.Timer{
		Name:        fmt.Sprintf("Collecting chunks for %q", name),
		Interval:    interval,
		Total:       len(chunks),
		SkipPercent: 5,
	}
	timer.Start()
	defer timer.Stop()

	for i, c := range chunks {
		path := filepath.Join(scratchDir, ChunkFileName(name, i))
		if _, err := os.Stat(path); err != nil {
			if strict && !c.Degenerate() {
				return fmt.Errorf("merging %q: chunk file %s is missing", name, path)
			}
			continue
		}

		recorded, data, _, err := volume.ReadChunkFile(path)
		if err != nil {
			return fmt.Errorf("merging %q: %w", name, err)
		}
		if recorded != c {
			return fmt.Errorf("merging %q: chunk file %s records bounds %s, expected %s",
				name, path, recorded, c)
		}
		if err := target.WriteRegion(c, data); err != nil {
			return fmt.Errorf("merging %q: %w", name, err)
		}
		timer.Report(i)
	}
	return nil
}
