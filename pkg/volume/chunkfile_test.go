package volume

import (
	"path/filepath"
	"testing"

	"msiconvert/internal/models"
)

// TestChunkFileRoundTrip verifies that a staged chunk file reloads with
// its payload and provenance intact
func TestChunkFileRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "chunk_spectra_0.h5")

	chunk := models.ChunkBounds{
		Layer:   models.Range{Start: 1, Stop: 2},
		Width:   models.Range{Start: 0, Stop: 4},
		Height:  models.Range{Start: 2, Stop: 5},
		Spectra: models.Range{Start: 10, Stop: 20},
	}
	data := make([]int32, chunk.ElementCount())
	for i := range data {
		data[i] = int32(i * 3)
	}

	if err := WriteChunkFile(path, "run-42", chunk, data); err != nil {
		t.Fatalf("WriteChunkFile failed: %v", err)
	}

	gotChunk, gotData, sourceID, err := ReadChunkFile(path)
	if err != nil {
		t.Fatalf("ReadChunkFile failed: %v", err)
	}

	if gotChunk != chunk {
		t.Errorf("Recorded bounds %s, expected %s", gotChunk, chunk)
	}
	if sourceID != "run-42" {
		t.Errorf("Recorded source %q, expected %q", sourceID, "run-42")
	}
	if len(gotData) != len(data) {
		t.Fatalf("Payload has %d elements, expected %d", len(gotData), len(data))
	}
	for i := range data {
		if gotData[i] != data[i] {
			t.Fatalf("Payload mismatch at element %d: got %d, want %d", i, gotData[i], data[i])
		}
	}
}

// TestWriteChunkFileRejectsMismatchedPayload verifies the length check
func TestWriteChunkFileRejectsMismatchedPayload(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.h5")

	chunk := models.ChunkBounds{
		Layer:   models.Range{Start: 0, Stop: 1},
		Width:   models.Range{Start: 0, Stop: 2},
		Height:  models.Range{Start: 0, Stop: 2},
		Spectra: models.Range{Start: 0, Stop: 4},
	}
	if err := WriteChunkFile(path, "run", chunk, make([]int32, 3)); err == nil {
		t.Error("Expected error for payload not matching chunk bounds")
	}
}

// TestReadChunkFileMissing verifies a clear error for absent files
func TestReadChunkFileMissing(t *testing.T) {
	if _, _, _, err := ReadChunkFile(filepath.Join(t.TempDir(), "absent.h5")); err == nil {
		t.Error("Expected error reading a missing chunk file")
	}
}
