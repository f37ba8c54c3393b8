package volume

import (
	"os"
	"path/filepath"
	"testing"

	"msiconvert/internal/models"
)

func mustBounds(t *testing.T, layers, width, height, spectra int) models.Bounds {
	t.Helper()
	b, err := models.NewBounds(layers, width, height, spectra)
	if err != nil {
		t.Fatalf("Failed to create bounds: %v", err)
	}
	return b
}

// patternValue produces a distinct value per coordinate so region copies
// that land in the wrong place are detected
func patternValue(layer, x, y, bin int) int32 {
	return int32(layer*1000000 + x*10000 + y*100 + bin)
}

// fillPattern writes the coordinate pattern into an in-memory volume
func fillPattern(t *testing.T, v *MemoryVolume) {
	t.Helper()
	b := v.Bounds()
	data := make([]int32, b.ElementCount())
	i := 0
	for layer := 0; layer < b.Layers; layer++ {
		for x := 0; x < b.Width; x++ {
			for y := 0; y < b.Height; y++ {
				for bin := 0; bin < b.SpectrumLength; bin++ {
					data[i] = patternValue(layer, x, y, bin)
					i++
				}
			}
		}
	}
	if err := v.WriteRegion(b.FullChunk(), data); err != nil {
		t.Fatalf("Failed to fill volume: %v", err)
	}
}

// TestMemoryVolumeRegionRoundTrip verifies that a sub-region read returns
// exactly the elements of that region in row-major order
func TestMemoryVolumeRegionRoundTrip(t *testing.T) {
	bounds := mustBounds(t, 3, 6, 5, 8)
	v := NewMemoryVolume(bounds)
	fillPattern(t, v)

	region := models.ChunkBounds{
		Layer:   models.Range{Start: 1, Stop: 3},
		Width:   models.Range{Start: 2, Stop: 5},
		Height:  models.Range{Start: 0, Stop: 4},
		Spectra: models.Range{Start: 3, Stop: 7},
	}

	data, err := v.ReadRegion(region)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	if int64(len(data)) != region.ElementCount() {
		t.Fatalf("Expected %d elements, got %d", region.ElementCount(), len(data))
	}

	i := 0
	for layer := region.Layer.Start; layer < region.Layer.Stop; layer++ {
		for x := region.Width.Start; x < region.Width.Stop; x++ {
			for y := region.Height.Start; y < region.Height.Stop; y++ {
				for bin := region.Spectra.Start; bin < region.Spectra.Stop; bin++ {
					if data[i] != patternValue(layer, x, y, bin) {
						t.Fatalf("Element (%d,%d,%d,%d): expected %d, got %d",
							layer, x, y, bin, patternValue(layer, x, y, bin), data[i])
					}
					i++
				}
			}
		}
	}

	// Writing the region into a fresh volume and reading it back must
	// reproduce it exactly
	other := NewMemoryVolume(bounds)
	if err := other.WriteRegion(region, data); err != nil {
		t.Fatalf("WriteRegion failed: %v", err)
	}
	back, err := other.ReadRegion(region)
	if err != nil {
		t.Fatalf("ReadRegion after write failed: %v", err)
	}
	for i := range data {
		if back[i] != data[i] {
			t.Fatalf("Round trip mismatch at element %d: %d != %d", i, back[i], data[i])
		}
	}
}

// TestMemoryVolumeValidation verifies region and payload checks
func TestMemoryVolumeValidation(t *testing.T) {
	bounds := mustBounds(t, 2, 4, 4, 10)
	v := NewMemoryVolume(bounds)

	outOfBounds := models.ChunkBounds{
		Layer:   models.Range{Start: 0, Stop: 3}, // exceeds 2 layers
		Width:   models.Range{Start: 0, Stop: 4},
		Height:  models.Range{Start: 0, Stop: 4},
		Spectra: models.Range{Start: 0, Stop: 10},
	}
	if _, err := v.ReadRegion(outOfBounds); err == nil {
		t.Error("Expected error reading region outside bounds")
	}
	if err := v.WriteRegion(outOfBounds, make([]int32, outOfBounds.ElementCount())); err == nil {
		t.Error("Expected error writing region outside bounds")
	}

	region := models.ChunkBounds{
		Layer:   models.Range{Start: 0, Stop: 1},
		Width:   models.Range{Start: 0, Stop: 2},
		Height:  models.Range{Start: 0, Stop: 2},
		Spectra: models.Range{Start: 0, Stop: 5},
	}
	if err := v.WriteRegion(region, make([]int32, 3)); err == nil {
		t.Error("Expected error for payload length mismatch")
	}
}

// TestRawVolumeRoundTrip verifies the file-backed store against the
// in-memory reference implementation
func TestRawVolumeRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.vol")

	bounds := mustBounds(t, 2, 5, 4, 6)
	ref := NewMemoryVolume(bounds)
	fillPattern(t, ref)

	// Create and fill the file-backed volume
	raw, err := CreateRawVolume(path, bounds)
	if err != nil {
		t.Fatalf("CreateRawVolume failed: %v", err)
	}
	if err := raw.WriteRegion(bounds.FullChunk(), ref.Data()); err != nil {
		t.Fatalf("WriteRegion failed: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen read-only and compare windowed reads
	reopened, err := OpenRawVolume(path)
	if err != nil {
		t.Fatalf("OpenRawVolume failed: %v", err)
	}
	defer reopened.Close()

	if reopened.Bounds() != bounds {
		t.Fatalf("Reopened bounds %v, expected %v", reopened.Bounds().Shape(), bounds.Shape())
	}

	region := models.ChunkBounds{
		Layer:   models.Range{Start: 1, Stop: 2},
		Width:   models.Range{Start: 1, Stop: 4},
		Height:  models.Range{Start: 0, Stop: 4},
		Spectra: models.Range{Start: 2, Stop: 5},
	}
	got, err := reopened.ReadRegion(region)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	want, err := ref.ReadRegion(region)
	if err != nil {
		t.Fatalf("Reference ReadRegion failed: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Mismatch at element %d: got %d, want %d", i, got[i], want[i])
		}
	}

	// A read-only handle must refuse writes
	if err := reopened.WriteRegion(region, want); err == nil {
		t.Error("Expected error writing through a read-only handle")
	}
}

// TestRawVolumeZeroFilled verifies that unwritten regions read back as zero
func TestRawVolumeZeroFilled(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "zero.vol")

	bounds := mustBounds(t, 1, 3, 3, 4)
	raw, err := CreateRawVolume(path, bounds)
	if err != nil {
		t.Fatalf("CreateRawVolume failed: %v", err)
	}
	defer raw.Close()

	data, err := raw.ReadRegion(bounds.FullChunk())
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	for i, v := range data {
		if v != 0 {
			t.Fatalf("Expected zero at element %d, got %d", i, v)
		}
	}
}

// TestOpenRawVolumeRejectsForeignFile verifies the magic check
func TestOpenRawVolumeRejectsForeignFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "not-a-volume")
	if err := os.WriteFile(path, []byte("definitely not a volume file"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := OpenRawVolume(path); err == nil {
		t.Error("Expected error opening a non-volume file")
	}
}
