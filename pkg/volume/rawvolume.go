package volume

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"msiconvert/internal/models"
)

// rawMagic identifies the flat volume store format.
var rawMagic = [8]byte{'M', 'S', 'I', 'R', 'A', 'W', '0', '1'}

// rawHeaderSize is the byte offset of the first element: an 8-byte magic
// followed by the four extents as little-endian int64.
const rawHeaderSize = 8 + 4*8

// RawVolume is a 4D volume stored as a flat little-endian int32 file behind
// a small fixed header. Unlike the staging containers, it supports windowed
// reads and writes by seeking, so a worker can touch only its own chunk's
// index ranges without loading the volume.
//
// A RawVolume handle is not safe for concurrent use; parallel workers each
// open their own handle.
type RawVolume struct {
	file     *os.File
	bounds   models.Bounds
	writable bool
}

// CreateRawVolume creates a zero-filled volume file of the given bounds,
// replacing any existing file at path.
func CreateRawVolume(path string, bounds models.Bounds) (*RawVolume, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating volume file: %w", err)
	}

	header := make([]byte, rawHeaderSize)
	copy(header, rawMagic[:])
	for i, dim := range bounds.Shape() {
		binary.LittleEndian.PutUint64(header[8+i*8:], uint64(dim))
	}
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing volume header: %w", err)
	}

	// Extend to full size so unwritten regions read back as zero.
	size := rawHeaderSize + bounds.ElementCount()*models.BytesPerElement
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("sizing volume file: %w", err)
	}

	return &RawVolume{file: f, bounds: bounds, writable: true}, nil
}

// OpenRawVolume opens an existing volume file read-only.
func OpenRawVolume(path string) (*RawVolume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume file: %w", err)
	}

	header := make([]byte, rawHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading volume header: %w", err)
	}
	if [8]byte(header[:8]) != rawMagic {
		f.Close()
		return nil, fmt.Errorf("%s is not a raw volume file", path)
	}

	var dims [4]int
	for i := range dims {
		dims[i] = int(binary.LittleEndian.Uint64(header[8+i*8:]))
	}
	bounds, err := models.NewBounds(dims[0], dims[1], dims[2], dims[3])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid volume header: %w", err)
	}

	return &RawVolume{file: f, bounds: bounds}, nil
}

// Close releases the underlying file handle.
func (v *RawVolume) Close() error {
	return v.file.Close()
}

// Bounds returns the full extent of the volume.
func (v *RawVolume) Bounds() models.Bounds {
	return v.bounds
}

// elementOffset returns the file offset of element (layer, x, y, bin).
func (v *RawVolume) elementOffset(layer, x, y, bin int) int64 {
	index := ((int64(layer)*int64(v.bounds.Width)+int64(x))*int64(v.bounds.Height)+
		int64(y))*int64(v.bounds.SpectrumLength) + int64(bin)
	return rawHeaderSize + index*models.BytesPerElement
}

// ReadRegion reads the chunk's region into a dense array. Only the bytes of
// the requested region are touched; each contiguous spectral run is one
// positioned read.
func (v *RawVolume) ReadRegion(c models.ChunkBounds) ([]int32, error) {
	if err := checkRegion(v.bounds, c); err != nil {
		return nil, fmt.Errorf("read region %s: %w", c, err)
	}

	run := c.SpectrumLength()
	out := make([]int32, c.ElementCount())
	buf := make([]byte, run*models.BytesPerElement)
	pos := 0
	for layer := c.Layer.Start; layer < c.Layer.Stop; layer++ {
		for x := c.Width.Start; x < c.Width.Stop; x++ {
			for y := c.Height.Start; y < c.Height.Stop; y++ {
				offset := v.elementOffset(layer, x, y, c.Spectra.Start)
				if _, err := v.file.ReadAt(buf, offset); err != nil {
					return nil, fmt.Errorf("read region %s at offset %d: %w", c, offset, err)
				}
				for i := 0; i < run; i++ {
					out[pos+i] = int32(binary.LittleEndian.Uint32(buf[i*models.BytesPerElement:]))
				}
				pos += run
			}
		}
	}
	return out, nil
}

// WriteRegion writes a dense array into the chunk's region of the file.
func (v *RawVolume) WriteRegion(c models.ChunkBounds, data []int32) error {
	if !v.writable {
		return fmt.Errorf("write region %s: volume is read-only", c)
	}
	if err := checkRegion(v.bounds, c); err != nil {
		return fmt.Errorf("write region %s: %w", c, err)
	}
	if int64(len(data)) != c.ElementCount() {
		return fmt.Errorf("write region %s: data has %d elements, region has %d",
			c, len(data), c.ElementCount())
	}

	run := c.SpectrumLength()
	buf := make([]byte, run*models.BytesPerElement)
	pos := 0
	for layer := c.Layer.Start; layer < c.Layer.Stop; layer++ {
		for x := c.Width.Start; x < c.Width.Stop; x++ {
			for y := c.Height.Start; y < c.Height.Stop; y++ {
				for i := 0; i < run; i++ {
					binary.LittleEndian.PutUint32(buf[i*models.BytesPerElement:], uint32(data[pos+i]))
				}
				offset := v.elementOffset(layer, x, y, c.Spectra.Start)
				if _, err := v.file.WriteAt(buf, offset); err != nil {
					return fmt.Errorf("write region %s at offset %d: %w", c, offset, err)
				}
				pos += run
			}
		}
	}
	return nil
}
