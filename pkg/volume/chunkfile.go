package volume

import (
	"fmt"

	"github.com/robert-malhotra/go-hdf5/hdf5"

	"msiconvert/internal/models"
)

// chunkDatasetName is the dataset holding a staged chunk's payload.
const chunkDatasetName = "data"

// boundAttrNames lists the provenance attributes recording the chunk's
// position in the output volume, in the order the endpoints are packed.
var boundAttrNames = [8]string{
	"layer_start", "layer_stop",
	"width_start", "width_stop",
	"height_start", "height_stop",
	"spectra_start", "spectra_stop",
}

// boundEndpoints packs a chunk's eight range endpoints in attribute order.
func boundEndpoints(c models.ChunkBounds) [8]int {
	return [8]int{
		c.Layer.Start, c.Layer.Stop,
		c.Width.Start, c.Width.Stop,
		c.Height.Start, c.Height.Stop,
		c.Spectra.Start, c.Spectra.Stop,
	}
}

// WriteChunkFile persists one chunk's payload as a standalone HDF5 file:
// a flat int32 dataset plus provenance attributes naming the originating
// source and the chunk's bounds. The file at path is replaced if present.
func WriteChunkFile(path, sourceID string, c models.ChunkBounds, data []int32) error {
	if int64(len(data)) != c.ElementCount() {
		return fmt.Errorf("chunk file %s: data has %d elements, chunk %s has %d",
			path, len(data), c, c.ElementCount())
	}

	f, err := hdf5.Create(path)
	if err != nil {
		return fmt.Errorf("creating chunk file %s: %w", path, err)
	}

	opts := []hdf5.DatasetOption{
		hdf5.WithAttribute("source", sourceID),
	}
	endpoints := boundEndpoints(c)
	for i, name := range boundAttrNames {
		opts = append(opts, hdf5.WithAttribute(name, int64(endpoints[i])))
	}

	if _, err := f.Root().CreateDataset(chunkDatasetName, data, opts...); err != nil {
		f.Close()
		return fmt.Errorf("writing chunk file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing chunk file %s: %w", path, err)
	}
	return nil
}

// ReadChunkFile reloads a staged chunk file, returning the chunk bounds
// recorded in its provenance attributes, the payload, and the source
// identifier the chunk was cut from.
func ReadChunkFile(path string) (models.ChunkBounds, []int32, string, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return models.ChunkBounds{}, nil, "", fmt.Errorf("opening chunk file %s: %w", path, err)
	}
	defer f.Close()

	ds, err := f.OpenDataset("/" + chunkDatasetName)
	if err != nil {
		return models.ChunkBounds{}, nil, "", fmt.Errorf("chunk file %s: %w", path, err)
	}

	var endpoints [8]int
	for i, name := range boundAttrNames {
		attr := ds.Attr(name)
		if attr == nil {
			return models.ChunkBounds{}, nil, "", fmt.Errorf("chunk file %s: missing attribute %q", path, name)
		}
		v, err := attr.ReadScalarInt64()
		if err != nil {
			return models.ChunkBounds{}, nil, "", fmt.Errorf("chunk file %s: attribute %q: %w", path, name, err)
		}
		endpoints[i] = int(v)
	}
	bounds := models.ChunkBounds{
		Layer:   models.Range{Start: endpoints[0], Stop: endpoints[1]},
		Width:   models.Range{Start: endpoints[2], Stop: endpoints[3]},
		Height:  models.Range{Start: endpoints[4], Stop: endpoints[5]},
		Spectra: models.Range{Start: endpoints[6], Stop: endpoints[7]},
	}

	sourceID := ""
	if attr := ds.Attr("source"); attr != nil {
		if s, err := attr.ReadScalarString(); err == nil {
			sourceID = s
		}
	}

	data, err := ds.ReadInt32()
	if err != nil {
		return models.ChunkBounds{}, nil, "", fmt.Errorf("chunk file %s: reading payload: %w", path, err)
	}
	if int64(len(data)) != bounds.ElementCount() {
		return models.ChunkBounds{}, nil, "", fmt.Errorf("chunk file %s: payload has %d elements, bounds %s have %d",
			path, len(data), bounds, bounds.ElementCount())
	}
	return bounds, data, sourceID, nil
}
