package workload

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/objprof/objprof/pkg/errors"
	"github.com/objprof/objprof/pkg/types"
)

// ManifestKey is the object key of the dataset manifest, relative to the
// dataset prefix.
const ManifestKey = "manifest.json"

// Manifest describes a persisted vector dataset.
type Manifest struct {
	Rows      int   `json:"rows"`
	Dims      int   `json:"dims"`
	BatchSize int   `json:"batch_size"`
	Batches   int   `json:"batches"`
	Seed      int64 `json:"seed"`
}

// Params configures dataset generation.
type Params struct {
	Rows        int
	Dims        int
	BatchSize   int
	Concurrency int
	Seed        int64
	Prefix      string
}

// batchKey returns the object key of batch i, e.g. "data/batch-00003".
func batchKey(prefix string, i int) string {
	return fmt.Sprintf("%sbatch-%05d", prefix, i)
}

// encodeVectors serializes vectors as little-endian float32, row-major.
func encodeVectors(vectors [][]float32) []byte {
	if len(vectors) == 0 {
		return nil
	}
	dims := len(vectors[0])
	buf := make([]byte, len(vectors)*dims*4)
	off := 0
	for _, vec := range vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	return buf
}

// decodeVectors is the inverse of encodeVectors. It fails when the payload
// size is not a whole number of dims-sized rows.
func decodeVectors(data []byte, dims int) ([][]float32, error) {
	rowBytes := dims * 4
	if rowBytes == 0 || len(data)%rowBytes != 0 {
		return nil, errors.Newf(errors.ErrCodeDatasetCorrupt,
			"batch payload of %d bytes is not a multiple of %d-dim rows", len(data), dims)
	}
	rows := len(data) / rowBytes
	vectors := make([][]float32, rows)
	off := 0
	for i := range vectors {
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// GenerateDataset writes a seeded random vector dataset to the backend:
// one object per batch plus a manifest. Batches upload in parallel with
// bounded concurrency; generation itself is sequential so the dataset is
// reproducible for a given seed.
func GenerateDataset(ctx context.Context, backend types.Backend, p Params, logger *slog.Logger) (*Manifest, error) {
	rng := rand.New(rand.NewSource(p.Seed))

	batches := (p.Rows + p.BatchSize - 1) / p.BatchSize
	logger.Info("generating dataset",
		"rows", p.Rows, "dims", p.Dims, "batches", batches, "seed", p.Seed)

	type batch struct {
		index int
		data  []byte
	}
	batchCh := make(chan batch, p.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.Concurrency; w++ {
		g.Go(func() error {
			for b := range batchCh {
				if err := backend.PutObject(gctx, batchKey(p.Prefix, b.index), b.data); err != nil {
					return errors.Newf(errors.ErrCodeStorageWrite, "failed to write batch %d", b.index).
						WithComponent("workload").WithOperation("generate").WithCause(err)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(batchCh)
		for b := 0; b < batches; b++ {
			rows := p.BatchSize
			if remaining := p.Rows - b*p.BatchSize; remaining < rows {
				rows = remaining
			}
			vectors := make([][]float32, rows)
			for i := range vectors {
				vec := make([]float32, p.Dims)
				for j := range vec {
					vec[j] = rng.Float32()
				}
				vectors[i] = vec
			}
			select {
			case batchCh <- batch{index: b, data: encodeVectors(vectors)}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Rows:      p.Rows,
		Dims:      p.Dims,
		BatchSize: p.BatchSize,
		Batches:   batches,
		Seed:      p.Seed,
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSerialization, "failed to encode manifest").
			WithComponent("workload").WithCause(err)
	}
	if err := backend.PutObject(ctx, p.Prefix+ManifestKey, data); err != nil {
		return nil, errors.New(errors.ErrCodeStorageWrite, "failed to write manifest").
			WithComponent("workload").WithOperation("generate").WithCause(err)
	}

	logger.Info("dataset written", "batches", batches, "manifest", p.Prefix+ManifestKey)
	return manifest, nil
}

// LoadManifest reads and validates the dataset manifest under prefix.
func LoadManifest(ctx context.Context, backend types.Backend, prefix string) (*Manifest, error) {
	data, err := backend.GetObject(ctx, prefix+ManifestKey, 0, -1)
	if err != nil {
		return nil, errors.New(errors.ErrCodeDatasetCorrupt, "failed to read manifest").
			WithComponent("workload").WithCause(err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.New(errors.ErrCodeDatasetCorrupt, "failed to parse manifest").
			WithComponent("workload").WithCause(err)
	}
	if m.Rows <= 0 || m.Dims <= 0 || m.BatchSize <= 0 || m.Batches <= 0 {
		return nil, errors.Newf(errors.ErrCodeDatasetCorrupt,
			"manifest has invalid dimensions: rows=%d dims=%d batch_size=%d batches=%d",
			m.Rows, m.Dims, m.BatchSize, m.Batches)
	}
	return &m, nil
}

// LoadBatch reads and decodes one dataset batch.
func LoadBatch(ctx context.Context, backend types.Backend, prefix string, index, dims int) ([][]float32, error) {
	data, err := backend.GetObject(ctx, batchKey(prefix, index), 0, -1)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeDatasetCorrupt, "failed to read batch %d", index).
			WithComponent("workload").WithCause(err)
	}
	return decodeVectors(data, dims)
}
