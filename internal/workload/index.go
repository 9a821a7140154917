package workload

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/objprof/objprof/pkg/errors"
	"github.com/objprof/objprof/pkg/types"
)

// IndexParams configures the IVF-flat index build.
type IndexParams struct {
	NList         int
	Iterations    int
	Seed          int64
	DatasetPrefix string
	IndexPrefix   string
}

// IndexSummary describes a built index.
type IndexSummary struct {
	NList      int   `json:"nlist"`
	Dims       int   `json:"dims"`
	Rows       int   `json:"rows"`
	Iterations int   `json:"iterations"`
	Seed       int64 `json:"seed"`
}

// BuildIndex reads the dataset back from the backend and builds an
// IVF-flat index: k-means centroids plus one posting list per partition.
// The read phase dominates and is the workload's GET traffic.
func BuildIndex(ctx context.Context, backend types.Backend, p IndexParams, logger *slog.Logger) (*IndexSummary, error) {
	manifest, err := LoadManifest(ctx, backend, p.DatasetPrefix)
	if err != nil {
		return nil, err
	}
	if p.NList > manifest.Rows {
		return nil, errors.Newf(errors.ErrCodeIndexBuild,
			"nlist %d exceeds dataset rows %d", p.NList, manifest.Rows)
	}

	logger.Info("building index",
		"rows", manifest.Rows, "dims", manifest.Dims, "nlist", p.NList, "iterations", p.Iterations)

	vectors := make([][]float32, 0, manifest.Rows)
	for b := 0; b < manifest.Batches; b++ {
		batch, err := LoadBatch(ctx, backend, p.DatasetPrefix, b, manifest.Dims)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != manifest.Rows {
		return nil, errors.Newf(errors.ErrCodeDatasetCorrupt,
			"dataset has %d rows, manifest declares %d", len(vectors), manifest.Rows)
	}

	centroids, assignments := kmeans(vectors, p.NList, p.Iterations, p.Seed)

	if err := writeIndex(ctx, backend, p.IndexPrefix, centroids, assignments); err != nil {
		return nil, err
	}

	summary := &IndexSummary{
		NList:      p.NList,
		Dims:       manifest.Dims,
		Rows:       manifest.Rows,
		Iterations: p.Iterations,
		Seed:       p.Seed,
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSerialization, "failed to encode index summary").
			WithComponent("workload").WithCause(err)
	}
	if err := backend.PutObject(ctx, p.IndexPrefix+"summary.json", data); err != nil {
		return nil, errors.New(errors.ErrCodeIndexBuild, "failed to write index summary").
			WithComponent("workload").WithCause(err)
	}

	logger.Info("index built", "nlist", p.NList, "prefix", p.IndexPrefix)
	return summary, nil
}

// kmeans runs Lloyd's algorithm and returns the centroids and per-vector
// partition assignments.
func kmeans(vectors [][]float32, k, iterations int, seed int64) ([][]float32, []int) {
	dims := len(vectors[0])
	rng := rand.New(rand.NewSource(seed))

	// Initialize centroids from distinct random vectors.
	centroids := make([][]float32, k)
	for i, idx := range rng.Perm(len(vectors))[:k] {
		c := make([]float32, dims)
		copy(c, vectors[idx])
		centroids[i] = c
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < iterations; iter++ {
		for i, vec := range vectors {
			assignments[i] = nearestCentroid(vec, centroids)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dims)
		}
		for i, vec := range vectors {
			c := assignments[i]
			counts[c]++
			for j, v := range vec {
				sums[c][j] += float64(v)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Empty partition: reseed from a random vector.
				copy(centroids[c], vectors[rng.Intn(len(vectors))])
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = float32(sums[c][j] / float64(counts[c]))
			}
		}
	}

	for i, vec := range vectors {
		assignments[i] = nearestCentroid(vec, centroids)
	}
	return centroids, assignments
}

func nearestCentroid(vec []float32, centroids [][]float32) int {
	best := 0
	bestDist := math.MaxFloat64
	for c, centroid := range centroids {
		var dist float64
		for j, v := range vec {
			d := float64(v) - float64(centroid[j])
			dist += d * d
		}
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}

// writeIndex persists the centroids and one posting list of row IDs per
// partition.
func writeIndex(ctx context.Context, backend types.Backend, prefix string, centroids [][]float32, assignments []int) error {
	if err := backend.PutObject(ctx, prefix+"centroids", encodeVectors(centroids)); err != nil {
		return errors.New(errors.ErrCodeIndexBuild, "failed to write centroids").
			WithComponent("workload").WithCause(err)
	}

	postings := make([][]int, len(centroids))
	for row, c := range assignments {
		postings[c] = append(postings[c], row)
	}

	objects := make(map[string][]byte, len(postings))
	for c, rows := range postings {
		buf := make([]byte, 8*len(rows))
		for i, row := range rows {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(row))
		}
		objects[fmt.Sprintf("%spartition-%05d", prefix, c)] = buf
	}
	if err := backend.PutObjects(ctx, objects); err != nil {
		return errors.New(errors.ErrCodeIndexBuild, "failed to write partitions").
			WithComponent("workload").WithCause(err)
	}
	return nil
}
