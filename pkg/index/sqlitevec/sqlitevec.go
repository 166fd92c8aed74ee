// Package sqlitevec provides the accelerated similarity backend using
// sqlite-vec over an in-memory database. Construction probes for the
// extension; callers fall back to the brute-force backend when the probe
// fails.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/index"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/vecmath"
)

// Index holds one snapshot of the vector matrix in a vec0 virtual table.
type Index struct {
	db     *sql.DB
	size   int
	dim    int
	logger *zap.Logger
}

// NewIndex builds an in-memory vec0 table over unit-normalized copies of
// vecs. It returns index.ErrUnavailable (wrapped) when the sqlite-vec
// extension cannot be loaded, and never modifies the input matrix.
func NewIndex(ctx context.Context, vecs [][]float32, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", index.ErrUnavailable, err)
	}
	// Every new connection would see a fresh empty in-memory database.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", index.ErrUnavailable, err)
	}

	dim := 0
	if len(vecs) > 0 {
		dim = len(vecs[0])
	}

	if dim > 0 {
		createVec := fmt.Sprintf(
			`CREATE VIRTUAL TABLE vec_index USING vec0(embedding float[%d] distance_metric=cosine)`,
			dim,
		)
		if _, err := db.ExecContext(ctx, createVec); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: creating vec0 table: %v", index.ErrUnavailable, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: beginning build transaction: %v", index.ErrUnavailable, err)
		}

		for i, vec := range vecs {
			if len(vec) != dim {
				tx.Rollback()
				db.Close()
				return nil, fmt.Errorf("%w: row %d has %d dimensions, want %d",
					index.ErrDimensionMismatch, i, len(vec), dim)
			}
			blob := serializeFloat32(vecmath.NormalizedCopy(vec))
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_index(rowid, embedding) VALUES (?, ?)`, i, blob,
			); err != nil {
				tx.Rollback()
				db.Close()
				return nil, fmt.Errorf("%w: inserting row %d: %v", index.ErrUnavailable, i, err)
			}
		}

		if err := tx.Commit(); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: committing build transaction: %v", index.ErrUnavailable, err)
		}
	}

	logger.Debug("accelerated index built",
		zap.Int("rows", len(vecs)),
		zap.Int("dimensions", dim),
		zap.String("vec_version", vecVersion),
	)

	return &Index{db: db, size: len(vecs), dim: dim, logger: logger}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB
// format sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Search runs one KNN query per query vector. Cosine distance over
// normalized vectors converts to inner-product similarity as 1−distance.
func (idx *Index) Search(ctx context.Context, queries [][]float32, k int) ([][]float32, [][]int, error) {
	scores := make([][]float32, len(queries))
	ids := make([][]int, len(queries))
	for i := range queries {
		scores[i] = make([]float32, k)
		ids[i] = make([]int, k)
	}

	if idx.size == 0 || k <= 0 {
		return scores, ids, nil
	}

	effectiveK := k
	if effectiveK > idx.size {
		effectiveK = idx.size
	}

	for qi, query := range queries {
		if len(query) != idx.dim {
			return nil, nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
				index.ErrDimensionMismatch, len(query), idx.dim)
		}

		blob := serializeFloat32(vecmath.NormalizedCopy(query))
		rows, err := idx.db.QueryContext(ctx, `
			SELECT rowid, distance
			FROM vec_index
			WHERE embedding MATCH ?
				AND k = ?
			ORDER BY distance, rowid
		`, blob, effectiveK)
		if err != nil {
			return nil, nil, fmt.Errorf("querying vectors: %w", err)
		}

		col := 0
		for rows.Next() {
			var rowID int64
			var distance float64
			if err := rows.Scan(&rowID, &distance); err != nil {
				rows.Close()
				return nil, nil, fmt.Errorf("scanning query result: %w", err)
			}
			if col < k {
				scores[qi][col] = float32(1.0 - distance)
				ids[qi][col] = int(rowID)
				col++
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("iterating query results: %w", err)
		}
		rows.Close()
	}

	return scores, ids, nil
}

// Size reports how many vectors the snapshot holds.
func (idx *Index) Size() int {
	return idx.size
}

// Close releases the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Ensure Index implements index.Backend
var _ index.Backend = (*Index)(nil)
