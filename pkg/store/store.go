// Package store persists the embedding index: a dense vector matrix and a
// parallel metadata list, held in lockstep so matrix row i always
// describes metadata entry i. Each embedding model gets its own artifact
// pair keyed by a fingerprint of the model identifier, so switching
// models never mixes incompatible vector spaces.
//
// Corruption of either artifact is treated as "index absent": Load
// degrades to an empty index and the next update pass rebuilds it.
package store

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	matrixFilePattern = "index_%s.bin"
	metaFilePattern   = "meta_%s.json"
)

// Entry is the per-row metadata paired with one embedding vector.
type Entry struct {
	// Path is the absolute path of the indexed image, unique per index.
	Path string `json:"path"`

	// MTime is the file's modification time in unix nanoseconds at the
	// moment it was embedded.
	MTime int64 `json:"mtime"`
}

// Fingerprint derives the artifact filename key for an embedding model
// identifier. Model identifiers contain slashes, so the raw identifier
// never appears in artifact names.
func Fingerprint(modelID string) string {
	sum := md5.Sum([]byte(modelID))
	return hex.EncodeToString(sum[:])[:8]
}

// Store reads and writes index artifact pairs under a single directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates the artifact directory if needed and returns a Store over it.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory holding the artifact pairs.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) matrixPath(modelKey string) string {
	return filepath.Join(s.dir, fmt.Sprintf(matrixFilePattern, Fingerprint(modelKey)))
}

func (s *Store) metaPath(modelKey string) string {
	return filepath.Join(s.dir, fmt.Sprintf(metaFilePattern, Fingerprint(modelKey)))
}

// Load reads the artifact pair for modelKey. Missing, unreadable, or
// corrupt artifacts, and a matrix whose row count disagrees with the
// metadata list, all yield an empty index. Load never fails.
func (s *Store) Load(modelKey string) ([][]float32, []Entry) {
	data, err := os.ReadFile(s.matrixPath(modelKey))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable index matrix, treating as empty",
				zap.String("model_key", modelKey), zap.Error(err))
		}
		return nil, nil
	}

	vecs, err := decodeMatrix(data)
	if err != nil {
		s.logger.Warn("corrupt index matrix, treating as empty",
			zap.String("model_key", modelKey), zap.Error(err))
		return nil, nil
	}

	metaData, err := os.ReadFile(s.metaPath(modelKey))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable index metadata, treating as empty",
				zap.String("model_key", modelKey), zap.Error(err))
		}
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(metaData, &entries); err != nil {
		s.logger.Warn("corrupt index metadata, treating as empty",
			zap.String("model_key", modelKey), zap.Error(err))
		return nil, nil
	}

	if len(entries) != len(vecs) {
		s.logger.Warn("index artifacts out of sync, treating as empty",
			zap.String("model_key", modelKey),
			zap.Int("matrix_rows", len(vecs)),
			zap.Int("metadata_rows", len(entries)))
		return nil, nil
	}

	return vecs, entries
}

// Save overwrites the artifact pair for modelKey. Each artifact is
// written through a temp file and renamed into place; the pair itself is
// not transactional, and Load detects a desynchronized pair as corrupt.
func (s *Store) Save(modelKey string, vecs [][]float32, entries []Entry) error {
	if len(vecs) != len(entries) {
		return fmt.Errorf("matrix rows (%d) and metadata rows (%d) must match", len(vecs), len(entries))
	}

	matrix, err := encodeMatrix(vecs)
	if err != nil {
		return err
	}
	if err := s.writeAtomic(s.matrixPath(modelKey), matrix); err != nil {
		return fmt.Errorf("failed to write index matrix: %w", err)
	}

	meta, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode index metadata: %w", err)
	}
	if err := s.writeAtomic(s.metaPath(modelKey), meta); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}

	return nil
}

// Clear removes both artifacts for modelKey. Missing files are not an
// error.
func (s *Store) Clear(modelKey string) error {
	for _, path := range []string{s.matrixPath(modelKey), s.metaPath(modelKey)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Matrix layout: uint32 dimension, uint32 row count, then rows×dimension
// float32 values, all little-endian.
func encodeMatrix(vecs [][]float32) ([]byte, error) {
	dim := 0
	if len(vecs) > 0 {
		dim = len(vecs[0])
	}

	buf := make([]byte, 0, 8+len(vecs)*dim*4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vecs)))

	for i, vec := range vecs {
		if len(vec) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, want %d", i, len(vec), dim)
		}
		for _, v := range vec {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf, nil
}

func decodeMatrix(data []byte) ([][]float32, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("matrix header truncated: %d bytes", len(data))
	}
	dim := int(binary.LittleEndian.Uint32(data[:4]))
	rows := int(binary.LittleEndian.Uint32(data[4:8]))

	want := 8 + rows*dim*4
	if rows < 0 || dim < 0 || len(data) != want {
		return nil, fmt.Errorf("matrix payload is %d bytes, want %d for %dx%d", len(data), want, rows, dim)
	}

	vecs := make([][]float32, rows)
	offset := 8
	for i := range vecs {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4
		}
		vecs[i] = vec
	}
	return vecs, nil
}
