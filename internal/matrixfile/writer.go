package matrixfile

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/cooccur"
)

// Writer creates .cooc files in one directory.
type Writer struct {
	dataDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write stores m under a generated name in the writer's directory and
// returns the file name.
func (w *Writer) Write(m *cooccur.Matrix, meta Meta) (string, error) {
	prefix := meta.Name
	if prefix == "" {
		prefix = "matrix"
	}
	name := fmt.Sprintf("%s_%d%s", prefix, time.Now().UnixNano(), Extension)
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating matrix directory: %w", err)
	}
	if err := WriteFile(filepath.Join(w.dataDir, name), m, meta); err != nil {
		return "", err
	}
	return name, nil
}

// WriteFile writes m to path through a .tmp file that is renamed into place
// once synced, so readers never observe a partial file.
func WriteFile(path string, m *cooccur.Matrix, meta Meta) error {
	if len(m.Rows) != len(m.Values) || len(m.Cols) != len(m.Values) {
		return fmt.Errorf("matrix has %d rows, %d cols and %d values", len(m.Rows), len(m.Cols), len(m.Values))
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	labels, err := json.Marshal(labelSection{Meta: meta, RowLabels: m.RowLabels, ColLabels: m.ColLabels})
	if err != nil {
		return fmt.Errorf("marshaling labels: %w", err)
	}

	nnz := len(m.Values)
	header := Header{
		Magic:         Magic,
		Version:       FormatVersion,
		Rows:          uint32(m.Dim[0]),
		Cols:          uint32(m.Dim[1]),
		NNZ:           uint64(nnz),
		CreatedAt:     meta.CreatedAt.Unix(),
		TripletOffset: int64(HeaderSize),
		TripletSize:   int64(nnz * TripletSize),
	}
	header.LabelOffset = header.TripletOffset + header.TripletSize
	header.LabelSize = int64(len(labels))

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp matrix file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<16)
	if _, err := bw.Write(header.encode()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	crc := crc32.NewIEEE()
	body := io.MultiWriter(bw, crc)
	cell := make([]byte, TripletSize)
	for i := 0; i < nnz; i++ {
		binary.LittleEndian.PutUint32(cell[0:4], uint32(m.Rows[i]))
		binary.LittleEndian.PutUint32(cell[4:8], uint32(m.Cols[i]))
		binary.LittleEndian.PutUint64(cell[8:16], math.Float64bits(m.Values[i]))
		if _, err := body.Write(cell); err != nil {
			return fmt.Errorf("writing triplet %d: %w", i, err)
		}
	}
	if _, err := body.Write(labels); err != nil {
		return fmt.Errorf("writing labels: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(m.RowLabels)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(nnz))
	if _, err := bw.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing matrix file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing matrix file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming matrix file: %w", err)
	}
	return nil
}
