package matrixfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"os"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/cooccur"
	apperrors "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/errors"
)

// Reader holds an open .cooc file whose header, labels and checksum have
// already been validated.
type Reader struct {
	file   *os.File
	header Header
	body   []byte
	labels labelSection
}

// OpenReader validates the file and loads its triplet and label sections.
// Structural problems are reported as ErrCorruptFile.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening matrix file: %w", err)
	}
	r, err := load(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func load(f *os.File) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat matrix file: %w", err)
	}
	size := info.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("%w: file is %d bytes", apperrors.ErrCorruptFile, size)
	}

	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(buf)
	if header.Magic != Magic {
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrCorruptFile, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", apperrors.ErrCorruptFile, header.Version)
	}
	if header.TripletSize != int64(header.NNZ)*int64(TripletSize) ||
		header.LabelOffset != header.TripletOffset+header.TripletSize ||
		header.LabelOffset+header.LabelSize+int64(FooterSize) != size {
		return nil, fmt.Errorf("%w: section offsets do not match file size %d", apperrors.ErrCorruptFile, size)
	}

	body := make([]byte, header.TripletSize+header.LabelSize)
	if _, err := f.ReadAt(body, header.TripletOffset); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	want := binary.LittleEndian.Uint32(footer[0:4])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, fmt.Errorf("%w: checksum %08x, footer says %08x", apperrors.ErrCorruptFile, got, want)
	}

	var labels labelSection
	if err := json.Unmarshal(body[header.TripletSize:], &labels); err != nil {
		return nil, fmt.Errorf("%w: parsing labels: %v", apperrors.ErrCorruptFile, err)
	}
	return &Reader{file: f, header: header, body: body[:header.TripletSize], labels: labels}, nil
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) Meta() Meta {
	return r.labels.Meta
}

// Matrix decodes the triplet section in file order.
func (r *Reader) Matrix() *cooccur.Matrix {
	nnz := int(r.header.NNZ)
	m := &cooccur.Matrix{
		Rows:      make([]int32, nnz),
		Cols:      make([]int32, nnz),
		Values:    make([]float64, nnz),
		Dim:       [2]int{int(r.header.Rows), int(r.header.Cols)},
		RowLabels: append([]string(nil), r.labels.RowLabels...),
		ColLabels: append([]string(nil), r.labels.ColLabels...),
	}
	for i := 0; i < nnz; i++ {
		cell := r.body[i*TripletSize : (i+1)*TripletSize]
		m.Rows[i] = int32(binary.LittleEndian.Uint32(cell[0:4]))
		m.Cols[i] = int32(binary.LittleEndian.Uint32(cell[4:8]))
		m.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(cell[8:16]))
	}
	return m
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadFile opens path, decodes the matrix and closes the file.
func ReadFile(path string) (*cooccur.Matrix, Meta, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, Meta{}, err
	}
	defer r.Close()
	return r.Matrix(), r.Meta(), nil
}
