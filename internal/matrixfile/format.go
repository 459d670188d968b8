// Package matrixfile stores a finished co-occurrence matrix as a single
// binary .cooc file: a fixed header, the coordinate triplets, a JSON label
// section and a checksum footer.
package matrixfile

import (
	"encoding/binary"
	"time"
)

const (
	// Magic spells "COOC" when read little endian.
	Magic         uint32 = 0x434F4F43
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
	TripletSize   int    = 16
	Extension            = ".cooc"
)

// Header is the 64-byte block at the start of every file.
type Header struct {
	Magic         uint32
	Version       uint32
	Rows          uint32
	Cols          uint32
	NNZ           uint64
	CreatedAt     int64
	TripletOffset int64
	TripletSize   int64
	LabelOffset   int64
	LabelSize     int64
}

// Meta is stored with the labels and describes how the matrix was built.
type Meta struct {
	BuildID    string    `json:"build_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	WindowSize int       `json:"window_size"`
	Context    string    `json:"context,omitempty"`
	RollUp     bool      `json:"roll_up"`
	CreatedAt  time.Time `json:"created_at"`
}

type labelSection struct {
	Meta      Meta     `json:"meta"`
	RowLabels []string `json:"row_labels"`
	ColLabels []string `json:"col_labels"`
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Rows)
	binary.LittleEndian.PutUint32(buf[12:16], h.Cols)
	binary.LittleEndian.PutUint64(buf[16:24], h.NNZ)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.TripletOffset))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.TripletSize))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.LabelOffset))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.LabelSize))
	return buf
}

func decodeHeader(buf []byte) Header {
	return Header{
		Magic:         binary.LittleEndian.Uint32(buf[0:4]),
		Version:       binary.LittleEndian.Uint32(buf[4:8]),
		Rows:          binary.LittleEndian.Uint32(buf[8:12]),
		Cols:          binary.LittleEndian.Uint32(buf[12:16]),
		NNZ:           binary.LittleEndian.Uint64(buf[16:24]),
		CreatedAt:     int64(binary.LittleEndian.Uint64(buf[24:32])),
		TripletOffset: int64(binary.LittleEndian.Uint64(buf[32:40])),
		TripletSize:   int64(binary.LittleEndian.Uint64(buf[40:48])),
		LabelOffset:   int64(binary.LittleEndian.Uint64(buf[48:56])),
		LabelSize:     int64(binary.LittleEndian.Uint64(buf[56:64])),
	}
}
