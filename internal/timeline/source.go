package timeline

import (
	"context"
	"io"
)

// SliceSource serves pre-built batches from memory.
type SliceSource struct {
	batches [][]EventRecord
	next    int
}

func NewSliceSource(batches ...[]EventRecord) *SliceSource {
	return &SliceSource{batches: batches}
}

// Paginate splits records into batches of at most size rows.
func Paginate(records []EventRecord, size int) *SliceSource {
	if size <= 0 {
		size = len(records)
	}
	src := &SliceSource{}
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		src.batches = append(src.batches, records[start:end])
	}
	return src
}

func (s *SliceSource) NextBatch(ctx context.Context) ([]EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.batches) {
		return nil, io.EOF
	}
	batch := s.batches[s.next]
	s.next++
	return batch, nil
}
