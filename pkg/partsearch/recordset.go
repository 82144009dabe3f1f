package partsearch

import "fmt"

// RecordSet is an ordered, immutable sequence of records stored in one
// contiguous block of RecordSize slots, so the whole set can be copied to a
// worker in a single transfer.
type RecordSet struct {
	block []byte
	n     int
}

// NewRecordSet packs records into a fresh block.
func NewRecordSet(records []Record) *RecordSet {
	block := make([]byte, len(records)*RecordSize)
	for i := range records {
		off := i * RecordSize
		copy(block[off:off+FieldCapacity], records[i].Label[:])
		copy(block[off+FieldCapacity:off+RecordSize], records[i].Value[:])
	}

	return &RecordSet{block: block, n: len(records)}
}

// RecordSetFromBytes rebuilds a record set from a block produced by Bytes.
// The block is copied.
func RecordSetFromBytes(block []byte) (*RecordSet, error) {
	if len(block)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptRecordBlock, len(block))
	}

	owned := make([]byte, len(block))
	copy(owned, block)

	return &RecordSet{block: owned, n: len(block) / RecordSize}, nil
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return s.n
}

// Bytes exposes the backing block. Callers must treat it as read-only.
func (s *RecordSet) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.block
}

// Record decodes the record at index i.
func (s *RecordSet) Record(i int) Record {
	var r Record
	off := i * RecordSize
	copy(r.Label[:], s.block[off:off+FieldCapacity])
	copy(r.Value[:], s.block[off+FieldCapacity:off+RecordSize])
	return r
}

// Records decodes the records covered by chunk c.
func (s *RecordSet) Records(c Chunk) []Record {
	if c.Empty() {
		return nil
	}

	out := make([]Record, 0, c.Len())
	for i := c.Start; i < c.End; i++ {
		out = append(out, s.Record(i))
	}
	return out
}

// LabelAt and ValueAt return views of the raw field slots at index i
// without decoding the record. The views alias the block.
func (s *RecordSet) LabelAt(i int) []byte {
	off := i * RecordSize
	return s.block[off : off+FieldCapacity]
}

func (s *RecordSet) ValueAt(i int) []byte {
	off := i*RecordSize + FieldCapacity
	return s.block[off : off+FieldCapacity]
}
