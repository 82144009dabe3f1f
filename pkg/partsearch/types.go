package partsearch

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// FieldCapacity is the fixed size of a record field, terminator included.
	FieldCapacity = 50
	// MaxFieldBytes is the number of text bytes a field can hold.
	MaxFieldBytes = FieldCapacity - 1
	// RecordSize is the size of one record inside a RecordSet block.
	RecordSize = 2 * FieldCapacity
	// MaxPatternBytes bounds the length of a search pattern.
	MaxPatternBytes = 256
)

// Field is a bounded, NUL-terminated text buffer. Text longer than
// MaxFieldBytes is truncated on a rune boundary. A field is one line of
// text: it never holds a line feed.
type Field [FieldCapacity]byte

// NewField copies s into a Field, silently dropping whatever does not fit.
// Text from the first NUL on is dropped and line feeds become spaces.
func NewField(s string) Field {
	f, _ := newField(s)
	return f
}

func newField(s string) (Field, bool) {
	var f Field

	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}

	n := len(s)
	truncated := n > MaxFieldBytes
	if truncated {
		n = MaxFieldBytes
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
	}
	copy(f[:n], s)
	for i := range n {
		if f[i] == '\n' {
			f[i] = ' '
		}
	}

	return f, truncated
}

// Len returns the number of text bytes before the terminator.
func (f *Field) Len() int {
	if i := bytes.IndexByte(f[:], 0); i >= 0 {
		return i
	}
	return len(f)
}

// Bytes returns the field text without the terminator. The slice aliases f.
func (f *Field) Bytes() []byte {
	return f[:f.Len()]
}

func (f Field) String() string {
	return string(f.Bytes())
}

// Record is a two-field searchable unit, identified by its index in a RecordSet.
type Record struct {
	Label Field
	Value Field
}

// NewRecord builds a record, truncating both fields to capacity.
func NewRecord(label, value string) Record {
	return Record{Label: NewField(label), Value: NewField(value)}
}

// String renders the record the way matches are printed on a terminal.
func (r Record) String() string {
	return r.Label.String() + " , " + r.Value.String()
}

// Pattern is the literal substring searched for. It is read-only once built.
type Pattern struct {
	text string
}

// NewPattern validates and wraps a search pattern.
func NewPattern(s string) (Pattern, error) {
	if len(s) > MaxPatternBytes {
		return Pattern{}, fmt.Errorf("%w: %d bytes (max %d)", ErrPatternTooLong, len(s), MaxPatternBytes)
	}
	return Pattern{text: s}, nil
}

// MustPattern is like NewPattern but panics on error. Intended for tests and constants.
func MustPattern(s string) Pattern {
	p, err := NewPattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Bytes returns a fresh copy of the pattern text.
func (p Pattern) Bytes() []byte {
	return []byte(p.text)
}

func (p Pattern) String() string {
	return p.text
}

// Chunk is a half-open index range [Start, End) into a RecordSet.
type Chunk struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of records in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Empty reports whether the chunk holds no records.
func (c Chunk) Empty() bool {
	return c.End <= c.Start
}

func (c Chunk) String() string {
	return fmt.Sprintf("[%d,%d)", c.Start, c.End)
}

// ResultVector holds one match flag per record of the chunk it was computed from.
type ResultVector []bool

// Count returns the number of set flags.
func (v ResultVector) Count() int {
	n := 0
	for _, hit := range v {
		if hit {
			n++
		}
	}
	return n
}

// Partial is one worker's share of a search result.
//
// Data-parallel workers fill Hits, indexed relative to Chunk.Start.
// Message-passing workers return the matched records directly in Matches.
// Exactly one of the two is set.
type Partial struct {
	ReceivedAt time.Time // when the coordinator got the partial; zero means on Add
	Hits       ResultVector
	Matches    []Record
	WorkerID   int
	Chunk      Chunk
	Elapsed    time.Duration // worker-side compute time, if reported
}

// MatchCount returns the number of matches the partial carries.
func (p *Partial) MatchCount() int {
	if p.Hits != nil {
		return p.Hits.Count()
	}
	return len(p.Matches)
}
