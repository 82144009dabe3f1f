package partsearch

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineBytes bounds a single input line; longer lines fail the scan.
const maxLineBytes = 1 << 20

// LoadStats describes how an input was turned into records.
type LoadStats struct {
	Lines     int `json:"lines"`     // non-blank lines seen
	Records   int `json:"records"`   // lines that became records
	Skipped   int `json:"skipped"`   // malformed lines dropped
	Truncated int `json:"truncated"` // records with at least one field cut to capacity
}

func (s *LoadStats) add(o LoadStats) {
	s.Lines += o.Lines
	s.Records += o.Records
	s.Skipped += o.Skipped
	s.Truncated += o.Truncated
}

// Source produces the record set a search runs over.
type Source interface {
	Load(ctx context.Context) (*RecordSet, LoadStats, error)
}

// FileSource reads records from one or more files, concatenated in order.
type FileSource struct {
	Paths []string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) (*RecordSet, LoadStats, error) {
	return LoadFiles(ctx, s.Paths...)
}

// StaticSource serves an in-memory record list.
type StaticSource []Record

// Load implements Source.
func (s StaticSource) Load(context.Context) (*RecordSet, LoadStats, error) {
	n := len(s)
	return NewRecordSet(s), LoadStats{Lines: n, Records: n}, nil
}

// LoadFiles reads every path in order into a single record set. Any file
// that cannot be opened or read fails the whole load.
func LoadFiles(ctx context.Context, paths ...string) (*RecordSet, LoadStats, error) {
	var (
		all   []Record
		stats LoadStats
	)

	if len(paths) == 0 {
		return nil, stats, fmt.Errorf("%w: no input files", ErrSourceUnreadable)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		records, fileStats, err := readFile(path)
		if err != nil {
			return nil, stats, err
		}
		all = append(all, records...)
		stats.add(fileStats)
	}

	return NewRecordSet(all), stats, nil
}

func readFile(path string) ([]Record, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	defer file.Close()

	records, stats, err := ReadRecords(file)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %s: %w", ErrSourceUnreadable, path, err)
	}

	return records, stats, nil
}

// ReadRecords parses one record per line. Blank lines are ignored and
// malformed lines are skipped and counted; only read errors are returned.
func ReadRecords(r io.Reader) ([]Record, LoadStats, error) {
	var (
		records []Record
		stats   LoadStats
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		stats.Lines++

		rec, truncated, err := parseLine(line)
		if err != nil {
			stats.Skipped++
			continue
		}
		if truncated {
			stats.Truncated++
		}
		records = append(records, rec)
		stats.Records++
	}

	return records, stats, scanner.Err()
}

// ParseLine parses a `"label","value"` line into a record.
func ParseLine(line string) (Record, error) {
	rec, _, err := parseLine(line)
	return rec, err
}

func parseLine(line string) (Record, bool, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	fields, err := r.Read()
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	label, labelCut := newField(fields[0])
	value, valueCut := newField(fields[1])

	return Record{Label: label, Value: value}, labelCut || valueCut, nil
}

// Line renders r in the canonical quoted form accepted by ParseLine.
// ParseLine(r.Line()) returns r for every record: fields never hold a
// line feed, and a carriage return is kept verbatim inside the quotes.
func (r Record) Line() string {
	return quoteField(r.Label.String()) + "," + quoteField(r.Value.String())
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// EncodeLines renders records as newline-terminated canonical lines.
func EncodeLines(records []Record) []byte {
	var b strings.Builder
	for i := range records {
		b.WriteString(records[i].Line())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// SplitLines breaks a text block into lines at "\n", dropping blank ones.
// Only a "\r" directly before the line feed is treated as part of it.
func SplitLines(block []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
