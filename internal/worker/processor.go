package worker

import (
	"context"
	"time"

	"pkg.jsn.cam/partsearch/pkg/partsearch"
	"pkg.jsn.cam/partsearch/pkg/partsearch/protocol"
)

// cancelCheckInterval is how many lines are scanned between context checks.
const cancelCheckInterval = 1024

// Processor runs the matcher over one chunk of record lines.
type Processor struct {
	matcher partsearch.Matcher
	pattern []byte
}

// NewProcessor creates a processor for one search.
func NewProcessor(pattern partsearch.Pattern, matcher partsearch.Matcher) *Processor {
	return &Processor{matcher: matcher, pattern: pattern.Bytes()}
}

// Process scans block line by line and returns the matching lines, in
// input order, as a "\n"-terminated text block. Lines that do not parse
// as records are counted and skipped.
func (p *Processor) Process(ctx context.Context, block []byte) ([]byte, protocol.Summary, error) {
	var (
		out     []byte
		summary protocol.Summary
	)

	start := time.Now()
	for i, line := range partsearch.SplitLines(block) {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, summary, err
			}
		}

		rec, err := partsearch.ParseLine(line)
		if err != nil {
			summary.Skipped++
			continue
		}
		summary.Records++

		if p.matcher.Match(&rec, p.pattern) {
			summary.Matches++
			out = append(out, line...)
			out = append(out, '\n')
		}
	}
	summary.Elapsed = time.Since(start)

	return out, summary, nil
}
