package protocol

import (
	"time"

	"pkg.jsn.cam/partsearch/pkg/partsearch"
)

// A worker connection carries exactly five frames, in order:
//
//	coordinator -> worker  Hello      (JSON)
//	worker -> coordinator  HelloAck   (JSON)
//	coordinator -> worker  chunk      (record lines, "\n"-terminated)
//	worker -> coordinator  matches    (matched lines, input order)
//	worker -> coordinator  Summary    (JSON)

// Hello opens a search on a worker connection.
type Hello struct {
	Version    string `json:"version"`
	RunID      string `json:"run_id"`
	Pattern    []byte `json:"pattern"` // raw bytes, base64 on the wire
	WorkerID   int    `json:"worker_id"`
	Workers    int    `json:"workers"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	IgnoreCase bool   `json:"ignore_case"`
}

// Chunk returns the range the worker was assigned.
func (h *Hello) Chunk() partsearch.Chunk {
	return partsearch.Chunk{Start: h.Start, End: h.End}
}

// HelloAck accepts or rejects a Hello.
type HelloAck struct {
	Version string `json:"version"`
	Node    string `json:"node"` // worker process identity
	Error   string `json:"error,omitempty"`
	OK      bool   `json:"ok"`
}

// Summary closes a worker connection with the worker's own accounting.
type Summary struct {
	Records int           `json:"records"`
	Matches int           `json:"matches"`
	Skipped int           `json:"skipped"`
	Elapsed time.Duration `json:"elapsed"`
}
