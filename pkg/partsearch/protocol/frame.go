package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the size of the big-endian length prefix on every frame.
const HeaderSize = 8

// DefaultMaxFrameBytes caps a single frame unless the caller sets a limit.
const DefaultMaxFrameBytes = 256 << 20

// WriteFrame writes payload as [uint64 length][payload].
func WriteFrame(w io.Writer, payload []byte) error {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}

	return nil
}

// ReadFrame reads one frame, blocking until the whole payload has arrived.
// A zero or negative limit means DefaultMaxFrameBytes.
func ReadFrame(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxFrameBytes
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, frameError("header", err)
	}

	size := binary.BigEndian.Uint64(header[:])
	if size > uint64(limit) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, size, limit)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, frameError("payload", err)
	}

	return payload, nil
}

func frameError(part string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrShortFrame, part)
	}
	return fmt.Errorf("read frame %s: %w", part, err)
}

// WriteJSON encodes v and sends it as one frame.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return WriteFrame(w, data)
}

// ReadJSON reads one frame and decodes it into v.
func ReadJSON(r io.Reader, limit int64, v any) error {
	data, err := ReadFrame(r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}
