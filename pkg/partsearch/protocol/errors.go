package protocol

import "errors"

var (
	// Framing errors
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
	ErrShortFrame    = errors.New("short frame")

	// Handshake errors
	ErrIncompatibleVersion = errors.New("incompatible version")
	ErrHandshakeRejected   = errors.New("handshake rejected")
	ErrSummaryMismatch     = errors.New("worker summary does not match result frame")
)
