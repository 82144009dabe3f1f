package partsearch

import "errors"

// Sentinel errors for common error conditions
var (
	// Source errors
	ErrSourceUnreadable = errors.New("record source unreadable")
	ErrMalformedRecord  = errors.New("malformed record")

	// Search setup errors
	ErrPatternTooLong     = errors.New("pattern too long")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrInvalidRecordCount = errors.New("invalid record count")
	ErrCorruptRecordBlock = errors.New("record block is not a whole number of records")

	// Execution errors
	ErrLaunchFailed = errors.New("parallel launch failed")
	ErrTransport    = errors.New("transport failure")

	// Aggregation errors
	ErrChunkMismatch  = errors.New("partial result does not match its chunk")
	ErrOutOfOrder     = errors.New("partial result out of worker order")
	ErrMissingPartial = errors.New("missing partial result")
)
