package contracts

import "errors"

// Sentinel errors shared across the pipeline.
// Only storage and input errors ever reach API callers; the rest are
// recovered by fallbacks inside the component that raises them.
var (
	ErrProviderUnavailable   = errors.New("inference provider unavailable")
	ErrAllProvidersExhausted = errors.New("all inference providers exhausted")
	ErrUnparsableInference   = errors.New("unparsable inference output")
	ErrNoCandidates          = errors.New("no candidates for category")
	ErrStoreUnavailable      = errors.New("report store unavailable")
	ErrInvalidRange          = errors.New("invalid date range")
	ErrNotFound              = errors.New("not found")
)
