package lexgraph

import (
	"errors"

	"github.com/bbiangul/lexgraph/embed"
	"github.com/bbiangul/lexgraph/graph"
	"github.com/bbiangul/lexgraph/parser"
)

var (
	// ErrInputNotFound is returned when the corpus database or the
	// documents directory does not exist.
	ErrInputNotFound = errors.New("lexgraph: input not found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("lexgraph: invalid configuration")

	// ErrInvariantViolation is matched by every graph construction
	// invariant failure. The run aborts and nothing is written.
	ErrInvariantViolation = graph.ErrInvariant

	// ErrEmbeddingFailed is returned when a single text cannot be embedded.
	ErrEmbeddingFailed = embed.ErrEmbeddingFailed

	// ErrDimensionMismatch is returned when a backend's vectors do not
	// match the dimension recorded in the output store.
	ErrDimensionMismatch = embed.ErrDimensionMismatch

	// ErrUnsupportedFormat is returned for unrecognized document formats.
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat

	// ErrUnknownBackend is returned for an embedding provider outside the
	// supported set.
	ErrUnknownBackend = embed.ErrUnknownBackend
)
