package retriever

import (
	"context"
	"errors"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// Index is the unified search contract of the retrieval backends. Search
// is scoped to one entity: chunks tagged with other entities are excluded
// inside the index, before ranking. Implementations are read-only during
// the query phase and safe for concurrent use.
type Index interface {
	Type() string
	Search(ctx context.Context, query string, entity string, k int) ([]schema.Candidate, error)
}

// ErrIndexUnavailable marks a backend that cannot be queried at all. It is
// fatal for the whole batch and must propagate instead of being masked as
// empty evidence, which would look like a legitimate "no data" result.
var ErrIndexUnavailable = errors.New("retrieval index unavailable")
