package extract

import (
	"context"
	"errors"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// Extractor is the answer-extraction collaborator: it reads the evidence
// for one subquery and produces a typed sub-answer. Implementations call
// an external model; failures surface as ErrExtraction and are recovered
// by the caller with the fallback sentinel, never propagated across
// sibling subqueries.
type Extractor interface {
	Extract(ctx context.Context, query string, evidence schema.Evidence, kind schema.QuestionKind) (*schema.SubAnswer, error)
}

// ErrExtraction marks a failed extraction call (malformed structured
// output, timeout, transport error).
var ErrExtraction = errors.New("extraction failed")
