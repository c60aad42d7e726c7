package schema

import "encoding/json"

// Chunk is one indexed passage of a parsed annual report. Chunks are
// immutable once indexed; everything downstream refers to them by ID.
type Chunk struct {
	ID        string         `json:"id"`
	Entity    string         `json:"entity"`
	Text      string         `json:"text"`
	PageIndex int            `json:"page_index"`
	Ordinal   int            `json:"ordinal"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CandidateSource identifies which index produced a candidate.
type CandidateSource string

const (
	SourceSparse CandidateSource = "sparse"
	SourceDense  CandidateSource = "dense"
)

// Candidate is a transient retrieval hit, produced per search call and
// never persisted.
type Candidate struct {
	Chunk  Chunk
	Score  float64
	Source CandidateSource
}

// SearchResult pairs a chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Evidence is a ranked evidence set: scores non-increasing, no duplicate
// chunk IDs, length bounded by the configured top-N. An empty Evidence is
// a valid outcome meaning "no evidence", not an error.
type Evidence []SearchResult

// ChunkIDs returns the chunk IDs in rank order.
func (e Evidence) ChunkIDs() []string {
	ids := make([]string, 0, len(e))
	for _, r := range e {
		ids = append(ids, r.Chunk.ID)
	}
	return ids
}

// Pages returns the set of page indices covered by the evidence.
func (e Evidence) Pages() map[int]struct{} {
	pages := make(map[int]struct{}, len(e))
	for _, r := range e {
		pages[r.Chunk.PageIndex] = struct{}{}
	}
	return pages
}

// QuestionKind classifies the expected answer type.
type QuestionKind string

const (
	KindNumber      QuestionKind = "number"
	KindName        QuestionKind = "name"
	KindBoolean     QuestionKind = "boolean"
	KindNames       QuestionKind = "names"
	KindComparative QuestionKind = "comparative"
)

// Question is one input entry of a question set.
type Question struct {
	ID       string       `json:"id,omitempty"`
	Text     string       `json:"text"`
	Kind     QuestionKind `json:"kind"`
	Entities []string     `json:"entities,omitempty"`
}

// Value is the typed answer payload. NA is the fallback sentinel meaning
// "not determinable from evidence" and is distinct from zero, false or an
// empty list. At most one of the payload fields is meaningful, selected
// by Kind.
type Value struct {
	Kind   QuestionKind
	NA     bool
	Number float64
	Text   string
	Bool   bool
	Names  []string
}

// Fallback returns the sentinel value for a question kind.
func Fallback(kind QuestionKind) Value {
	return Value{Kind: kind, NA: true}
}

// IsFallback reports whether the value is the sentinel.
func (v Value) IsFallback() bool { return v.NA }

// MarshalJSON serializes the value in submission format: "N/A" for
// undeterminable numbers and names, false for booleans, an empty list
// for name lists.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.NA {
		switch v.Kind {
		case KindBoolean:
			return json.Marshal(false)
		case KindNames:
			return json.Marshal([]string{})
		default:
			return json.Marshal("N/A")
		}
	}
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Number)
	case KindBoolean:
		return json.Marshal(v.Bool)
	case KindNames:
		if v.Names == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.Names)
	default:
		return json.Marshal(v.Text)
	}
}

// SubAnswer is the extraction result for one (entity, subquery) pair.
type SubAnswer struct {
	Entity        string
	Value         Value
	RelevantPages []int
	Analysis      string
	Summary       string
	Evidence      Evidence
}

// SourceReference points at one page of a source document in the
// submission output.
type SourceReference struct {
	PDFSHA1   string `json:"pdf_sha1"`
	PageIndex int    `json:"page_index"`
}

// Answer is one validated answer, ready for the submission file.
type Answer struct {
	QuestionID   string            `json:"question_id,omitempty"`
	QuestionText string            `json:"question_text"`
	Kind         QuestionKind      `json:"kind"`
	Value        Value             `json:"value"`
	References   []SourceReference `json:"references"`
}

// AggregatedAnswer keys comparative sub-answers by entity and carries the
// derived comparison outcome plus provenance.
type AggregatedAnswer struct {
	PerEntity  map[string]SubAnswer
	Comparison Value
	References []SourceReference
}

// Submission is the whole-batch output record.
type Submission struct {
	TeamEmail      string   `json:"team_email"`
	SubmissionName string   `json:"submission_name"`
	Answers        []Answer `json:"answers"`
}
