package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/metrics"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// ErrUnresolvableEntity means no known entity could be identified in the
// question. It is fatal for that question and must propagate: silently
// defaulting to single-entity mode would retrieve wrong or incomplete
// evidence.
var ErrUnresolvableEntity = errors.New("no resolvable entity in question")

// PlanKind tags the routing decision.
type PlanKind string

const (
	PlanSingle      PlanKind = "single"
	PlanComparative PlanKind = "comparative"
)

// Subquery is one per-entity retrieval unit of a plan.
type Subquery struct {
	Entity string
	Text   string
}

// QueryPlan is the routed, possibly decomposed representation of a
// question. A single plan has exactly one subquery carrying the original
// question; a comparative plan has one subquery per entity, in
// first-mention order.
type QueryPlan struct {
	Kind       PlanKind
	Subqueries []Subquery
}

// Rephraser rewrites a comparative question into standalone per-entity
// questions. Implementations may fail; the router then falls back to the
// deterministic template policy.
type Rephraser interface {
	Rephrase(ctx context.Context, question string, entities []string) (map[string]string, error)
}

// Router classifies questions and builds query plans. A question is
// comparative iff it references more than one known entity.
type Router struct {
	Registry  *Registry
	Rephraser Rephraser // optional
}

// Plan resolves entities and builds the query plan for a question.
// Pre-tagged entities on the question bypass registry resolution.
func (r *Router) Plan(ctx context.Context, q schema.Question) (*QueryPlan, error) {
	entities := q.Entities
	if len(entities) == 0 {
		entities = r.Registry.Resolve(q.Text)
	}
	if len(entities) == 0 {
		metrics.IncRouterDecision("unresolved")
		return nil, fmt.Errorf("%w: %q", ErrUnresolvableEntity, q.Text)
	}

	if len(entities) == 1 {
		metrics.IncRouterDecision(string(PlanSingle))
		logger.Infof("router: SINGLE pipeline for %s", entities[0])
		return &QueryPlan{
			Kind:       PlanSingle,
			Subqueries: []Subquery{{Entity: entities[0], Text: q.Text}},
		}, nil
	}

	metrics.IncRouterDecision(string(PlanComparative))
	logger.Infof("router: COMPARATIVE pipeline for %v", entities)
	return &QueryPlan{
		Kind:       PlanComparative,
		Subqueries: r.decompose(ctx, q.Text, entities),
	}, nil
}

// decompose builds one subquery per entity, preserving entity order. The
// rephraser output is consulted per entity; any entity it misses (or a
// rephraser failure) gets the template rewrite so the policy stays
// uniform and deterministic.
func (r *Router) decompose(ctx context.Context, question string, entities []string) []Subquery {
	var rephrased map[string]string
	if r.Rephraser != nil {
		m, err := r.Rephraser.Rephrase(ctx, question, entities)
		if err != nil {
			logger.Warnf("router: rephrasing failed, using template rewrite: %v", err)
		} else {
			rephrased = m
		}
	}

	subs := make([]Subquery, 0, len(entities))
	for _, e := range entities {
		text := rephrased[e]
		if text == "" {
			text = ScopedQuestion(question, e)
		}
		subs = append(subs, Subquery{Entity: e, Text: text})
	}
	return subs
}

// ScopedQuestion is the deterministic rewrite policy for comparative
// decomposition: the original question, scoped to one entity. Keeping the
// full question text preserves the metric being asked about.
func ScopedQuestion(question, entity string) string {
	return fmt.Sprintf("Regarding %s only: %s", entity, question)
}
