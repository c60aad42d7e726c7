package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/extract"
	"github.com/SaharaSurfer/trustbit-rag-challenge/metrics"
	"github.com/SaharaSurfer/trustbit-rag-challenge/retriever"
	"github.com/SaharaSurfer/trustbit-rag-challenge/router"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// Comparer names the winning entity from per-entity summaries. Extractors
// may optionally implement it; without one the orchestrator compares
// numeric operands itself.
type Comparer interface {
	Compare(ctx context.Context, question string, summaries string) (*schema.SubAnswer, error)
}

// Orchestrator drives one question end to end: plan, retrieve, extract,
// validate, aggregate. It is stateless across questions and safe for
// concurrent use.
type Orchestrator struct {
	Router    *router.Router
	Retriever *retriever.Hybrid
	Extractor extract.Extractor
	Registry  *router.Registry
	// SubqueryTimeout bounds one subquery's retrieve+extract round trip.
	// A timed-out subquery yields the sentinel; its siblings keep running.
	SubqueryTimeout time.Duration
	// MaxConcurrent caps in-flight questions during batch runs.
	MaxConcurrent int
}

// Answer resolves one question. Unresolvable entities and unavailable
// indexes return errors; everything else degrades to the sentinel value.
func (o *Orchestrator) Answer(ctx context.Context, q schema.Question) (*schema.Answer, error) {
	plan, err := o.Router.Plan(ctx, q)
	if err != nil {
		return nil, err
	}

	if plan.Kind == router.PlanSingle {
		sq := plan.Subqueries[0]
		sub, err := o.runSubquery(ctx, sq.Entity, sq.Text, q.Kind)
		if err != nil {
			return nil, err
		}
		o.validate(sub)
		return &schema.Answer{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Kind:         q.Kind,
			Value:        sub.Value,
			References:   o.references(sq.Entity, sub.RelevantPages),
		}, nil
	}

	agg, err := o.answerComparative(ctx, q, plan)
	if err != nil {
		return nil, err
	}
	return &schema.Answer{
		QuestionID:   q.ID,
		QuestionText: q.Text,
		Kind:         q.Kind,
		Value:        agg.Comparison,
		References:   agg.References,
	}, nil
}

// answerComparative fans the plan's subqueries out, one goroutine each,
// and joins the sub-answers by entity. Comparative operands are extracted
// as numbers.
func (o *Orchestrator) answerComparative(ctx context.Context, q schema.Question, plan *router.QueryPlan) (*schema.AggregatedAnswer, error) {
	subs := make([]*schema.SubAnswer, len(plan.Subqueries))
	g, gctx := errgroup.WithContext(ctx)
	for i, sq := range plan.Subqueries {
		g.Go(func() error {
			sub, err := o.runSubquery(gctx, sq.Entity, sq.Text, schema.KindNumber)
			if err != nil {
				return err
			}
			o.validate(sub)
			subs[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := &schema.AggregatedAnswer{PerEntity: make(map[string]schema.SubAnswer, len(subs))}
	complete := true
	for _, sub := range subs {
		agg.PerEntity[sub.Entity] = *sub
		if sub.Value.IsFallback() {
			complete = false
		}
	}

	// A comparison over a missing operand would silently compare the
	// remaining entities; fall back instead.
	if !complete {
		logger.Infof("orchestrator: comparative %q has missing operands, answering fallback", q.Text)
		agg.Comparison = schema.Fallback(schema.KindComparative)
		return agg, nil
	}

	agg.Comparison = o.compare(ctx, q.Text, plan, subs)
	if !agg.Comparison.IsFallback() {
		for _, sub := range subs {
			agg.References = append(agg.References, o.references(sub.Entity, sub.RelevantPages)...)
		}
	}
	return agg, nil
}

// compare picks the winning entity. The extractor's comparer is consulted
// first when present; a local numeric comparison is the fallback.
func (o *Orchestrator) compare(ctx context.Context, question string, plan *router.QueryPlan, subs []*schema.SubAnswer) schema.Value {
	if c, ok := o.Extractor.(Comparer); ok {
		var sb strings.Builder
		for _, sub := range subs {
			fmt.Fprintf(&sb, "%s: %v (%s)\n", sub.Entity, sub.Value.Number, sub.Summary)
		}
		if res, err := c.Compare(ctx, question, sb.String()); err == nil && !res.Value.IsFallback() {
			for _, sq := range plan.Subqueries {
				if strings.EqualFold(res.Value.Text, sq.Entity) {
					return schema.Value{Kind: schema.KindComparative, Text: sq.Entity}
				}
			}
			logger.Warnf("orchestrator: comparer named unknown entity %q, comparing locally", res.Value.Text)
		} else if err != nil {
			logger.Warnf("orchestrator: comparer failed, comparing locally: %v", err)
		}
	}

	winner := subs[0]
	if wantsLowest(question) {
		for _, sub := range subs[1:] {
			if sub.Value.Number < winner.Value.Number {
				winner = sub
			}
		}
	} else {
		for _, sub := range subs[1:] {
			if sub.Value.Number > winner.Value.Number {
				winner = sub
			}
		}
	}
	return schema.Value{Kind: schema.KindComparative, Text: winner.Entity}
}

var lowestMarkers = []string{"lowest", "least", "smallest", "fewest", "minimum", "lower", "less"}

func wantsLowest(question string) bool {
	q := strings.ToLower(question)
	for _, m := range lowestMarkers {
		if strings.Contains(q, m) {
			return true
		}
	}
	return false
}

// runSubquery retrieves evidence and extracts one typed answer. Only an
// unavailable index is fatal; timeouts, empty evidence and extraction
// failures all degrade to the sentinel.
func (o *Orchestrator) runSubquery(ctx context.Context, entity, text string, kind schema.QuestionKind) (*schema.SubAnswer, error) {
	if o.SubqueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.SubqueryTimeout)
		defer cancel()
	}

	ev, err := o.Retriever.Retrieve(ctx, text, entity)
	if err != nil {
		if errors.Is(err, retriever.ErrIndexUnavailable) {
			return nil, err
		}
		logger.Warnf("orchestrator: retrieval for %q failed, answering fallback: %v", entity, err)
		return fallbackSub(entity, kind), nil
	}
	if len(ev) == 0 {
		logger.Infof("orchestrator: no evidence for %q, answering fallback", entity)
		return fallbackSub(entity, kind), nil
	}

	sub, err := o.Extractor.Extract(ctx, text, ev, kind)
	if err != nil {
		metrics.IncExtractionFailure(string(kind))
		logger.Warnf("orchestrator: extraction for %q failed, answering fallback: %v", entity, err)
		return fallbackSub(entity, kind), nil
	}
	sub.Entity = entity
	return sub, nil
}

func fallbackSub(entity string, kind schema.QuestionKind) *schema.SubAnswer {
	return &schema.SubAnswer{Entity: entity, Value: schema.Fallback(kind)}
}

// validate enforces the evidence constraint on one sub-answer in place.
// Sentinel and negative values carry no page claims; any other value must
// cite at least one retrieved page or it is rejected to the sentinel.
// Validating twice changes nothing.
func (o *Orchestrator) validate(sub *schema.SubAnswer) {
	if sub.Value.IsFallback() || isNegative(sub.Value) {
		sub.RelevantPages = nil
		return
	}
	// Comparative extraction carries no page claims at all, so there is
	// nothing to check a winner against; it just carries no references.
	if sub.Value.Kind == schema.KindComparative {
		sub.RelevantPages = nil
		return
	}

	seen := sub.Evidence.Pages()
	kept := sub.RelevantPages[:0]
	for _, p := range sub.RelevantPages {
		if _, ok := seen[p]; ok {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		metrics.IncValidationRejected()
		logger.Warnf("orchestrator: answer for %q cites no retrieved page, rejecting", sub.Entity)
		sub.Value = schema.Fallback(sub.Value.Kind)
		sub.RelevantPages = nil
		return
	}
	sort.Ints(kept)
	sub.RelevantPages = dedupInts(kept)
}

// isNegative reports values that are genuine answers but assert absence:
// they are kept, yet cite no sources.
func isNegative(v schema.Value) bool {
	switch v.Kind {
	case schema.KindBoolean:
		return !v.Bool
	case schema.KindNames:
		return len(v.Names) == 0
	}
	return false
}

func dedupInts(sorted []int) []int {
	out := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			out = append(out, p)
		}
	}
	return out
}

// references maps validated pages to submission source references.
func (o *Orchestrator) references(entity string, pages []int) []schema.SourceReference {
	if len(pages) == 0 {
		return nil
	}
	sha, ok := o.Registry.SHA1(entity)
	if !ok {
		logger.Warnf("orchestrator: no document sha1 for %q, dropping references", entity)
		return nil
	}
	refs := make([]schema.SourceReference, 0, len(pages))
	for _, p := range pages {
		refs = append(refs, schema.SourceReference{PDFSHA1: sha, PageIndex: p})
	}
	return refs
}

// AnswerAll answers a question batch. Per-question failures degrade to
// sentinel answers; an unavailable index aborts the whole batch.
func (o *Orchestrator) AnswerAll(ctx context.Context, questions []schema.Question) ([]schema.Answer, error) {
	answers := make([]schema.Answer, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	if o.MaxConcurrent > 0 {
		g.SetLimit(o.MaxConcurrent)
	}
	for i, q := range questions {
		g.Go(func() error {
			ans, err := o.Answer(gctx, q)
			if err != nil {
				if errors.Is(err, retriever.ErrIndexUnavailable) {
					return err
				}
				logger.Warnf("orchestrator: question %q failed, answering fallback: %v", q.Text, err)
				ans = &schema.Answer{
					QuestionID:   q.ID,
					QuestionText: q.Text,
					Kind:         q.Kind,
					Value:        schema.Fallback(q.Kind),
				}
			}
			answers[i] = *ans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}
