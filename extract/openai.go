package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/tidwall/gjson"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/config"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// OpenAIExtractor extracts typed answers via the chat completions API
// with strict JSON-schema structured outputs. It also implements the
// router's Rephraser for comparative decomposition.
type OpenAIExtractor struct {
	client        openai.Client
	model         string
	temperature   float64
	maxTokens     int
	contextBudget int
	retries       int
}

// NewOpenAIExtractor builds the extractor from configuration.
func NewOpenAIExtractor(cfg config.LLMConfig) (*OpenAIExtractor, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIExtractor{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		contextBudget: cfg.ContextBudget,
		retries:       cfg.Retries,
	}, nil
}

// Extract answers one subquery from its evidence.
func (e *OpenAIExtractor) Extract(ctx context.Context, query string, evidence schema.Evidence, kind schema.QuestionKind) (*schema.SubAnswer, error) {
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", e.buildContext(evidence), query)
	raw, err := e.call(ctx, systemPrompt(kind), user, "answer", answerSchema(kind))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	sub := &schema.SubAnswer{
		Value:    parseFinalAnswer(raw, kind),
		Analysis: gjson.Get(raw, "step_by_step_analysis").String(),
		Summary:  gjson.Get(raw, "reasoning_summary").String(),
		Evidence: evidence,
	}
	for _, p := range gjson.Get(raw, "relevant_pages").Array() {
		sub.RelevantPages = append(sub.RelevantPages, int(p.Int()))
	}
	logger.Infof("extract: kind=%s query=%q value_na=%v pages=%v", kind, query, sub.Value.NA, sub.RelevantPages)
	return sub, nil
}

// Rephrase decomposes a comparative question into per-entity questions.
func (e *OpenAIExtractor) Rephrase(ctx context.Context, question string, entities []string) (map[string]string, error) {
	user := fmt.Sprintf("Question: %s\nCompanies: %s", question, strings.Join(entities, "; "))
	raw, err := e.call(ctx, systemRephrase, user, "rephrased_questions", rephraseSchema())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	out := make(map[string]string, len(entities))
	for _, item := range gjson.Get(raw, "questions").Array() {
		name := strings.TrimSpace(item.Get("company_name").String())
		if q := item.Get("question").String(); name != "" && q != "" {
			out[name] = q
		}
	}
	return out, nil
}

// Compare names the winning entity given per-entity data summaries.
func (e *OpenAIExtractor) Compare(ctx context.Context, question string, summaries string) (*schema.SubAnswer, error) {
	user := fmt.Sprintf("Per-company data:\n%s\n\nQuestion: %s", summaries, question)
	raw, err := e.call(ctx, systemCompare, user, "answer", answerSchema(schema.KindComparative))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return &schema.SubAnswer{
		Value:    parseFinalAnswer(raw, schema.KindComparative),
		Analysis: gjson.Get(raw, "step_by_step_analysis").String(),
		Summary:  gjson.Get(raw, "reasoning_summary").String(),
	}, nil
}

// call runs one structured-output completion with fixed-delay retries,
// the way the pipeline has always retried flaky LLM calls.
func (e *OpenAIExtractor) call(ctx context.Context, system, user, schemaName string, schemaDef map[string]any) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(e.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schemaDef,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if e.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(e.maxTokens))
	}

	var content string
	err := retry.Do(
		func() error {
			resp, err := e.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("empty completion")
			}
			content = resp.Choices[0].Message.Content
			if !gjson.Valid(content) {
				return fmt.Errorf("malformed structured output")
			}
			return nil
		},
		retry.Attempts(uint(e.retries)),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return content, nil
}

// parseFinalAnswer decodes the union-typed final_answer field. "N/A" (for
// any kind) maps to the fallback sentinel.
func parseFinalAnswer(raw string, kind schema.QuestionKind) schema.Value {
	fa := gjson.Get(raw, "final_answer")
	if !fa.Exists() || (fa.Type == gjson.String && strings.EqualFold(fa.String(), "N/A")) {
		return schema.Fallback(kind)
	}
	v := schema.Value{Kind: kind}
	switch kind {
	case schema.KindNumber:
		if fa.Type != gjson.Number {
			return schema.Fallback(kind)
		}
		v.Number = fa.Float()
	case schema.KindBoolean:
		v.Bool = fa.Bool()
	case schema.KindNames:
		if !fa.IsArray() {
			return schema.Fallback(kind)
		}
		for _, n := range fa.Array() {
			v.Names = append(v.Names, n.String())
		}
		if v.Names == nil {
			v.Names = []string{}
		}
	default:
		if fa.String() == "" {
			return schema.Fallback(kind)
		}
		v.Text = fa.String()
	}
	return v
}
