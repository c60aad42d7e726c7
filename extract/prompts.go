package extract

import "github.com/SaharaSurfer/trustbit-rag-challenge/schema"

const systemBase = `You are a financial analyst answering questions about a company's annual report.
You are given context extracted from the report, delimited by page markers.
Answer strictly from the context. Pay special attention to the wording of the
question to avoid being tricked: sometimes the context contains a value similar
to the requested one, but not the requested value itself. If the metric would
require a calculation or aggregation not present in the text, it is not
determinable. Respond with the requested JSON object only.`

const instructionNumber = `
The final_answer must be an exact metric number, or "N/A":
- For percentages (58.3%) answer 58.3
- For negative values ((2,124)) answer -2124
- For values reported in thousands (4,970.5 in thousands) answer 4970500
- If the currency differs from the one in the question, answer "N/A"
- If the value is not directly stated and would need calculation, answer "N/A"`

const instructionBoolean = `
The final_answer must be true or false. If the question asks "Did X happen?"
and the text says X happened, answer true. If the text says X did not happen,
answer false. If the text mentions nothing about X, answer false.`

const instructionName = `
The final_answer must be the specific name of the entity, person or product,
extracted exactly as it appears in the context, or "N/A" if not available.`

const instructionNames = `
The final_answer must be a list of names extracted exactly as they appear.
If asked for positions, return only titles (e.g. "CEO"). If asked for names,
return full names. No duplicates. If nothing is found, return an empty list.`

const systemCompare = `You are a financial analyst comparing companies. You are
given per-company extracted data summaries. Name the winning company exactly as
it is written in the question, or answer "N/A" if the comparison cannot be made
from the data. Respond with the requested JSON object only.`

const systemRephrase = `You decompose a comparative financial question into
standalone questions, one per company. Each rephrased question must target
exactly one company in isolation, remove references to the other companies, and
preserve the metric being asked about. Use the company names exactly as
provided. Respond with the requested JSON object only.`

func systemPrompt(kind schema.QuestionKind) string {
	switch kind {
	case schema.KindNumber:
		return systemBase + instructionNumber
	case schema.KindBoolean:
		return systemBase + instructionBoolean
	case schema.KindNames:
		return systemBase + instructionNames
	case schema.KindComparative:
		return systemCompare
	default:
		return systemBase + instructionName
	}
}

// answerSchema builds the strict JSON schema for a question kind. The
// chain-of-thought fields come first so the model reasons before it
// commits to final_answer.
func answerSchema(kind schema.QuestionKind) map[string]any {
	props := map[string]any{
		"step_by_step_analysis": map[string]any{
			"type":        "string",
			"description": "Detailed step-by-step analysis of the answer, at least 5 steps.",
		},
		"reasoning_summary": map[string]any{
			"type":        "string",
			"description": "Concise summary of the reasoning, around 50 words.",
		},
	}
	required := []string{"step_by_step_analysis", "reasoning_summary", "final_answer"}

	switch kind {
	case schema.KindNumber:
		props["final_answer"] = map[string]any{
			"anyOf": []any{
				map[string]any{"type": "number"},
				map[string]any{"type": "string", "enum": []string{"N/A"}},
			},
		}
	case schema.KindBoolean:
		props["final_answer"] = map[string]any{"type": "boolean"}
	case schema.KindNames:
		props["final_answer"] = map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		}
	default: // name, comparative
		props["final_answer"] = map[string]any{"type": "string"}
	}

	if kind != schema.KindComparative {
		props["relevant_pages"] = map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "integer"},
			"description": "Page numbers containing information directly used to answer.",
		}
		required = append(required, "relevant_pages")
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// rephraseSchema is the output schema of the decomposition call.
func rephraseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"company_name": map[string]any{"type": "string"},
						"question":     map[string]any{"type": "string"},
					},
					"required":             []string{"company_name", "question"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"questions"},
		"additionalProperties": false,
	}
}
