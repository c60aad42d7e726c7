package extract

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// buildContext concatenates evidence blocks with page delimiters, keeping
// retrieval order, and truncates whole blocks once the token budget is
// exhausted.
func (e *OpenAIExtractor) buildContext(evidence schema.Evidence) string {
	var (
		sb     strings.Builder
		budget = e.contextBudget
		enc    *tiktoken.Tiktoken
	)
	if budget > 0 {
		var err error
		enc, err = tiktoken.EncodingForModel(e.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			logger.Warnf("extract: token encoding unavailable, context not budgeted: %v", err)
			budget = 0
		}
	}

	used := 0
	for i, sr := range evidence {
		block := fmt.Sprintf("--- Page %d ---\n%s", sr.Chunk.PageIndex, sr.Chunk.Text)
		if budget > 0 {
			n := len(enc.Encode(block, nil, nil))
			if used+n > budget {
				logger.Debugf("extract: context budget reached after %d of %d blocks", i, len(evidence))
				break
			}
			used += n
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(block)
	}
	return sb.String()
}
