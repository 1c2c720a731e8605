package insights

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and truncates prompt content against a token budget.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

// TiktokenTokenizer uses the BPE encoding of the target model.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the encoding for model, falling back to
// cl100k_base for models tiktoken does not know (such as Gemini).
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("loading token encoding: %w", err)
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *TiktokenTokenizer) Truncate(text string, maxTokens int) string {
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

// approxTokenizer estimates four runes per token. It is used when no BPE
// encoding can be loaded, for example without network access.
type approxTokenizer struct{}

const runesPerToken = 4

func (approxTokenizer) Count(text string) int {
	return (utf8.RuneCountInString(text) + runesPerToken - 1) / runesPerToken
}

func (approxTokenizer) Truncate(text string, maxTokens int) string {
	limit := maxTokens * runesPerToken
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}
