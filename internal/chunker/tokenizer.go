package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer produces an integer token count for arbitrary text. The
// chunker is parameterized on this interface rather than depending on any
// fixed byte-per-token ratio (§4.2).
type Tokenizer interface {
	Count(text string) int
}

// bpeTokenizer wraps a cl100k_base BPE encoding, the default called for by
// §4.2.
type bpeTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewBPETokenizer loads the cl100k_base encoding used by default.
func NewBPETokenizer() (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading cl100k_base encoding: %w", err)
	}
	return &bpeTokenizer{enc: enc}, nil
}

func (t *bpeTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}
