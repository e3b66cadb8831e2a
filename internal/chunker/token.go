package chunker

import (
	"fmt"

	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when no encoding or model name is configured.
const DefaultEncoding = "cl100k_base"

// Tokenizer converts between text and language-model token ids.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TiktokenTokenizer implements Tokenizer with tiktoken BPE encodings.
type TiktokenTokenizer struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads an encoding by name, or by model name when
// the value is not a known encoding.
func NewTiktokenTokenizer(encodingOrModel string) (*TiktokenTokenizer, error) {
	if encodingOrModel == "" {
		encodingOrModel = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encodingOrModel)
	if err != nil {
		enc, err = tiktoken.EncodingForModel(encodingOrModel)
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingOrModel, err)
		}
	}
	return &TiktokenTokenizer{name: encodingOrModel, enc: enc}, nil
}

func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Name returns the encoding or model name the tokenizer was created with.
func (t *TiktokenTokenizer) Name() string {
	return t.name
}

// ChunkTokens is ChunkText measured in tokens: cfg.ChunkChars and
// cfg.Overlap count tokens rather than characters.
func ChunkTokens(text string, doc *document.Document, cfg Config, tok Tokenizer) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: token chunking requires a tokenizer", ErrInvalidConfig)
	}

	var chunks []document.Chunk
	w := &window[int]{
		size:    cfg.ChunkChars,
		overlap: cfg.Overlap,
		emit: func(part []int, _, _ int) {
			chunks = append(chunks, document.Chunk{
				Text: tok.Decode(part),
				Name: fmt.Sprintf("%s chunk %d", docName(doc), len(chunks)),
				Doc:  doc,
			})
		},
	}
	w.add(tok.Encode(text), 1)
	w.flush()

	return chunks, nil
}
