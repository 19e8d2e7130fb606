package chunker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultTargetTokens is the window size used for the detailed corpus.
	DefaultTargetTokens = 500
	// DefaultOverlapRatio yields 75 overlapping tokens at the default window.
	DefaultOverlapRatio = 0.15

	encodingName = "cl100k_base"
)

// Chunk is a derived, overlapping token window of a document. It has no
// independent identity: its id is always recomputable from the parent id and
// ordinal, and parsing the id recovers both exactly.
type Chunk struct {
	Id         string
	ParentId   string
	Ordinal    int
	StartToken int
	EndToken   int
	Text       string
}

// Chunker splits text into overlapping windows counted in tokens, not
// characters, using a fixed deterministic tokenizer so the same text always
// yields the same windows.
type Chunker struct {
	targetTokens int
	overlap      int
	encoding     *tiktoken.Tiktoken
}

func New(targetTokens int, overlapRatio float64) (*Chunker, error) {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if overlapRatio < 0 {
		overlapRatio = 0
	}
	overlap := int(float64(targetTokens)*overlapRatio + 0.5)
	if overlap >= targetTokens {
		return nil, fmt.Errorf("overlap %d must be smaller than target window %d", overlap, targetTokens)
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encodingName, err)
	}
	return &Chunker{
		targetTokens: targetTokens,
		overlap:      overlap,
		encoding:     encoding,
	}, nil
}

// Overlap returns the configured number of overlapping tokens between
// consecutive windows.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits text into windows of at most targetTokens tokens. Consecutive
// windows overlap by the configured token count; the windows fully cover the
// input with no gaps. Text shorter than one window produces exactly one chunk
// equal to the whole text.
func (c *Chunker) Chunk(parentId, text string) ([]Chunk, error) {
	if strings.Contains(parentId, Separator) {
		return nil, fmt.Errorf("parent id %q must not contain %q", parentId, Separator)
	}
	if parentId == "" {
		return nil, fmt.Errorf("parent id must not be empty")
	}

	// Special tokens in the source text are encoded as plain text, matching
	// how the documents were written, not how a model would consume them.
	tokens := c.encoding.Encode(text, []string{"all"}, nil)

	if len(tokens) <= c.targetTokens {
		id, err := ChunkId(parentId, 0)
		if err != nil {
			return nil, err
		}
		return []Chunk{{
			Id:         id,
			ParentId:   parentId,
			Ordinal:    0,
			StartToken: 0,
			EndToken:   len(tokens),
			Text:       text,
		}}, nil
	}

	step := c.targetTokens - c.overlap
	var chunks []Chunk
	for start := 0; start < len(tokens); start += step {
		end := start + c.targetTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		ordinal := start / step
		id, err := ChunkId(parentId, ordinal)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{
			Id:         id,
			ParentId:   parentId,
			Ordinal:    ordinal,
			StartToken: start,
			EndToken:   end,
			Text:       c.encoding.Decode(tokens[start:end]),
		})

		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}

// Separator joins parent id and ordinal in a chunk id. It is reserved:
// generated document identifiers are numeric tokens that never contain it,
// and ChunkId rejects any parent id that does. That makes ParseId a pure,
// lossless inverse instead of a convention.
const Separator = "_"

// ChunkId derives the identifier of the ordinal-th chunk of parentId.
func ChunkId(parentId string, ordinal int) (string, error) {
	if strings.Contains(parentId, Separator) {
		return "", fmt.Errorf("parent id %q must not contain %q", parentId, Separator)
	}
	if ordinal < 0 {
		return "", fmt.Errorf("ordinal must not be negative, got %d", ordinal)
	}
	return parentId + Separator + strconv.Itoa(ordinal), nil
}

// ParseId recovers the parent id and ordinal from a chunk id produced by
// ChunkId.
func ParseId(id string) (parentId string, ordinal int, err error) {
	i := strings.LastIndex(id, Separator)
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("malformed chunk id %q", id)
	}
	parentId = id[:i]
	if strings.Contains(parentId, Separator) {
		return "", 0, fmt.Errorf("malformed chunk id %q: parent contains separator", id)
	}
	ordinalPart := id[i+1:]
	if len(ordinalPart) > 1 && ordinalPart[0] == '0' {
		return "", 0, fmt.Errorf("malformed chunk id %q: ordinal has leading zeros", id)
	}
	ordinal, err = strconv.Atoi(ordinalPart)
	if err != nil || ordinal < 0 {
		return "", 0, fmt.Errorf("malformed chunk id %q: bad ordinal", id)
	}
	return parentId, ordinal, nil
}

// IsChunkId reports whether id parses as a chunk id. Summary-corpus hits are
// plain document ids and fail this check.
func IsChunkId(id string) bool {
	_, _, err := ParseId(id)
	return err == nil
}
