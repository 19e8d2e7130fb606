package contextbuilder

import (
	"fmt"
	"strings"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/pkg/rag/resolver"
)

// Citation points an answer back at the write-up it came from.
type Citation struct {
	Id        string `json:"id"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
}

// AssembledContext is the grounding block handed to the answering model,
// plus the citations that parallel it. Grounded is false when no documents
// survived resolution; the caller must refuse to answer from model memory in
// that case rather than fabricate.
type AssembledContext struct {
	Text      string
	Citations []Citation
	Grounded  bool
}

// Builder concatenates resolved write-ups in rank order under a character
// budget. Documents are included whole or not at all: a truncated exploit
// walkthrough is worse grounding than one document fewer.
type Builder struct {
	charBudget int
}

func New(charBudget int) *Builder {
	return &Builder{charBudget: charBudget}
}

// Assemble builds the context block from rank-ordered documents. Returns
// entity.ErrNoGrounding when docs is empty.
func (b *Builder) Assemble(docs []resolver.ResolvedDocument) (*AssembledContext, error) {
	if len(docs) == 0 {
		return &AssembledContext{Grounded: false}, entity.ErrNoGrounding
	}

	var sb strings.Builder
	var citations []Citation
	seen := make(map[string]bool)

	for _, doc := range docs {
		w := doc.Writeup
		if seen[w.Id] {
			continue
		}

		section := renderSection(w)
		if b.charBudget > 0 && sb.Len()+len(section) > b.charBudget {
			// Budget reached; lower-ranked documents are dropped whole.
			break
		}

		sb.WriteString(section)
		seen[w.Id] = true
		citations = append(citations, Citation{
			Id:        w.Id,
			Title:     w.Title(),
			SourceURL: w.SourceURL,
		})
	}

	if len(citations) == 0 {
		// The budget was too small for even the best document.
		return &AssembledContext{Grounded: false}, entity.ErrNoGrounding
	}

	return &AssembledContext{
		Text:      sb.String(),
		Citations: citations,
		Grounded:  true,
	}, nil
}

func renderSection(w *entity.Writeup) string {
	text := w.RewrittenText
	if text == "" {
		text = w.FullText
	}
	return fmt.Sprintf("### %s\nSource: %s\n\n%s\n\n", w.Title(), w.SourceURL, text)
}
