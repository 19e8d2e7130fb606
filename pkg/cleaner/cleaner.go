package cleaner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"writeup-rag-be/internal/entity"
)

// skipElements never contribute visible write-up text.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"form":     true,
}

// Cleaner extracts readable text from fetched HTML and scores it against a
// minimum length. Write-up pages that reduce to a stub ("writeup coming
// soon", a bare link list) are below any useful retrieval quality and get
// rejected instead of enriched.
type Cleaner struct {
	minRunes int
}

func New(minRunes int) *Cleaner {
	return &Cleaner{minRunes: minRunes}
}

// Clean parses raw HTML and returns its visible text. Block elements become
// paragraph breaks and pre/code content keeps its internal formatting, since
// exploit snippets lose meaning when their whitespace is collapsed.
func (c *Cleaner) Clean(raw []byte) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	extract(doc, &sb, false, 0)
	return collapse(sb.String()), nil
}

// Check returns entity.ErrLowQuality when text is shorter than the
// configured minimum, with the counts in the message for the manifest's
// reject reason.
func (c *Cleaner) Check(text string) error {
	runes := utf8.RuneCountInString(text)
	if runes < c.minRunes {
		return fmt.Errorf("%w: %d runes of text, minimum %d", entity.ErrLowQuality, runes, c.minRunes)
	}
	return nil
}

func extract(n *html.Node, sb *strings.Builder, preformatted bool, depth int) {
	if depth > 100 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if preformatted {
			sb.WriteString(n.Data)
			return
		}
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
		return
	case html.ElementNode:
		if skipElements[n.Data] {
			return
		}
		switch n.Data {
		case "p", "div", "section", "article", "table", "ul", "ol",
			"h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
			sb.WriteString("\n\n")
		case "br", "li", "tr":
			sb.WriteString("\n")
		case "pre":
			sb.WriteString("\n\n")
			preformatted = true
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		extract(child, sb, preformatted, depth+1)
	}

	if n.Type == html.ElementNode && n.Data == "pre" {
		sb.WriteString("\n\n")
	}
}

// collapse trims trailing spaces and squeezes runs of blank lines down to a
// single paragraph break.
func collapse(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, trimmed)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
