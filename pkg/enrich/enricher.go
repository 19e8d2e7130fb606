package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"writeup-rag-be/pkg/llm"
)

// enrichTemperature keeps the model close to the source text; enrichment
// rewrites and condenses, it must not invent.
const enrichTemperature = 0.2

// Enrichment is the model-derived content for one task's section of a
// write-up: a cleaned-up rewrite, a retrieval summary and technical keywords.
type Enrichment struct {
	RewrittenText string
	Summary       string
	Keywords      []string
}

// EnrichError identifies which enrichment job failed for which task, so the
// pipeline can record a precise failure reason in the manifest.
type EnrichError struct {
	TaskName string
	Job      string
	Err      error
}

func (e *EnrichError) Error() string {
	return fmt.Sprintf("enrich %s for task %q: %v", e.Job, e.TaskName, e.Err)
}

func (e *EnrichError) Unwrap() error {
	return e.Err
}

// Enricher derives rewrite, summary and keywords for a task through an LLM.
// The summary and keyword jobs both consume the rewrite output, not the raw
// text: the rewrite already isolated this task's section.
type Enricher struct {
	provider llm.LLMProvider
}

func New(provider llm.LLMProvider) *Enricher {
	return &Enricher{provider: provider}
}

func (e *Enricher) Enrich(ctx context.Context, eventName, taskName, writeup string) (*Enrichment, error) {
	rewritten, err := e.generate(ctx, rewritePrompt, eventName, taskName, writeup)
	if err != nil {
		return nil, &EnrichError{TaskName: taskName, Job: "rewrite", Err: err}
	}

	summary, err := e.generate(ctx, summarizePrompt, eventName, taskName, rewritten)
	if err != nil {
		return nil, &EnrichError{TaskName: taskName, Job: "summarize", Err: err}
	}

	rawKeywords, err := e.generate(ctx, keywordPrompt, eventName, taskName, rewritten)
	if err != nil {
		return nil, &EnrichError{TaskName: taskName, Job: "keywords", Err: err}
	}
	keywords, err := parseKeywords(rawKeywords)
	if err != nil {
		return nil, &EnrichError{TaskName: taskName, Job: "keywords", Err: err}
	}

	return &Enrichment{
		RewrittenText: strings.TrimSpace(rewritten),
		Summary:       strings.TrimSpace(summary),
		Keywords:      keywords,
	}, nil
}

func (e *Enricher) generate(ctx context.Context, template, eventName, taskName, writeup string) (string, error) {
	prompt := renderPrompt(template, eventName, taskName, writeup)
	return e.provider.Generate(ctx, prompt, llm.WithTemperature(enrichTemperature))
}

// parseKeywords decodes the model's JSON array. Models regularly wrap the
// array in a markdown code fence despite the instructions, so fences are
// stripped before decoding.
func parseKeywords(raw string) ([]string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var keywords []string
	if err := json.Unmarshal([]byte(cleaned), &keywords); err != nil {
		return nil, fmt.Errorf("parse keyword array from %q: %w", raw, err)
	}
	return keywords, nil
}
