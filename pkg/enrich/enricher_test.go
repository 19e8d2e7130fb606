package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"writeup-rag-be/pkg/llm"
)

// fakeProvider answers each job by keying off the prompt's trailing label.
type fakeProvider struct {
	rewrite  string
	summary  string
	keywords string
	fail     string // job label to fail on
	prompts  []string
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return f.Generate(ctx, history[len(history)-1].Content, opts...)
}

func (f *fakeProvider) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	f.prompts = append(f.prompts, prompt)
	switch {
	case strings.Contains(prompt, "Rewritten Text:\n") && strings.Contains(prompt, "Original Text:"):
		if f.fail == "rewrite" {
			return "", errors.New("model overloaded")
		}
		return f.rewrite, nil
	case strings.Contains(prompt, "RAG Summary:"):
		if f.fail == "summarize" {
			return "", errors.New("model overloaded")
		}
		return f.summary, nil
	case strings.Contains(prompt, "Keywords:"):
		if f.fail == "keywords" {
			return "", errors.New("model overloaded")
		}
		return f.keywords, nil
	}
	return "", errors.New("unrecognized prompt")
}

func TestEnrichHappyPath(t *testing.T) {
	provider := &fakeProvider{
		rewrite:  "The service is vulnerable to SSTI in the name field.\n",
		summary:  " Exploit SSTI via jinja2 payload to read the flag. ",
		keywords: "```json\n[\"ssti\", \"jinja2\", \"flask\"]\n```",
	}

	enrichment, err := New(provider).Enrich(context.Background(), "ExampleCTF 2026", "flask-notes", "raw cleaned text")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	if enrichment.RewrittenText != "The service is vulnerable to SSTI in the name field." {
		t.Errorf("RewrittenText = %q", enrichment.RewrittenText)
	}
	if enrichment.Summary != "Exploit SSTI via jinja2 payload to read the flag." {
		t.Errorf("Summary = %q", enrichment.Summary)
	}
	if len(enrichment.Keywords) != 3 || enrichment.Keywords[0] != "ssti" {
		t.Errorf("Keywords = %v", enrichment.Keywords)
	}
}

func TestEnrichInjectsContextAndChainsRewrite(t *testing.T) {
	provider := &fakeProvider{
		rewrite:  "rewritten section",
		summary:  "summary",
		keywords: `["nmap"]`,
	}

	_, err := New(provider).Enrich(context.Background(), "ExampleCTF 2026", "baby-pwn", "full page text")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if len(provider.prompts) != 3 {
		t.Fatalf("got %d prompts, want 3", len(provider.prompts))
	}

	if !strings.Contains(provider.prompts[0], "'baby-pwn'") || !strings.Contains(provider.prompts[0], "'ExampleCTF 2026'") {
		t.Errorf("rewrite prompt missing task context:\n%s", provider.prompts[0])
	}
	if !strings.Contains(provider.prompts[0], "full page text") {
		t.Errorf("rewrite prompt missing document text")
	}

	// Summary and keywords consume the rewrite output, not the raw text.
	for _, p := range provider.prompts[1:] {
		if !strings.Contains(p, "rewritten section") {
			t.Errorf("downstream prompt does not chain the rewrite:\n%s", p)
		}
		if strings.Contains(p, "full page text") {
			t.Errorf("downstream prompt leaked the raw text:\n%s", p)
		}
	}
}

func TestEnrichReportsFailedJob(t *testing.T) {
	tests := []struct {
		job string
	}{
		{"rewrite"},
		{"summarize"},
		{"keywords"},
	}

	for _, tt := range tests {
		t.Run(tt.job, func(t *testing.T) {
			provider := &fakeProvider{
				rewrite:  "rewritten",
				summary:  "summary",
				keywords: `["a"]`,
				fail:     tt.job,
			}
			_, err := New(provider).Enrich(context.Background(), "event", "task", "text")

			var enrichErr *EnrichError
			if !errors.As(err, &enrichErr) {
				t.Fatalf("expected *EnrichError, got %v", err)
			}
			if enrichErr.Job != tt.job {
				t.Errorf("Job = %q, want %q", enrichErr.Job, tt.job)
			}
			if enrichErr.TaskName != "task" {
				t.Errorf("TaskName = %q", enrichErr.TaskName)
			}
		})
	}
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"plain array", `["a", "b"]`, 2, false},
		{"fenced array", "```json\n[\"a\"]\n```", 1, false},
		{"bare fence", "```\n[\"a\", \"b\", \"c\"]\n```", 3, false},
		{"prose instead of json", "the keywords are sqli and xss", 0, true},
		{"empty array", `[]`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeywords(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseKeywords: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d keywords, want %d", len(got), tt.want)
			}
		})
	}
}
