package enrich

import "strings"

// The prompt templates take three placeholders: $event_name and $task_name
// locate the right section when one page covers several challenges, and
// $writeup carries the cleaned document text.

const rewritePrompt = `
The following is a cybersecurity CTF (Capture The Flag) write-up that may be part of a larger text document.
Your task is to find the specific section for the challenge named '$task_name' from the event '$event_name'.
Once you have located the correct section, rewrite ONLY that part to improve clarity, fix grammatical errors, and improve the overall structure.

The goal is to make the technical explanation as clear and easy to understand as possible for a downstream AI model.
Do not add any new information or summaries. Focus only on rewriting the existing content for clarity.

Original Text:
---
$writeup
---

Rewritten Text:
`

const summarizePrompt = `
The following text is a rewritten CTF (Capture The Flag) write-up that may be part of a larger document.
Your task is to find the specific section for the challenge named '$task_name' from the event '$event_name'.
Once located, create a RAG-optimized summary of that section of approximately 350 tokens.

The summary should focus on the technical explanation of the challenge and its solution.
It must be concise, clear, and structured for easy parsing by a downstream AI model.

Rewritten Text:
---
$writeup
---

RAG Summary:
`

const keywordPrompt = `
The following text is a rewritten CTF (Capture The Flag) write-up that may be part of a larger document.
Your task is to find the specific section for the challenge named '$task_name' from the event '$event_name'.
After locating the correct section, analyze its content and generate a list of all relevant technical keywords.

The keywords should cover vulnerabilities, tools, protocols, and techniques mentioned.
Return the keywords as a single, valid JSON array of strings. Do not include any other text or explanation.

Example:
["sql injection", "nmap", "buffer overflow", "SSTI"]

Rewritten Text:
---
$writeup
---

Keywords:
`

func renderPrompt(template, eventName, taskName, writeup string) string {
	return strings.NewReplacer(
		"$event_name", eventName,
		"$task_name", taskName,
		"$writeup", writeup,
	).Replace(template)
}
