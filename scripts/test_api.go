package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func printResult(resp *http.Response, body []byte) {
	color.Green("Status: %s", resp.Status)
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		fmt.Println(string(body))
		return
	}
	prettyPrint(parsed)
}

func main() {
	color.Cyan("🚀 Starting Write-up RAG API Smoke Test\n")

	// 1. Validation error path
	color.Yellow("\n1. Ask with a too-short question (expect 400)")
	resp, body, err := sendRequest("POST", "/ask/v1", map[string]string{"question": "hi"})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	printResult(resp, body)

	// 2. Real question
	color.Yellow("\n2. Ask a real question")
	resp, body, err = sendRequest("POST", "/ask/v1", map[string]string{
		"question": "How do I exploit a format string vulnerability to leak libc?",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	printResult(resp, body)

	// 3. Repeat the question to exercise the answer cache
	color.Yellow("\n3. Repeat the same question (expect cached: true)")
	resp, body, err = sendRequest("POST", "/ask/v1", map[string]string{
		"question": "How do I exploit a format string vulnerability to leak libc?",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	printResult(resp, body)

	// 4. Run status for a known run id (pass as argv)
	if len(os.Args) > 1 {
		runId := os.Args[1]
		color.Yellow("\n4. Show run status for %s", runId)
		resp, body, err = sendRequest("GET", "/pipeline/v1/runs/"+runId, nil)
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		printResult(resp, body)
	} else {
		color.Yellow("\n4. Skipping run status (pass a run id as the first argument)")
	}

	color.Cyan("\nDone.")
}
