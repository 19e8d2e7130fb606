package ctftime

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/pkg/fetcher"
)

const DefaultBaseURL = "https://ctftime.org"

// Discoverer walks the CTFtime write-up listing and turns each new entry
// into a Task pointing at the page that actually holds the write-up text.
// Ids already ingested or known to be junk are skipped before any summary
// page is fetched.
type Discoverer struct {
	fetcher     *fetcher.Fetcher
	baseURL     string
	skip        map[string]bool
	maxWriteups int
}

func NewDiscoverer(f *fetcher.Fetcher, baseURL string, skip map[string]bool, maxWriteups int) *Discoverer {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if skip == nil {
		skip = make(map[string]bool)
	}
	return &Discoverer{
		fetcher:     f,
		baseURL:     baseURL,
		skip:        skip,
		maxWriteups: maxWriteups,
	}
}

// Discover lists write-ups page by page up to maxPages (0 = no limit) and
// returns a Task per new entry. A page that fails to fetch ends the walk with
// whatever was collected so far.
func (d *Discoverer) Discover(ctx context.Context, maxPages int) ([]*entity.Task, error) {
	var tasks []*entity.Task

	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		listing, err := d.fetcher.Fetch(ctx, fmt.Sprintf("%s/writeups?page=%d", d.baseURL, page))
		if err != nil {
			if len(tasks) > 0 {
				return tasks, nil
			}
			return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
		}

		ids, err := parseListing(string(listing))
		if err != nil {
			return tasks, fmt.Errorf("parse listing page %d: %w", page, err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if d.skip[id] {
				continue
			}
			if d.maxWriteups > 0 && len(tasks) >= d.maxWriteups {
				return tasks, nil
			}

			task, err := d.scrapeSummary(ctx, id)
			if err != nil {
				// One broken summary page must not end discovery.
				continue
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// scrapeSummary reads a write-up summary page for the event and task names
// and the location of the actual write-up. Entries that link an original
// write-up point there; entries with only embedded content point back at the
// summary page itself.
func (d *Discoverer) scrapeSummary(ctx context.Context, id string) (*entity.Task, error) {
	pageURL := fmt.Sprintf("%s/writeup/%s", d.baseURL, id)
	body, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	summary, err := parseSummary(string(body))
	if err != nil {
		return nil, err
	}

	sourceURL := summary.originalURL
	if sourceURL == "" {
		if !summary.hasEmbedded {
			return nil, fmt.Errorf("writeup %s has neither original link nor embedded content", id)
		}
		sourceURL = pageURL
	}

	return &entity.Task{
		CtftimeId: id,
		EventName: summary.eventName,
		TaskName:  summary.taskName,
		SourceURL: sourceURL,
	}, nil
}

// LoadSkipList reads one id per line; "#" starts a comment. A missing file
// is an empty list, the same as the first ever run.
func LoadSkipList(path string) (map[string]bool, error) {
	skip := make(map[string]bool)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return skip, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := strconv.Atoi(line); err != nil {
			continue
		}
		skip[line] = true
	}
	return skip, scanner.Err()
}

// AppendSkipList records ids at the end of the skip list file, one per line,
// so later runs never re-fetch a source that was already judged junk.
func AppendSkipList(path string, ids []string) error {
	if path == "" || len(ids) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(id)
		sb.WriteString("\n")
	}
	_, err = f.WriteString(sb.String())
	return err
}

// parseListing extracts write-up ids from the listing table's
// /writeup/<id> links, in page order.
func parseListing(page string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		href := attr(n, "href")
		id, ok := strings.CutPrefix(href, "/writeup/")
		if !ok || id == "" || strings.Contains(id, "/") {
			return
		}
		if _, err := strconv.Atoi(id); err != nil {
			return
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	})
	return ids, nil
}

type summaryPage struct {
	eventName   string
	taskName    string
	originalURL string
	hasEmbedded bool
}

func parseSummary(page string) (*summaryPage, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	summary := &summaryPage{
		eventName: "Unknown Event",
		taskName:  "Unknown Task",
	}
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "a":
			href := attr(n, "href")
			switch {
			case strings.HasPrefix(href, "/event/"):
				if text := nodeText(n); text != "" {
					summary.eventName = text
				}
			case strings.HasPrefix(href, "/task/"):
				if text := nodeText(n); text != "" {
					summary.taskName = text
				}
			default:
				if strings.Contains(nodeText(n), "Original writeup") && href != "" {
					summary.originalURL = href
				}
			}
		case "div":
			if strings.Contains(attr(n, "class"), "well") {
				summary.hasEmbedded = true
			}
		}
	})
	return summary, nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(sb.String())
}
