package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"flowmentor/internal/logging"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxDocumentBytes = 8 << 20

// HTTPExtractor fetches a URL and reads it without a browser. Script-rendered
// content is not visible to it.
type HTTPExtractor struct {
	client *http.Client
}

// NewHTTPExtractor returns an extractor using client, or a client with the
// given timeout when client is nil.
func NewHTTPExtractor(client *http.Client, timeout time.Duration) *HTTPExtractor {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPExtractor{client: client}
}

// ExtractHTML returns the document source.
func (e *HTTPExtractor) ExtractHTML(ctx context.Context, tab Tab) (string, error) {
	body, err := e.fetch(ctx, tab)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ExtractText returns the visible text of main, article or body.
func (e *HTTPExtractor) ExtractText(ctx context.Context, tab Tab) (string, error) {
	body, err := e.fetch(ctx, tab)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", tab.URL, err)
	}
	root := findFirst(doc, atom.Main)
	if root == nil {
		root = findFirst(doc, atom.Article)
	}
	if root == nil {
		root = findFirst(doc, atom.Body)
	}
	if root == nil {
		return "", nil
	}
	return visibleText(root), nil
}

func (e *HTTPExtractor) fetch(ctx context.Context, tab Tab) ([]byte, error) {
	if err := checkRestricted(tab); err != nil {
		return nil, err
	}
	if tab.URL == "" {
		return nil, fmt.Errorf("no URL to fetch")
	}

	timer := logging.StartTimer(logging.CategoryExtract, "http.fetch")
	defer timer.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tab.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", tab.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", tab.URL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tab.URL, err)
	}
	logging.ExtractDebug("Fetched %s: %d bytes", tab.URL, len(body))
	return body, nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// blockElements end a line in the rendered text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Pre: true, atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Blockquote: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
}

// visibleText approximates innerText: script and style content is skipped,
// block elements break lines, runs of blank lines collapse.
func visibleText(root *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(root)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
