package discovery

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is one row of a filings index page.
type Document struct {
	URL         string
	Title       string
	PublishedAt time.Time
	// Dated is false when no cell parsed and PublishedAt is the fallback.
	Dated bool
}

// ParseIndex extracts documents from a filings index page. Each table row
// with a link yields one document: the first link's href resolved against
// base, its text as the title, and the first cell whose text parses with one
// of layouts as the publication time. Rows with no date get fallback.
func ParseIndex(r io.Reader, base *url.URL, layouts []string, loc *time.Location, fallback time.Time) ([]Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse index html: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	var docs []Document
	seen := make(map[string]struct{})

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			if doc, ok := parseRow(n, base, layouts, loc, fallback); ok {
				if _, dup := seen[doc.URL]; !dup {
					seen[doc.URL] = struct{}{}
					docs = append(docs, doc)
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return docs, nil
}

func parseRow(tr *html.Node, base *url.URL, layouts []string, loc *time.Location, fallback time.Time) (Document, bool) {
	link := findFirst(tr, func(n *html.Node) bool {
		return n.DataAtom == atom.A && attr(n, "href") != ""
	})
	if link == nil {
		return Document{}, false
	}

	ref, err := url.Parse(strings.TrimSpace(attr(link, "href")))
	if err != nil {
		return Document{}, false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return Document{}, false
	}

	doc := Document{
		URL:         abs.String(),
		Title:       collapseSpace(textOf(link)),
		PublishedAt: fallback,
	}

	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Td {
			continue
		}
		if ts, ok := parseDate(collapseSpace(textOf(c)), layouts, loc); ok {
			doc.PublishedAt = ts
			doc.Dated = true
			break
		}
	}
	return doc, true
}

// parseDate tries the whole cell text and then the text after a "Label: " prefix.
func parseDate(text string, layouts []string, loc *time.Location) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	candidates := []string{text}
	if i := strings.Index(text, ": "); i >= 0 {
		candidates = append(candidates, strings.TrimSpace(text[i+2:]))
	}
	for _, s := range candidates {
		for _, layout := range layouts {
			if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
