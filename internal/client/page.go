package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is a fetched follow-up destination, reduced to markdown.
type Page struct {
	URL      string
	Status   int
	Title    string
	Markdown string
}

// Navigator follows redirect destinations on the backend.
type Navigator struct {
	http     *HTTPClient
	policy   *bluemonday.Policy
	markdown *converter.Converter
}

// NewNavigator creates a navigator sharing h's base URL and transport.
func NewNavigator(h *HTTPClient) *Navigator {
	return &Navigator{
		http:   h,
		policy: bluemonday.UGCPolicy(),
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Follow fetches path and converts the response to a Page. Non-2xx
// responses still produce a page; the status is recorded.
func (n *Navigator) Follow(ctx context.Context, path string) (*Page, error) {
	target := n.http.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := n.http.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", path, err)
	}

	page := &Page{URL: target, Status: resp.StatusCode}
	if !isHTML(resp.Header.Get("Content-Type")) {
		page.Markdown = strings.TrimSpace(string(body))
		return page, nil
	}

	if doc, err := html.Parse(bytes.NewReader(body)); err == nil {
		page.Title = findTitle(doc)
	}

	clean := n.policy.SanitizeBytes(body)
	md, err := n.markdown.ConvertString(string(clean), converter.WithDomain(n.http.baseURL))
	if err != nil {
		return nil, fmt.Errorf("GET %s: convert: %w", path, err)
	}
	page.Markdown = strings.TrimSpace(md)
	return page, nil
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "text/html" || mt == "application/xhtml+xml")
}

// findTitle returns the text of the first <title>, or the first <h1>
// when the document has no title.
func findTitle(doc *html.Node) string {
	if t := findElementText(doc, atom.Title); t != "" {
		return t
	}
	return findElementText(doc, atom.H1)
}

func findElementText(n *html.Node, a atom.Atom) string {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return strings.TrimSpace(textOf(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findElementText(c, a); t != "" {
			return t
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
	}
	return sb.String()
}
