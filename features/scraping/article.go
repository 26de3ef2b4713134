package scraping

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped subtrees never contribute article text.
var boilerplate = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Form:     true,
}

var inline = map[atom.Atom]bool{
	atom.A:      true,
	atom.B:      true,
	atom.I:      true,
	atom.Em:     true,
	atom.Strong: true,
	atom.Span:   true,
	atom.Small:  true,
	atom.Code:   true,
	atom.Mark:   true,
	atom.Sub:    true,
	atom.Sup:    true,
}

type article struct {
	Title   string
	Content string
}

func parseArticle(r io.Reader) (article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return article{}, err
	}
	return article{Title: extractTitle(doc), Content: extractText(doc)}, nil
}

// extractTitle prefers og:title, then meta name=title, then <title>, then
// the first <h1>.
func extractTitle(doc *html.Node) string {
	var ogTitle, metaTitle, docTitle, h1 string
	walk(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.Meta:
			content := strings.TrimSpace(attr(n, "content"))
			if content == "" {
				return true
			}
			if ogTitle == "" && attr(n, "property") == "og:title" {
				ogTitle = content
			}
			if metaTitle == "" && attr(n, "name") == "title" {
				metaTitle = content
			}
		case atom.Title:
			if docTitle == "" {
				docTitle = strings.TrimSpace(textOf(n))
			}
		case atom.H1:
			if h1 == "" {
				h1 = collapse(textOf(n))
			}
		}
		return true
	})
	for _, t := range []string{ogTitle, metaTitle, docTitle, h1} {
		if t != "" {
			return t
		}
	}
	return ""
}

// extractText returns the paragraphs of the main content container:
// the first <article>, else <main>, else <body>. Containers without
// paragraphs fall back to all of their visible text.
func extractText(doc *html.Node) string {
	root := find(doc, atom.Article)
	if root == nil {
		root = find(doc, atom.Main)
	}
	if root == nil {
		root = find(doc, atom.Body)
	}
	if root == nil {
		return ""
	}

	var paragraphs []string
	walk(root, func(n *html.Node) bool {
		if boilerplate[n.DataAtom] {
			return false
		}
		if n.DataAtom == atom.P {
			if p := collapse(visibleText(n)); p != "" {
				paragraphs = append(paragraphs, p)
			}
			return false
		}
		return true
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n")
	}
	return collapse(visibleText(root))
}

func walk(n *html.Node, visit func(*html.Node) bool) {
	if n.Type == html.ElementNode && !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
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
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

func visibleText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode && boilerplate[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
		if n.Type == html.ElementNode && !inline[n.DataAtom] {
			b.WriteByte(' ')
		}
	}
	rec(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
