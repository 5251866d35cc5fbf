package page

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Snapshot is a Document parsed from saved HTML. Clicks are recorded, not executed.
type Snapshot struct {
	elements []Element

	mu      sync.Mutex
	clicked []Element
}

// ParseSnapshot reads an HTML page and collects its visible interactive controls.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	s := &Snapshot{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isHidden(n) {
			return
		}
		if n.Type == html.ElementNode && isInteractive(n) {
			s.elements = append(s.elements, Element{
				Index:   len(s.elements),
				Tag:     n.Data,
				Label:   labelOf(n),
				Classes: strings.Fields(attr(n, "class")),
			})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return s, nil
}

// ParseSnapshotString is ParseSnapshot for an in-memory page.
func ParseSnapshotString(doc string) (*Snapshot, error) {
	return ParseSnapshot(strings.NewReader(doc))
}

func (s *Snapshot) Elements(_ context.Context) ([]Element, error) {
	out := make([]Element, len(s.elements))
	copy(out, s.elements)
	return out, nil
}

func (s *Snapshot) Click(_ context.Context, el Element) error {
	if el.Index < 0 || el.Index >= len(s.elements) || s.elements[el.Index].Label != el.Label {
		return fmt.Errorf("%w: element %d is stale", ErrChannel, el.Index)
	}

	s.mu.Lock()
	s.clicked = append(s.clicked, el)
	s.mu.Unlock()
	return nil
}

// Clicked returns the recorded clicks in order.
func (s *Snapshot) Clicked() []Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Element, len(s.clicked))
	copy(out, s.clicked)
	return out
}

func isInteractive(n *html.Node) bool {
	switch n.Data {
	case "button", "a":
		return true
	case "input":
		t := strings.ToLower(attr(n, "type"))
		return t == "button" || t == "submit"
	}
	return strings.EqualFold(attr(n, "role"), "button")
}

func isHidden(n *html.Node) bool {
	if hasAttr(n, "hidden") || strings.EqualFold(attr(n, "aria-hidden"), "true") {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func labelOf(n *html.Node) string {
	for _, candidate := range []string{textContent(n), attr(n, "value"), attr(n, "aria-label"), attr(n, "title")} {
		if label := strings.Join(strings.Fields(candidate), " "); label != "" {
			return label
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(node *html.Node) {
		if node.Type == html.ElementNode && isHidden(node) {
			return
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
