package page

import (
	"context"
	"errors"
)

// ErrChannel marks failures talking to the page (scan or click). They are
// worth retrying; a missing element is not.
var ErrChannel = errors.New("page channel failure")

// Element is a visible interactive control of a page.
type Element struct {
	// Index is the position in document order at scan time.
	Index   int      `json:"index"`
	Tag     string   `json:"tag"`
	Label   string   `json:"label"`
	Classes []string `json:"classes,omitempty"`
}

// HasClass reports whether the element carries class c.
func (e Element) HasClass(c string) bool {
	for _, have := range e.Classes {
		if have == c {
			return true
		}
	}
	return false
}

// Document is a live or captured page the probe and executor work on.
type Document interface {
	// Elements lists visible buttons, links, button inputs and role=button nodes.
	Elements(ctx context.Context) ([]Element, error)
	Click(ctx context.Context, el Element) error
}
