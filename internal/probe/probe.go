// Package probe infers the portal's clock state from the controls it offers.
//
// A page that offers "clock in" means the user is clocked out and vice versa.
package probe

import (
	"context"
	"fmt"

	"autoclock/internal/model"
	"autoclock/internal/page"
)

type Prober struct {
	matcher *page.Matcher
}

func New(matcher *page.Matcher) *Prober {
	if matcher == nil {
		matcher = page.DefaultMatcher()
	}
	return &Prober{matcher: matcher}
}

// Report explains a verdict.
type Report struct {
	State       model.ClockState `json:"state"`
	InControls  []page.Element   `json:"in_controls"`
	OutControls []page.Element   `json:"out_controls"`
	InMatch     string           `json:"in_match"`
	OutMatch    string           `json:"out_match"`
}

// Detect scans doc. A scan failure yields StateError with the cause.
func (p *Prober) Detect(ctx context.Context, doc page.Document) (model.ClockState, error) {
	els, err := doc.Elements(ctx)
	if err != nil {
		return model.StateError, fmt.Errorf("scan page: %w", err)
	}
	return p.Classify(els), nil
}

// Classify applies the inversion rule. When both kinds of controls are
// present only an exact label on exactly one side decides.
func (p *Prober) Classify(els []page.Element) model.ClockState {
	in := p.matcher.Best(els, model.ActionIn)
	out := p.matcher.Best(els, model.ActionOut)

	switch {
	case in != page.MatchNone && out == page.MatchNone:
		return model.StateOut
	case out != page.MatchNone && in == page.MatchNone:
		return model.StateIn
	case in == page.MatchExact && out != page.MatchExact:
		return model.StateOut
	case out == page.MatchExact && in != page.MatchExact:
		return model.StateIn
	default:
		return model.StateUnknown
	}
}

func (p *Prober) Explain(els []page.Element) Report {
	return Report{
		State:       p.Classify(els),
		InControls:  p.matcher.Candidates(els, model.ActionIn),
		OutControls: p.matcher.Candidates(els, model.ActionOut),
		InMatch:     p.matcher.Best(els, model.ActionIn).String(),
		OutMatch:    p.matcher.Best(els, model.ActionOut).String(),
	}
}
