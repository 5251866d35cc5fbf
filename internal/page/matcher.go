package page

import (
	"regexp"
	"sort"
	"strings"

	"autoclock/internal/model"
)

// MatchKind ranks how well a label matches an action vocabulary.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchPartial
	MatchExact
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchPartial:
		return "partial"
	default:
		return "none"
	}
}

// Matcher holds the label vocabulary shared by the probe and the executor.
type Matcher struct {
	exact   map[model.Action]map[string]bool
	partial map[model.Action]*regexp.Regexp
	confirm *regexp.Regexp
	hints   map[model.Action][]string
}

// DefaultMatcher knows the portal's clock-in and clock-out controls.
func DefaultMatcher() *Matcher {
	return &Matcher{
		exact: map[model.Action]map[string]bool{
			model.ActionIn:  wordSet("clock in", "clock-in", "clockin", "web clock in", "web clock-in", "web clockin"),
			model.ActionOut: wordSet("clock out", "clock-out", "clockout", "web clock out", "web clock-out", "web clockout"),
		},
		partial: map[model.Action]*regexp.Regexp{
			model.ActionIn:  regexp.MustCompile(`\bclock[\s-]?in\b`),
			model.ActionOut: regexp.MustCompile(`\bclock[\s-]?out\b`),
		},
		confirm: regexp.MustCompile(`^(yes|confirm|continue|proceed|ok)\b`),
		hints: map[model.Action][]string{
			model.ActionIn:  {"btn-white", "mx-4"},
			model.ActionOut: {"btn-danger"},
		},
	}
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Normalize lowercases s and collapses every run of whitespace (NBSP included) to one space.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Match ranks label against the vocabulary of action.
func (m *Matcher) Match(label string, action model.Action) MatchKind {
	norm := Normalize(label)
	if norm == "" {
		return MatchNone
	}
	if m.exact[action][norm] {
		return MatchExact
	}
	if re, ok := m.partial[action]; ok && re.MatchString(norm) {
		return MatchPartial
	}
	return MatchNone
}

// IsConfirm reports whether label reads like a confirmation control.
func (m *Matcher) IsConfirm(label string) bool {
	return m.confirm.MatchString(Normalize(label))
}

// Hinted reports whether el carries one of the class hints for action.
func (m *Matcher) Hinted(el Element, action model.Action) bool {
	for _, c := range m.hints[action] {
		if el.HasClass(c) {
			return true
		}
	}
	return false
}

// Candidates returns the elements matching action, best first: exact
// matches before partial ones, class-hinted elements first within a tier,
// document order otherwise.
func (m *Matcher) Candidates(els []Element, action model.Action) []Element {
	type ranked struct {
		el     Element
		kind   MatchKind
		hinted bool
	}

	var found []ranked
	for _, el := range els {
		kind := m.Match(el.Label, action)
		if kind == MatchNone {
			continue
		}
		found = append(found, ranked{el: el, kind: kind, hinted: m.Hinted(el, action)})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].kind != found[j].kind {
			return found[i].kind > found[j].kind
		}
		return found[i].hinted && !found[j].hinted
	})

	out := make([]Element, len(found))
	for i, r := range found {
		out[i] = r.el
	}
	return out
}

// Best returns the strongest match kind for action among els.
func (m *Matcher) Best(els []Element, action model.Action) MatchKind {
	best := MatchNone
	for _, el := range els {
		if k := m.Match(el.Label, action); k > best {
			best = k
		}
	}
	return best
}
