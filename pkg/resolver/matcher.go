package resolver

import (
	"regexp"
	"strings"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/platform"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
)

// byMatcher matches a by-criteria selector against window roots.
type byMatcher struct {
	by     *selector.By
	textRe *regexp.Regexp
	states map[string]bool
}

func newByMatcher(by *selector.By) (*byMatcher, error) {
	m := &byMatcher{by: by, states: by.StateFilters()}
	if by.TextMatches != "" {
		re, err := regexp.Compile("^(?:" + by.TextMatches + ")$")
		if err != nil {
			return nil, core.ErrInvalidSelector.
				WithMessagef("invalid textMatches pattern %q", by.TextMatches).
				WithCause(err)
		}
		m.textRe = re
	}
	return m, nil
}

// findMatch returns the first matching node in depth-first order, or nil.
func (m *byMatcher) findMatch(roots []platform.Node) platform.Node {
	var found platform.Node
	m.walk(roots, func(n platform.Node) bool {
		found = n
		return false
	})
	return found
}

// findMatches returns every matching node in depth-first order.
func (m *byMatcher) findMatches(roots []platform.Node) []platform.Node {
	var out []platform.Node
	m.walk(roots, func(n platform.Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// walk calls visit for each match until visit returns false.
func (m *byMatcher) walk(roots []platform.Node, visit func(platform.Node) bool) {
	var rec func(n platform.Node, depth int) bool
	rec = func(n platform.Node, depth int) bool {
		if n == nil {
			return true
		}
		if m.by.MaxDepth > 0 && depth > m.by.MaxDepth {
			return true
		}
		if m.matches(n) && !visit(n) {
			return false
		}
		for _, c := range n.Children() {
			if !rec(c, depth+1) {
				return false
			}
		}
		return true
	}
	for _, r := range roots {
		if !rec(r, 0) {
			return
		}
	}
}

func (m *byMatcher) matches(n platform.Node) bool {
	by := m.by
	text, _ := n.Attribute(platform.AttrText)

	if by.Text != "" && text != by.Text {
		return false
	}
	if by.TextContains != "" && !strings.Contains(text, by.TextContains) {
		return false
	}
	if by.TextStartsWith != "" && !strings.HasPrefix(text, by.TextStartsWith) {
		return false
	}
	if m.textRe != nil && !m.textRe.MatchString(text) {
		return false
	}

	exact := []struct{ attr, want string }{
		{platform.AttrResourceID, by.Res},
		{platform.AttrClass, by.Clazz},
		{platform.AttrContentDesc, by.Desc},
		{platform.AttrPackage, by.Pkg},
	}
	for _, e := range exact {
		if e.want == "" {
			continue
		}
		if v, _ := n.Attribute(e.attr); v != e.want {
			return false
		}
	}
	if by.DescContains != "" {
		desc, _ := n.Attribute(platform.AttrContentDesc)
		if !strings.Contains(desc, by.DescContains) {
			return false
		}
	}

	for attr, want := range m.states {
		if platform.BoolAttribute(n, attr) != want {
			return false
		}
	}
	return true
}
