// Package selector describes the query formats a client can use to locate
// elements: by-criteria selectors matched by the server against window roots,
// legacy UiSelector chains delegated to the platform, and XPath, which is
// recognised but not supported by the resolver.
package selector

import (
	"fmt"
	"strings"
)

// Selector is a discriminated query. Each concrete type resolves through its
// own strategy; the resolver rejects types it has no strategy for.
type Selector interface {
	// Describe returns a human-readable description for logs and errors.
	Describe() string
}

// By is a by-criteria selector. Zero-value fields are not constrained.
type By struct {
	Text           string
	TextContains   string
	TextStartsWith string
	TextMatches    string // Regular expression matched against the whole text
	Res            string // Resource id, exact
	Clazz          string // Class name, exact
	Desc           string // Content description, exact
	DescContains   string
	Pkg            string

	Checkable     *bool
	Checked       *bool
	Clickable     *bool
	Enabled       *bool
	Focusable     *bool
	Focused       *bool
	LongClickable *bool
	Scrollable    *bool
	Selected      *bool

	MaxDepth int // 0 = unbounded
}

// Describe returns e.g. By[res=com.app:id/ok, clickable=true].
func (b *By) Describe() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("text", b.Text)
	add("textContains", b.TextContains)
	add("textStartsWith", b.TextStartsWith)
	add("textMatches", b.TextMatches)
	add("res", b.Res)
	add("clazz", b.Clazz)
	add("desc", b.Desc)
	add("descContains", b.DescContains)
	add("pkg", b.Pkg)
	for _, f := range b.flags() {
		if f.value != nil {
			parts = append(parts, fmt.Sprintf("%s=%t", f.name, *f.value))
		}
	}
	if b.MaxDepth > 0 {
		parts = append(parts, fmt.Sprintf("maxDepth=%d", b.MaxDepth))
	}
	return "By[" + strings.Join(parts, ", ") + "]"
}

type flag struct {
	name  string
	value *bool
}

// flags lists the boolean state filters keyed by node attribute name.
func (b *By) flags() []flag {
	return []flag{
		{"checkable", b.Checkable},
		{"checked", b.Checked},
		{"clickable", b.Clickable},
		{"enabled", b.Enabled},
		{"focusable", b.Focusable},
		{"focused", b.Focused},
		{"long-clickable", b.LongClickable},
		{"scrollable", b.Scrollable},
		{"selected", b.Selected},
	}
}

// StateFilters returns the set boolean filters keyed by node attribute name.
func (b *By) StateFilters() map[string]bool {
	out := make(map[string]bool)
	for _, f := range b.flags() {
		if f.value != nil {
			out[f.name] = *f.value
		}
	}
	return out
}

// IsEmpty returns true if no criteria are set.
func (b *By) IsEmpty() bool {
	return b.Text == "" &&
		b.TextContains == "" &&
		b.TextStartsWith == "" &&
		b.TextMatches == "" &&
		b.Res == "" &&
		b.Clazz == "" &&
		b.Desc == "" &&
		b.DescContains == "" &&
		b.Pkg == "" &&
		len(b.StateFilters()) == 0
}

// XPath is an XPath expression. The resolver has no strategy for it.
type XPath struct {
	Expr string
}

// Describe returns the expression.
func (x *XPath) Describe() string {
	return "XPath[" + x.Expr + "]"
}

// Bool returns a pointer to v, for filling state filters.
func Bool(v bool) *bool {
	return &v
}
