package platform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
)

// MatchUiSelector walks roots depth-first and returns every node matching
// sel, in document order. Adapters whose host has no native legacy search use
// it to implement Device.FindObject.
func MatchUiSelector(sel *selector.UiSelector, roots []Node) ([]Node, error) {
	var re *regexp.Regexp
	if sel.TextMatches != "" {
		var err error
		re, err = selector.CompileTextMatches(sel.TextMatches)
		if err != nil {
			return nil, core.ErrInvalidSelector.
				WithMessagef("invalid textMatches pattern %q", sel.TextMatches).
				WithCause(err)
		}
	}

	var out []Node
	var walk func(n Node, index int)
	walk = func(n Node, index int) {
		if n == nil {
			return
		}
		if matchesUiSelector(sel, re, n, index) {
			out = append(out, n)
		}
		for i, c := range n.Children() {
			walk(c, i)
		}
	}
	for i, r := range roots {
		walk(r, i)
	}
	return out, nil
}

func matchesUiSelector(sel *selector.UiSelector, re *regexp.Regexp, n Node, index int) bool {
	text, _ := n.Attribute(AttrText)
	desc, _ := n.Attribute(AttrContentDesc)

	if sel.Text != "" && text != sel.Text {
		return false
	}
	if sel.TextContains != "" && !strings.Contains(text, sel.TextContains) {
		return false
	}
	if sel.TextStartsWith != "" && !strings.HasPrefix(text, sel.TextStartsWith) {
		return false
	}
	if re != nil && !re.MatchString(text) {
		return false
	}
	if !attrEquals(n, AttrResourceID, sel.ResourceID) ||
		!attrEquals(n, AttrClass, sel.ClassName) ||
		!attrEquals(n, AttrPackage, sel.PackageName) {
		return false
	}
	if sel.Description != "" && desc != sel.Description {
		return false
	}
	if sel.DescriptionContains != "" && !strings.Contains(desc, sel.DescriptionContains) {
		return false
	}

	states := map[string]*bool{
		AttrClickable:  sel.Clickable,
		AttrEnabled:    sel.Enabled,
		AttrChecked:    sel.Checked,
		AttrSelected:   sel.Selected,
		AttrScrollable: sel.Scrollable,
	}
	for name, want := range states {
		if want != nil && BoolAttribute(n, name) != *want {
			return false
		}
	}

	if sel.Index != nil {
		if v, ok := n.Attribute(AttrIndex); ok {
			if i, err := strconv.Atoi(v); err == nil {
				index = i
			}
		}
		if index != *sel.Index {
			return false
		}
	}
	return true
}

func attrEquals(n Node, name, want string) bool {
	if want == "" {
		return true
	}
	v, _ := n.Attribute(name)
	return v == want
}

// BoolAttribute reads a "true"/"false" attribute; absent reads as false.
func BoolAttribute(n Node, name string) bool {
	v, _ := n.Attribute(name)
	return v == "true"
}
