package device

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devicelab-dev/uia2-server/pkg/platform"
)

// Node is one element of a parsed hierarchy dump.
type Node struct {
	attrs    map[string]string
	children []*Node
	path     []int // child indexes from the dump's top level
}

// Attribute implements platform.Node.
func (n *Node) Attribute(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// Children implements platform.Node.
func (n *Node) Children() []platform.Node {
	out := make([]platform.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Path returns the node's child-index path.
func (n *Node) Path() []int {
	return append([]int(nil), n.path...)
}

// Hierarchy is one parsed dump. Each top-level node is one window root.
type Hierarchy struct {
	Roots []*Node
}

// Lookup follows a child-index path, returning nil when it leads nowhere.
func (h *Hierarchy) Lookup(path []int) *Node {
	if len(path) == 0 || path[0] >= len(h.Roots) {
		return nil
	}
	n := h.Roots[path[0]]
	for _, i := range path[1:] {
		if i >= len(n.children) {
			return nil
		}
		n = n.children[i]
	}
	return n
}

// ParseHierarchy parses uiautomator dump XML. Both the <node> format and the
// class-named element format are accepted; trailing text after the closing
// hierarchy tag (as printed by "uiautomator dump /dev/tty") is ignored.
func ParseHierarchy(xmlData string) (*Hierarchy, error) {
	if i := strings.LastIndex(xmlData, "</hierarchy>"); i >= 0 {
		xmlData = xmlData[:i+len("</hierarchy>")]
	}
	decoder := xml.NewDecoder(strings.NewReader(xmlData))

	h := &Hierarchy{}
	foundHierarchy := false

	var parseElement func(path []int) (*Node, error)
	parseElement = func(path []int) (*Node, error) {
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}

			switch t := token.(type) {
			case xml.StartElement:
				if t.Name.Local == "hierarchy" {
					foundHierarchy = true
					continue
				}

				n := &Node{attrs: make(map[string]string, len(t.Attr)+1), path: path}
				if t.Name.Local != "node" {
					n.attrs[platform.AttrClass] = t.Name.Local
				}
				for _, attr := range t.Attr {
					n.attrs[attr.Name.Local] = attr.Value
				}

				for {
					childPath := append(append([]int(nil), path...), len(n.children))
					child, err := parseElement(childPath)
					if err != nil {
						return nil, err
					}
					if child == nil {
						break
					}
					n.children = append(n.children, child)
				}
				return n, nil

			case xml.EndElement:
				return nil, nil
			}
		}
	}

	for {
		n, err := parseElement([]int{len(h.Roots)})
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse hierarchy: %w", err)
		}
		if n != nil {
			h.Roots = append(h.Roots, n)
		}
	}

	if !foundHierarchy {
		return nil, fmt.Errorf("invalid hierarchy dump: no hierarchy element found")
	}
	return h, nil
}

// Bounds is an element rectangle.
type Bounds struct {
	X, Y, Width, Height int
}

// ParseBounds parses an Android bounds string "[x1,y1][x2,y2]".
func ParseBounds(s string) (Bounds, bool) {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, false
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Bounds{}, false
		}
		v[i] = n
	}
	return Bounds{X: v[0], Y: v[1], Width: v[2] - v[0], Height: v[3] - v[1]}, true
}
