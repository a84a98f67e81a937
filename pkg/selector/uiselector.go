package selector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/devicelab-dev/uia2-server/pkg/core"
)

// UiSelector is a legacy criteria selector. The platform resolves it with its
// own single-selector search; the server never matches it itself.
type UiSelector struct {
	Text                string
	TextContains        string
	TextStartsWith      string
	TextMatches         string
	ResourceID          string
	ClassName           string
	Description         string
	DescriptionContains string
	PackageName         string

	Clickable  *bool
	Enabled    *bool
	Checked    *bool
	Selected   *bool
	Scrollable *bool

	Index    *int // Position among siblings
	Instance int  // Which match to return, 0-based
}

// Describe renders the selector back to its chained form.
func (u *UiSelector) Describe() string {
	var b strings.Builder
	b.WriteString("new UiSelector()")
	str := func(method, v string) {
		if v != "" {
			fmt.Fprintf(&b, ".%s(%s)", method, strconv.Quote(v))
		}
	}
	boolean := func(method string, v *bool) {
		if v != nil {
			fmt.Fprintf(&b, ".%s(%t)", method, *v)
		}
	}
	str("text", u.Text)
	str("textContains", u.TextContains)
	str("textStartsWith", u.TextStartsWith)
	str("textMatches", u.TextMatches)
	str("resourceId", u.ResourceID)
	str("className", u.ClassName)
	str("description", u.Description)
	str("descriptionContains", u.DescriptionContains)
	str("packageName", u.PackageName)
	boolean("clickable", u.Clickable)
	boolean("enabled", u.Enabled)
	boolean("checked", u.Checked)
	boolean("selected", u.Selected)
	boolean("scrollable", u.Scrollable)
	if u.Index != nil {
		fmt.Fprintf(&b, ".index(%d)", *u.Index)
	}
	if u.Instance > 0 {
		fmt.Fprintf(&b, ".instance(%d)", u.Instance)
	}
	return b.String()
}

// CompileTextMatches compiles a textMatches pattern, which must match the
// whole text.
func CompileTextMatches(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

// ParseUiSelector parses a chain such as
//
//	new UiSelector().resourceId("com.app:id/ok").instance(1)
//
// The "new UiSelector()" prefix and a trailing semicolon are optional.
func ParseUiSelector(expr string) (*UiSelector, error) {
	p := &chainParser{src: strings.TrimSpace(expr)}
	p.src = strings.TrimSuffix(p.src, ";")
	p.src = strings.TrimPrefix(p.src, "new UiSelector()")

	sel := &UiSelector{}
	for {
		p.skipSpace()
		if p.done() {
			break
		}
		method, arg, err := p.call()
		if err != nil {
			return nil, invalidUiSelector(expr, err)
		}
		if err := sel.apply(method, arg); err != nil {
			return nil, invalidUiSelector(expr, err)
		}
	}
	return sel, nil
}

func invalidUiSelector(expr string, err error) error {
	return core.ErrInvalidSelector.
		WithMessagef("invalid UiSelector %q", expr).
		WithCause(err)
}

func (u *UiSelector) apply(method string, arg argument) error {
	strField := map[string]*string{
		"text":                &u.Text,
		"textContains":        &u.TextContains,
		"textStartsWith":      &u.TextStartsWith,
		"textMatches":         &u.TextMatches,
		"resourceId":          &u.ResourceID,
		"className":           &u.ClassName,
		"description":         &u.Description,
		"descriptionContains": &u.DescriptionContains,
		"packageName":         &u.PackageName,
	}
	boolField := map[string]**bool{
		"clickable":  &u.Clickable,
		"enabled":    &u.Enabled,
		"checked":    &u.Checked,
		"selected":   &u.Selected,
		"scrollable": &u.Scrollable,
	}

	if dst, ok := strField[method]; ok {
		if arg.kind != argString {
			return fmt.Errorf("%s expects a string argument", method)
		}
		if method == "textMatches" {
			if _, err := CompileTextMatches(arg.str); err != nil {
				return fmt.Errorf("textMatches pattern: %w", err)
			}
		}
		*dst = arg.str
		return nil
	}
	if dst, ok := boolField[method]; ok {
		if arg.kind != argBool {
			return fmt.Errorf("%s expects a boolean argument", method)
		}
		*dst = Bool(arg.b)
		return nil
	}
	switch method {
	case "index":
		if arg.kind != argInt {
			return fmt.Errorf("index expects an integer argument")
		}
		n := arg.n
		u.Index = &n
		return nil
	case "instance":
		if arg.kind != argInt || arg.n < 0 {
			return fmt.Errorf("instance expects a non-negative integer argument")
		}
		u.Instance = arg.n
		return nil
	}
	return fmt.Errorf("unsupported UiSelector method %q", method)
}

type argKind int

const (
	argString argKind = iota
	argBool
	argInt
)

type argument struct {
	kind argKind
	str  string
	b    bool
	n    int
}

// chainParser scans ".method(arg)" calls.
type chainParser struct {
	src string
	pos int
}

func (p *chainParser) done() bool {
	return p.pos >= len(p.src)
}

func (p *chainParser) skipSpace() {
	for !p.done() && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *chainParser) expect(c byte) error {
	p.skipSpace()
	if p.done() || p.src[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *chainParser) call() (string, argument, error) {
	if err := p.expect('.'); err != nil {
		return "", argument{}, err
	}
	start := p.pos
	for !p.done() && (unicode.IsLetter(rune(p.src[p.pos])) || unicode.IsDigit(rune(p.src[p.pos]))) {
		p.pos++
	}
	method := p.src[start:p.pos]
	if method == "" {
		return "", argument{}, fmt.Errorf("missing method name at offset %d", start)
	}
	if err := p.expect('('); err != nil {
		return "", argument{}, err
	}
	p.skipSpace()

	var arg argument
	if !p.done() && p.src[p.pos] == '"' {
		s, err := p.quoted()
		if err != nil {
			return "", argument{}, err
		}
		arg = argument{kind: argString, str: s}
	} else {
		end := strings.IndexByte(p.src[p.pos:], ')')
		if end < 0 {
			return "", argument{}, fmt.Errorf("unterminated call to %s", method)
		}
		raw := strings.TrimSpace(p.src[p.pos : p.pos+end])
		p.pos += end
		switch raw {
		case "true", "false":
			arg = argument{kind: argBool, b: raw == "true"}
		default:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return "", argument{}, fmt.Errorf("bad argument %q to %s", raw, method)
			}
			arg = argument{kind: argInt, n: n}
		}
	}
	if err := p.expect(')'); err != nil {
		return "", argument{}, err
	}
	return method, arg, nil
}

// quoted reads a double-quoted string literal with backslash escapes.
func (p *chainParser) quoted() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	for !p.done() {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '"':
			p.pos++
			return strconv.Unquote(p.src[start:p.pos])
		}
		p.pos++
	}
	return "", fmt.Errorf("unterminated string at offset %d", start)
}
