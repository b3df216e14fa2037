package locks

import (
	"fmt"
	"strings"
)

// KeyTemplate is the parsed form of a logical key template such as
// "resource-{id}": an ordered sequence of literal segments and named
// placeholders. Parsing the template up front makes the substitution
// contract explicit - a placeholder without a matching parameter is an
// error, while parameters that match no placeholder are ignored.
type KeyTemplate struct {
	raw      string
	segments []segment
}

// segment is either a literal (param == "") or a placeholder.
type segment struct {
	literal string
	param   string
}

// ParseTemplate parses a key template. Placeholders are written as {name};
// braces have no escape form, so a template may not contain bare '{' or
// '}' characters outside a placeholder.
func ParseTemplate(raw string) (*KeyTemplate, error) {
	t := &KeyTemplate{raw: raw}
	rest := raw
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if close := strings.IndexByte(rest, '}'); close >= 0 && (open < 0 || close < open) {
			return nil, fmt.Errorf("locks: unmatched '}' in key template %q", raw)
		}
		if open < 0 {
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}
		rest = rest[open+1:]
		close := strings.IndexByte(rest, '}')
		if close < 0 {
			return nil, fmt.Errorf("locks: unclosed '{' in key template %q", raw)
		}
		name := rest[:close]
		if name == "" {
			return nil, fmt.Errorf("locks: empty placeholder in key template %q", raw)
		}
		t.segments = append(t.segments, segment{param: name})
		rest = rest[close+1:]
	}
	return t, nil
}

// String returns the template in its original form.
func (t *KeyTemplate) String() string { return t.raw }

// Parameters returns the placeholder names in order of appearance.
func (t *KeyTemplate) Parameters() []string {
	var names []string
	for _, s := range t.segments {
		if s.param != "" {
			names = append(names, s.param)
		}
	}
	return names
}

// Format substitutes params into the template and returns the concrete
// key. Every placeholder must be filled (MissingParameterError otherwise);
// entries in params that match no placeholder are ignored. Values are
// rendered with fmt.Sprint.
func (t *KeyTemplate) Format(params map[string]any) (string, error) {
	var b strings.Builder
	for _, s := range t.segments {
		if s.param == "" {
			b.WriteString(s.literal)
			continue
		}
		v, ok := params[s.param]
		if !ok {
			return "", &MissingParameterError{Template: t.raw, Parameter: s.param}
		}
		b.WriteString(fmt.Sprint(v))
	}
	return b.String(), nil
}
