package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Placeholder is one {field}, {field.key} or {field[key]} reference in a
// template.
type Placeholder struct {
	Field string
	Key   string
	Keyed bool
}

func (p Placeholder) String() string {
	if p.Keyed {
		return "{" + p.Field + "." + p.Key + "}"
	}
	return "{" + p.Field + "}"
}

// LookupFunc returns the value a placeholder expands to.
type LookupFunc func(ctx context.Context, p Placeholder) (string, error)

// Script is a parsed template. Text outside braces is copied verbatim;
// "{{" and "}}" stand for literal braces.
type Script struct {
	segments []segment
}

type segment struct {
	text        string
	placeholder *Placeholder
}

var placeholderPattern = regexp.MustCompile(`^([A-Za-z_][\w-]*)(?:\.([\w-]+)|\[([^\[\]]+)\])?$`)

// ParseScript parses template.
func ParseScript(template string) (*Script, error) {
	s := &Script{}
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			s.segments = append(s.segments, segment{text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && strings.HasPrefix(template[i:], "{{"):
			text.WriteByte('{')
			i++
		case c == '}' && strings.HasPrefix(template[i:], "}}"):
			text.WriteByte('}')
			i++
		case c == '}':
			return nil, fmt.Errorf("unmatched '}' at offset %d (write '}}' for a literal brace)", i)
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			body := template[i+1 : i+end]
			m := placeholderPattern.FindStringSubmatch(body)
			if m == nil {
				return nil, fmt.Errorf("invalid placeholder {%s}", body)
			}
			p := &Placeholder{Field: m[1]}
			switch {
			case m[2] != "":
				p.Key, p.Keyed = m[2], true
			case m[3] != "":
				p.Key, p.Keyed = strings.TrimSpace(m[3]), true
			}
			flush()
			s.segments = append(s.segments, segment{placeholder: p})
			i += end
		default:
			text.WriteByte(c)
		}
	}
	flush()
	return s, nil
}

// Expand evaluates the script. The first failing lookup aborts expansion.
func (s *Script) Expand(ctx context.Context, lookup LookupFunc) (string, error) {
	var out strings.Builder
	for _, seg := range s.segments {
		if seg.placeholder == nil {
			out.WriteString(seg.text)
			continue
		}
		value, err := lookup(ctx, *seg.placeholder)
		if err != nil {
			return "", fmt.Errorf("%s: %w", seg.placeholder, err)
		}
		out.WriteString(value)
	}
	return out.String(), nil
}

// Expand parses and evaluates template in one step.
func Expand(ctx context.Context, template string, lookup LookupFunc) (string, error) {
	s, err := ParseScript(template)
	if err != nil {
		return "", err
	}
	return s.Expand(ctx, lookup)
}
