package sgf

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "go_analysis/internal/errors"
)

// ParseError is returned by every parser in this package; it unwraps to ErrMalformedRecord.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "parse error: " + e.Msg }

func (e *ParseError) Unwrap() error { return apperrors.ErrMalformedRecord }

func parseErrorf(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

var (
	tokenPattern = regexp.MustCompile(`(?s)^\s*(?:\(|\)|;|(\w+)((?:\s*\[(?:[^\]\\]|\\.)*\])+))`)
	recordClip   = regexp.MustCompile(`(?s)\(;.*\)`)
)

type parser struct {
	contents string
	ix       int
}

// Parse reads a record in the primary bracketed format and returns its root.
func Parse(input string) (*Node, error) {
	clipped := input
	if loc := recordClip.FindStringIndex(input); loc != nil {
		clipped = input[loc[0]:loc[1]]
	}
	start := strings.Index(clipped, "(")
	if start < 0 {
		return nil, parseErrorf("expected '(' at start, found %q", head(clipped, 50))
	}
	p := &parser{contents: clipped, ix: start + 1}
	root := NewNode(nil)
	if err := p.parseBranch(root); err != nil {
		return nil, err
	}
	fixFoxKomi(root)
	return root, nil
}

func (p *parser) parseBranch(current *Node) error {
	for p.ix < len(p.contents) {
		rest := p.contents[p.ix:]
		loc := tokenPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		p.ix += loc[1]
		switch strings.TrimSpace(rest[:loc[1]]) {
		case ")":
			return nil
		case "(":
			if err := p.parseBranch(NewNode(current)); err != nil {
				return err
			}
		case ";":
			// ";)" at the very end is not a node, neither is a ';' after an empty node
			useless := strings.TrimSpace(p.contents[p.ix:]) == ")"
			if !current.Empty() && !useless {
				current = NewNode(current)
			}
		default:
			code := rest[loc[2]:loc[3]]
			current.AddListProperty(code, splitValues(rest[loc[4]:loc[5]]))
		}
	}
	if p.ix < len(p.contents) {
		return parseErrorf("unexpected character at %q", head(p.contents[p.ix:], 25))
	}
	return parseErrorf("expected ')' at end of input")
}

// splitValues turns `[a] [b\]c]` into ["a", "b]c"].
func splitValues(raw string) []string {
	var values []string
	var cur strings.Builder
	inside, escaped := false, false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if !inside {
			if c == '[' {
				inside = true
				cur.Reset()
			}
			continue
		}
		switch {
		case escaped:
			escaped = false
			cur.WriteByte(c)
		case c == '\\':
			escaped = true
			cur.WriteByte(c)
		case c == ']':
			inside = false
			values = append(values, valueUnescaper.Replace(cur.String()))
		default:
			cur.WriteByte(c)
		}
	}
	return values
}

// fixFoxKomi corrects the komi Fox server writes into its records.
func fixFoxKomi(root *Node) {
	fox := false
	for _, ap := range root.ListProperty("AP") {
		if strings.Contains(ap, "foxwq") {
			fox = true
			break
		}
	}
	if !fox {
		return
	}
	switch {
	case root.Handicap() >= 1:
		root.SetProperty("KM", "0.5")
	case strings.EqualFold(root.PropertyOr("RU", ""), "chinese"), strings.EqualFold(root.PropertyOr("RU", ""), "cn"):
		root.SetProperty("KM", "7.5")
	default:
		root.SetProperty("KM", "6.5")
	}
}

func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
