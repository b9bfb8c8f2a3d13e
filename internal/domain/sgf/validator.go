package sgf

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "go_analysis/internal/errors"
)

var (
	blockedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`\.\./`),
		regexp.MustCompile(`\.\.\\`),
		regexp.MustCompile(`(?i)file://`),
		regexp.MustCompile(`(?i)data:`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)<iframe`),
		regexp.MustCompile(`(?i)<object`),
		regexp.MustCompile(`(?i)<embed`),
	}
	moveTokenPattern = regexp.MustCompile(`;[BW]\[`)
)

// Validator screens raw record text before it is parsed.
type Validator struct {
	MaxBytes      int
	MaxMoves      int
	MaxVariations int
}

func NewValidator(maxBytes, maxMoves, maxVariations int) *Validator {
	return &Validator{MaxBytes: maxBytes, MaxMoves: maxMoves, MaxVariations: maxVariations}
}

// Sanitize trims the record and returns it, or an error wrapping ErrInvalidRecord.
func (v *Validator) Sanitize(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("empty record")
	}
	if v.MaxBytes > 0 && len(content) > v.MaxBytes {
		return "", invalid("record too large: %d bytes (max %d)", len(content), v.MaxBytes)
	}
	if err := checkStructure(content); err != nil {
		return "", err
	}
	for _, p := range blockedPatterns {
		if p.MatchString(content) {
			return "", invalid("record contains blocked content matching %s", p.String())
		}
	}
	if moves := len(moveTokenPattern.FindAllStringIndex(content, -1)); v.MaxMoves > 0 && moves > v.MaxMoves {
		return "", invalid("too many moves: %d (max %d)", moves, v.MaxMoves)
	}
	if variations := strings.Count(content, "(") - 1; v.MaxVariations > 0 && variations > v.MaxVariations {
		return "", invalid("too many variations: %d (max %d)", variations, v.MaxVariations)
	}
	return content, nil
}

func checkStructure(content string) error {
	if !strings.HasPrefix(content, "(") {
		return invalid("record must start with '('")
	}
	if !strings.HasSuffix(content, ")") {
		return invalid("record must end with ')'")
	}

	depth := 0
	for _, c := range content {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return invalid("unbalanced parentheses")
		}
	}
	if depth != 0 {
		return invalid("unbalanced parentheses")
	}

	inBracket, escaped := false, false
	for _, c := range content {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '[':
			if inBracket {
				return invalid("nested brackets")
			}
			inBracket = true
		case ']':
			if !inBracket {
				return invalid("unmatched closing bracket")
			}
			inBracket = false
		}
	}
	if inBracket {
		return invalid("unclosed bracket")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidRecord, fmt.Sprintf(format, args...))
}
