package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// compiledPattern is a glob compiled with fnmatch(3) semantics and no
// flags: wildcards cross '/' and a leading '.' is not special.
type compiledPattern struct {
	re       *regexp.Regexp
	original string
}

func compilePattern(pattern string) (*compiledPattern, error) {
	re, err := regexp.Compile("^" + globToRegex(pattern) + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
	}
	return &compiledPattern{re: re, original: pattern}, nil
}

func (cp *compiledPattern) match(path string) bool {
	return cp.re.MatchString(path)
}

// globToRegex converts a glob pattern to a regex string.
//
//nolint:gocyclo,revive // cognitive-complexity: character-by-character glob parser
func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("(?s)")
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			// Runs of stars collapse to one.
			for i < len(pattern) && pattern[i] == '*' {
				i++
			}
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
			i++
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(pattern[i+1 : i+2]))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(`\`))
				i++
			}
		case '[':
			cls, next, ok := bracketClass(pattern, i)
			if !ok {
				// Unterminated class: '[' is literal.
				b.WriteString(regexp.QuoteMeta("["))
				i++
				continue
			}
			b.WriteString(cls)
			i = next
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}

// posixClasses are the character class names fnmatch accepts inside a
// bracket expression. RE2 supports the same set.
var posixClasses = map[string]bool{
	"alnum": true, "alpha": true, "blank": true, "cntrl": true,
	"digit": true, "graph": true, "lower": true, "print": true,
	"punct": true, "space": true, "upper": true, "xdigit": true,
}

// bracketClass translates the bracket expression starting at pattern[start]
// into a regex character class. It returns the index just past the closing
// ']' and false when the expression is unterminated. Reversed ranges match
// nothing, as in fnmatch, instead of making the regex invalid.
func bracketClass(pattern string, start int) (string, int, bool) {
	j := start + 1
	negate := false
	if j < len(pattern) && (pattern[j] == '!' || pattern[j] == '^') {
		negate = true
		j++
	}
	var items strings.Builder
	first := true
	for j < len(pattern) {
		if pattern[j] == ']' && !first {
			return closeClass(items.String(), negate), j + 1, true
		}
		first = false

		if name, next, ok := posixClass(pattern, j); ok {
			items.WriteString("[:" + name + ":]")
			j = next
			continue
		}

		lo, next := classChar(pattern, j)
		if next+1 < len(pattern) && pattern[next] == '-' && pattern[next+1] != ']' {
			hi, after := classChar(pattern, next+1)
			if lo <= hi {
				items.WriteString(quoteClassChar(lo) + "-" + quoteClassChar(hi))
			}
			j = after
			continue
		}
		items.WriteString(quoteClassChar(lo))
		j = next
	}
	return "", start, false
}

// posixClass recognizes "[:name:]" at pattern[j].
func posixClass(pattern string, j int) (string, int, bool) {
	if !strings.HasPrefix(pattern[j:], "[:") {
		return "", j, false
	}
	end := strings.Index(pattern[j+2:], ":]")
	if end < 0 {
		return "", j, false
	}
	name := pattern[j+2 : j+2+end]
	if !posixClasses[name] {
		return "", j, false
	}
	return name, j + 2 + end + 2, true
}

// classChar decodes one possibly escaped character of a bracket expression.
func classChar(pattern string, j int) (rune, int) {
	if pattern[j] == '\\' && j+1 < len(pattern) {
		j++
	}
	r, size := utf8.DecodeRuneInString(pattern[j:])
	return r, j + size
}

func quoteClassChar(r rune) string {
	if r == '-' {
		return `\-`
	}
	return regexp.QuoteMeta(string(r))
}

func closeClass(items string, negate bool) string {
	switch {
	case items == "" && negate:
		return "."
	case items == "":
		return `[^\x00-\x{10FFFF}]`
	case negate:
		return "[^" + items + "]"
	default:
		return "[" + items + "]"
	}
}
