// Package pattern compiles glob/regex entry-name patterns and matches
// them against entry names as pure match functions (matching is
// side-effect free; compiled patterns are safe for concurrent read).
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vaultarc/vaultarc/internal/core"
)

// Kind selects how pattern text is interpreted before compilation.
type Kind int

const (
	Glob Kind = iota
	Regex
	ExtendedRegex
)

// MatchMode selects which of the four pre-built anchored variants is
// used for a given match call.
type MatchMode int

const (
	Begin MatchMode = iota
	End
	Exact
	Any
)

// Pattern is the compiled form of one user-supplied glob or regex,
// immutable after Compile returns.
type Pattern struct {
	source     string
	ignoreCase bool

	begin *regexp.Regexp
	end   *regexp.Regexp
	exact *regexp.Regexp
	any   *regexp.Regexp
}

// globToRegex translates a shell glob into a regular expression body:
// '*' becomes ".*", '?' becomes ".", and everything else is escaped
// literally.
func globToRegex(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '\\', '[', ']', '^', '$', '(', ')', '{', '}', '+', '|':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Compile compiles pattern text of the given Kind. Matching is
// case-insensitive unless ignoreCase is false. The Go regexp engine is
// already "extended", so Regex and ExtendedRegex compile identically.
func Compile(text string, kind Kind, ignoreCase bool) (*Pattern, error) {
	body := text
	if kind == Glob {
		body = globToRegex(text)
	}

	prefix := ""
	if ignoreCase {
		prefix = "(?i)"
	}

	variants := map[string]string{
		"begin": prefix + "^(?:" + body + ")",
		"end":   prefix + "(?:" + body + ")$",
		"exact": prefix + "^(?:" + body + ")$",
		"any":   prefix + "(?:" + body + ")",
	}

	compiled := make(map[string]*regexp.Regexp, 4)
	for name, expr := range variants {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrInvalidPattern, text, err)
		}
		compiled[name] = re
	}

	return &Pattern{
		source:     text,
		ignoreCase: ignoreCase,
		begin:      compiled["begin"],
		end:        compiled["end"],
		exact:      compiled["exact"],
		any:        compiled["any"],
	}, nil
}

// String returns the original, uncompiled pattern text.
func (p *Pattern) String() string { return p.source }

func (p *Pattern) variant(mode MatchMode) *regexp.Regexp {
	switch mode {
	case Begin:
		return p.begin
	case End:
		return p.end
	case Exact:
		return p.exact
	default:
		return p.any
	}
}

// Match reports whether name matches the pattern under the given mode.
func Match(p *Pattern, name string, mode MatchMode) bool {
	return p.variant(mode).MatchString(name)
}

// List is a set of compiled patterns tagged by the entry kind they
// apply to, so a job's include/exclude filters can differ per kind.
type List struct {
	Kind     core.EntryKind
	Patterns []*Pattern
}

// Match reports whether name matches any pattern in the list under mode.
func (l *List) Match(name string, mode MatchMode) bool {
	for _, p := range l.Patterns {
		if Match(p, name, mode) {
			return true
		}
	}
	return false
}

// ListMatch reports whether name matches any list applicable to kind.
func ListMatch(lists []*List, kind core.EntryKind, name string, mode MatchMode) bool {
	for _, l := range lists {
		if l.Kind != kind {
			continue
		}
		if l.Match(name, mode) {
			return true
		}
	}
	return false
}
