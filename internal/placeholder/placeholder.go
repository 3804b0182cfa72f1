// Package placeholder implements the placeholder grammar:
//
//	<name:source#key>
//	<name:source#key|default>
//
// name excludes ':', source excludes '#', key excludes '|' and '>', and the
// default (when present) excludes '>'. There is no escaping: a key that
// needs '|' or '>' cannot be expressed, and the scan silently truncates at
// the first delimiter. Angle brackets inside name or source act as a parse
// boundary, so nested brackets restart matching at the next '<'.
package placeholder

import (
	"fmt"
	"regexp"

	substerrors "github.com/systmms/subst/internal/errors"
)

// Placeholder is one parsed occurrence of the placeholder syntax. Name is a
// descriptive label and plays no part in source lookup; Source and Key drive
// resolution; Default, when HasDefault is set, is used verbatim as literal
// fallback text.
type Placeholder struct {
	Name       string
	Source     string
	Key        string
	Default    string
	HasDefault bool
}

// Match is a Placeholder together with the span it occupies in the scanned
// document. Text is the exact original substring, including the brackets.
type Match struct {
	Placeholder
	Start int
	End   int
	Text  string
}

var (
	pattern       = regexp.MustCompile(`<([^:<>]+):([^#<>]+)#([^|>]+)(\|([^>]*))?>`)
	strictPattern = regexp.MustCompile(`^<([^:<>]+):([^#<>]+)#([^|>]+)(\|([^>]*))?>$`)
)

// Scan finds every non-overlapping placeholder in text, left to right. The
// scan is stateless and restartable: calling it repeatedly on the same text
// yields the same matches. Malformed spans do not match and are left as
// literal text.
func Scan(text string) []Match {
	idx := pattern.FindAllStringSubmatchIndex(text, -1)
	if idx == nil {
		return nil
	}
	matches := make([]Match, 0, len(idx))
	for _, m := range idx {
		matches = append(matches, Match{
			Placeholder: fromSubmatchIndex(text, m),
			Start:       m[0],
			End:         m[1],
			Text:        text[m[0]:m[1]],
		})
	}
	return matches
}

// Parse parses text that must consist of exactly one placeholder. Unlike
// Scan it is strict: anything else fails with InvalidSyntaxError.
func Parse(text string) (Placeholder, error) {
	m := strictPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return Placeholder{}, substerrors.InvalidSyntaxError{
			Text:   text,
			Reason: "expected <name:source#key> or <name:source#key|default>",
		}
	}
	return fromSubmatchIndex(text, m), nil
}

// String serializes the placeholder back to its wire form. It is the exact
// inverse of Parse for both the no-default and with-default cases.
func (p Placeholder) String() string {
	if p.HasDefault {
		return fmt.Sprintf("<%s:%s#%s|%s>", p.Name, p.Source, p.Key, p.Default)
	}
	return fmt.Sprintf("<%s:%s#%s>", p.Name, p.Source, p.Key)
}

func fromSubmatchIndex(text string, m []int) Placeholder {
	p := Placeholder{
		Name:   text[m[2]:m[3]],
		Source: text[m[4]:m[5]],
		Key:    text[m[6]:m[7]],
	}
	// Group 4 is the whole "|default" tail; group 5 the default itself,
	// which may legitimately be empty.
	if m[8] != -1 {
		p.HasDefault = true
		p.Default = text[m[10]:m[11]]
	}
	return p
}
