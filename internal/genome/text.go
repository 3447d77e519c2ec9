// Package genome holds the textual hardware genome and the rules that project
// it onto a Phenotype.
package genome

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

// Text is one candidate solution. Values are never edited in place; every
// mutation produces a new Text.
type Text string

const (
	lineCommentMarker = "//"
	moduleKeyword     = "module"
)

// sizedLiteral matches a width-annotated decimal constant such as 16'd10.
var sizedLiteral = regexp.MustCompile(`(\d+)'d(\d+)`)

func (t Text) String() string {
	return string(t)
}

// Lines splits the genome on newlines. Join(t.Lines()) == t.
func (t Text) Lines() []string {
	return strings.Split(string(t), "\n")
}

// Join reassembles lines produced by Lines.
func Join(lines []string) Text {
	return Text(strings.Join(lines, "\n"))
}

func (t Text) Contains(phrase string) bool {
	return strings.Contains(string(t), phrase)
}

// Fingerprint is a stable content hash used for lineage and diversity counts.
func (t Text) Fingerprint() string {
	sum := sha1.Sum([]byte(t))
	return hex.EncodeToString(sum[:])
}

// IsComment reports whether the line is a line comment.
func IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), lineCommentMarker)
}

// IsStructural reports whether the line opens or closes a module. Both
// "module" and "endmodule" contain the keyword.
func IsStructural(line string) bool {
	return strings.Contains(line, moduleKeyword)
}

// Protected lines pass through mutation verbatim.
func Protected(line string) bool {
	return IsComment(line) || IsStructural(line)
}

// SizedLiteral is one <width>'d<value> occurrence.
type SizedLiteral struct {
	Width string
	Value string
	Start int
	End   int
}

// FindSizedLiterals returns the sized literals in s in order of appearance.
func FindSizedLiterals(s string) []SizedLiteral {
	matches := sizedLiteral.FindAllStringSubmatchIndex(s, -1)
	out := make([]SizedLiteral, 0, len(matches))
	for _, m := range matches {
		out = append(out, SizedLiteral{
			Width: s[m[2]:m[3]],
			Value: s[m[4]:m[5]],
			Start: m[0],
			End:   m[1],
		})
	}
	return out
}

// HasSizedLiteral reports whether s contains at least one sized literal.
func HasSizedLiteral(s string) bool {
	return sizedLiteral.MatchString(s)
}
