package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	dashReplacer = strings.NewReplacer("–", "-", "—", "-", "‐", "-", "‑", "-", "−", "-")
	reSpaces     = regexp.MustCompile(`\s+`)
	reLimited    = regexp.MustCompile(`\bLIMITED\b`)
	reSeparators = regexp.MustCompile(`\s*[-–—:]+\s*`)
)

// CodeNormalizer turns product codes from any source into comparable keys.
type CodeNormalizer struct {
	AllowBang bool
}

// Key uppercases, folds dashes and drops every rune outside A-Z, 0-9, '/'
// and '-' ('!' too when AllowBang is set). Key(Key(x)) == Key(x).
func (n CodeNormalizer) Key(input string) string {
	s := norm.NFKC.String(input)
	s = strings.ToUpper(strings.TrimSpace(s))
	s = dashReplacer.Replace(s)

	out := strings.Builder{}
	for _, r := range s {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '/' || r == '-':
			out.WriteRune(r)
		case r == '!' && n.AllowBang:
			out.WriteRune(r)
		}
	}
	return out.String()
}

func NormalizeCode(input string) string {
	return CodeNormalizer{}.Key(input)
}

// NormalizeSupplier builds the comparison key for supplier names:
// "Acme & Sons Limited" and "Acme and Sons Ltd" both become "ACMEANDSONSLTD".
func NormalizeSupplier(input string) string {
	s := norm.NFKC.String(input)
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripAccents, s); err == nil {
		s = folded
	}
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "&", " AND ")
	s = reLimited.ReplaceAllString(s, "LTD")

	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// Abbreviation is the first four letters of the normalized supplier name,
// padded with X.
func Abbreviation(supplierName string) string {
	out := strings.Builder{}
	for _, r := range NormalizeSupplier(supplierName) {
		if r >= 'A' && r <= 'Z' {
			out.WriteRune(r)
			if out.Len() == 4 {
				break
			}
		}
	}
	for out.Len() < 4 {
		out.WriteByte('X')
	}
	return out.String()
}

// CleanCompany uppercases and collapses whitespace for contact lookups.
func CleanCompany(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	return reSpaces.ReplaceAllString(s, " ")
}

// TrailingToken returns the text after the last separator of an account
// token: "ACME - NZ - 0012" gives "0012". Without separators the whole
// token is returned.
func TrailingToken(input string) string {
	parts := reSeparators.Split(strings.TrimSpace(input), -1)
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			return strings.ToUpper(p)
		}
	}
	return ""
}

// Similarity is the Ratcliff/Obershelp ratio 2*M/T, where M is the number of
// runes in the matching blocks found by repeatedly taking the longest common
// substring and recursing on both sides of it.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

type span struct{ alo, ahi, blo, bhi int }

func matchingRunes(a, b []rune) int {
	queue := []span{{0, len(a), 0, len(b)}}
	matched := 0
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b, s)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch prefers the block starting earliest in a, then in b.
func longestMatch(a, b []rune, s span) (int, int, int) {
	bestI, bestJ, bestK := s.alo, s.blo, 0
	width := s.bhi - s.blo + 1
	prev := make([]int, width)
	for i := s.alo; i < s.ahi; i++ {
		cur := make([]int, width)
		for j := s.blo; j < s.bhi; j++ {
			if a[i] != b[j] {
				continue
			}
			k := prev[j-s.blo] + 1
			cur[j-s.blo+1] = k
			if k > bestK {
				bestI, bestJ, bestK = i-k+1, j-k+1, k
			}
		}
		prev = cur
	}
	return bestI, bestJ, bestK
}
