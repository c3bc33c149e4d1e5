// Package pagerange parses human-readable page selections such as
// "1,3-5,8" into sets of 1-based page indices.
package pagerange

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/wudi/pdfmaster/pdferr"
)

const op = "parse page range"

// Set is a deduplicated, ascending set of 1-based page indices.
type Set struct {
	pages []int
}

// All returns the set of every page of a document with total pages.
func All(total int) Set {
	pages := make([]int, 0, max(total, 0))
	for i := 1; i <= total; i++ {
		pages = append(pages, i)
	}
	return Set{pages: pages}
}

// Of builds a set from explicit indices, dropping duplicates and values
// outside [1, total].
func Of(total int, pages ...int) Set {
	seen := make(map[int]bool, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > total || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	return Set{pages: out}
}

// IsAll reports whether spec is the literal "all" (case-insensitive).
func IsAll(spec string) bool {
	return strings.EqualFold(strings.TrimSpace(spec), "all")
}

// Select resolves spec against a document of total pages, accepting "all".
func Select(spec string, total int) (Set, error) {
	if IsAll(spec) {
		return All(total), nil
	}
	return Parse(spec, total)
}

// Parse converts a comma-separated list of integers and inclusive ranges
// into a Set. Indices outside [1, total] are dropped. An empty spec, a
// token that is not an integer, or a reversed range is a parse error.
func Parse(spec string, total int) (Set, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, spec)
	if compact == "" {
		return Set{}, pdferr.Parse(op, "empty page range")
	}

	var pages []int
	for _, tok := range strings.Split(compact, ",") {
		start, end, err := parseToken(tok)
		if err != nil {
			return Set{}, err
		}
		lo, hi := max(start, 1), min(end, total)
		for p := lo; p <= hi; p++ {
			pages = append(pages, p)
		}
	}
	return Of(total, pages...), nil
}

func parseToken(tok string) (int, int, error) {
	if tok == "" {
		return 0, 0, pdferr.Parse(op, "empty token")
	}
	first, last, isRange := strings.Cut(tok, "-")
	start, err := parseIndex(first, tok)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return start, start, nil
	}
	end, err := parseIndex(last, tok)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, pdferr.Parse(op, "reversed range %q", tok)
	}
	return start, end, nil
}

func parseIndex(s, tok string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || s == "" || s[0] == '+' || s[0] == '-' {
		return 0, pdferr.Parse(op, "invalid token %q", tok)
	}
	return n, nil
}

// Contains reports whether page is in the set.
func (s Set) Contains(page int) bool {
	i := sort.SearchInts(s.pages, page)
	return i < len(s.pages) && s.pages[i] == page
}

func (s Set) Len() int { return len(s.pages) }

func (s Set) Empty() bool { return len(s.pages) == 0 }

// Pages returns a copy of the indices in ascending order.
func (s Set) Pages() []int {
	return append([]int(nil), s.pages...)
}

// Strings returns the indices as decimal strings.
func (s Set) Strings() []string {
	out := make([]string, len(s.pages))
	for i, p := range s.pages {
		out[i] = strconv.Itoa(p)
	}
	return out
}

// String renders the set in compact form, e.g. "1,3-5,8".
func (s Set) String() string {
	var b strings.Builder
	for i := 0; i < len(s.pages); {
		j := i
		for j+1 < len(s.pages) && s.pages[j+1] == s.pages[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(s.pages[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(s.pages[j]))
		}
		i = j + 1
	}
	return b.String()
}
