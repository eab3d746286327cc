package ingest

import (
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type MatchKind string

const (
	MatchExact      MatchKind = "exact"
	MatchSubstring  MatchKind = "substring"
	MatchSlug       MatchKind = "slug"
	MatchPositional MatchKind = "positional"
)

// minContained is the shortest string allowed to match inside another in
// the substring phase. Strings shorter than minFreeContained only match a
// whole word, so "age" matches "Age (yrs)" but not "Message".
const (
	minContained     = 3
	minFreeContained = 4
)

// Header is one resolved column of the header row.
type Header struct {
	Column int
	Label  string
	Field  string
	Match  MatchKind
}

type aliasKeys struct {
	field string
	lower []string
	keys  []string
	words [][]string
}

// Reconciler resolves raw header labels against an alias table. It is
// read-only after construction and safe for concurrent use.
type Reconciler struct {
	entries []aliasKeys
}

func NewReconciler(table AliasTable) *Reconciler {
	r := &Reconciler{entries: make([]aliasKeys, 0, len(table))}
	for _, a := range table {
		e := aliasKeys{field: a.Field}
		for _, l := range append([]string{a.Field}, a.Labels...) {
			lower := strings.ToLower(strings.TrimSpace(l))
			if lower == "" {
				continue
			}
			e.lower = append(e.lower, lower)
			e.keys = append(e.keys, foldKey(lower))
			e.words = append(e.words, words(lower))
		}
		r.entries = append(r.entries, e)
	}
	return r
}

// Resolve maps one label to a field name: exact match on the lowercased or
// folded label, then substring containment in either direction in table
// order, then a slug of the label. The result is empty only when the label
// has no letters or digits.
func (r *Reconciler) Resolve(label string) (string, MatchKind) {
	lower := strings.ToLower(strings.TrimSpace(label))
	key := foldKey(lower)
	if key == "" {
		return "", MatchPositional
	}

	for _, e := range r.entries {
		for i := range e.lower {
			if lower == e.lower[i] || key == e.keys[i] {
				return e.field, MatchExact
			}
		}
	}
	labelWords := words(lower)
	for _, e := range r.entries {
		for i, k := range e.keys {
			if contains(key, labelWords, k) || contains(k, e.words[i], key) {
				return e.field, MatchSubstring
			}
		}
	}
	return Slugify(label), MatchSlug
}

// contains reports whether sub occurs in s, whose words are given. Short
// strings must equal one of the words.
func contains(s string, sWords []string, sub string) bool {
	n := utf8.RuneCountInString(sub)
	switch {
	case n < minContained:
		return false
	case n < minFreeContained:
		return slices.Contains(sWords, sub)
	default:
		return strings.Contains(s, sub)
	}
}

// words splits s into folded runs of letters and digits.
func words(s string) []string {
	return strings.FieldsFunc(stripDiacritics(strings.ToLower(s)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Reconcile resolves every header column. Columns whose label yields no
// field name fall back to "col<N>".
func (r *Reconciler) Reconcile(header map[int]string) (Mapping, []Header) {
	cols := make([]int, 0, len(header))
	for c := range header {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	m := Mapping{fields: make(map[int]string, len(cols))}
	out := make([]Header, 0, len(cols))
	for _, c := range cols {
		field, kind := r.Resolve(header[c])
		if field == "" {
			field, kind = positionalName(c), MatchPositional
		}
		m.fields[c] = field
		out = append(out, Header{Column: c, Label: header[c], Field: field, Match: kind})
	}
	return m, out
}

// Mapping assigns a field name to every column index.
type Mapping struct {
	fields map[int]string
}

// Field returns the field for a 1-based column; columns without a header
// label get "col<N>".
func (m Mapping) Field(col int) string {
	if f, ok := m.fields[col]; ok {
		return f
	}
	return positionalName(col)
}

func positionalName(col int) string { return "col" + strconv.Itoa(col) }

// Slugify lowercases s, strips diacritics and turns every run of
// non-alphanumeric characters into a single underscore.
func Slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range stripDiacritics(strings.ToLower(strings.TrimSpace(s))) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// foldKey is the comparison form of a label: lowercase, no diacritics, only
// letters and digits. "E-mail", "e_mail" and "E Mail" all fold to "email".
func foldKey(s string) string {
	var b strings.Builder
	for _, r := range stripDiacritics(strings.ToLower(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
