package record

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind tags the scalar held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "null"
	}
}

// Value is a tagged scalar: string, number or null. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value. NaN and infinities have no JSON form and
// are kept as their string representation.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return String(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return Value{kind: KindNumber, num: f}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether v is null or a whitespace-only string.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	default:
		return false
	}
}

// Str returns the string payload and whether v holds a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the numeric payload and whether v holds a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Text renders v for display and spreadsheet export. Null renders empty.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	default:
		return true
	}
}

var numericRe = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?$`)

// maxExactDigits bounds integer strings that float64 still represents exactly.
const maxExactDigits = 15

// ParseScalar converts trimmed text to its natural scalar. Empty text is
// null, numeric-looking text is a number and everything else stays a
// string. Identifiers that would lose information as numbers (leading zeros
// like "007", very long digit runs) stay strings.
func ParseScalar(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null()
	}
	if !LooksNumeric(s) {
		return String(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return String(s)
	}
	return Number(f)
}

// LooksNumeric reports whether s would be stored as a number by ParseScalar.
func LooksNumeric(s string) bool {
	if !numericRe.MatchString(s) {
		return false
	}
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] >= '0' && digits[1] <= '9' {
		return false
	}
	intPart := digits
	if i := strings.IndexAny(intPart, ".eE"); i >= 0 {
		intPart = intPart[:i]
	}
	return len(intPart) <= maxExactDigits
}
