package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Operator is a comparison operator in a search term.
type Operator string

const (
	OpEquals          Operator = "="
	OpNotEquals       Operator = "!="
	OpGreater         Operator = ">"
	OpGreaterOrEquals Operator = ">="
	OpLess            Operator = "<"
	OpLessOrEquals    Operator = "<="
	OpIn              Operator = "IN"
	OpNotIn           Operator = "NOT IN"
)

var negations = map[Operator]Operator{
	OpEquals:          OpNotEquals,
	OpNotEquals:       OpEquals,
	OpLess:            OpGreaterOrEquals,
	OpGreaterOrEquals: OpLess,
	OpLessOrEquals:    OpGreater,
	OpGreater:         OpLessOrEquals,
	OpIn:              OpNotIn,
	OpNotIn:           OpIn,
}

// Valid reports whether o is one of the eight supported operators.
func (o Operator) Valid() bool {
	_, ok := negations[o]
	return ok
}

// IsEquality reports whether o is = or IN.
func (o Operator) IsEquality() bool {
	return o == OpEquals || o == OpIn
}

// IsNegation reports whether o is != or NOT IN.
func (o Operator) IsNegation() bool {
	return o == OpNotEquals || o == OpNotIn
}

// IsList reports whether o takes a list operand.
func (o Operator) IsList() bool {
	return o == OpIn || o == OpNotIn
}

// Negate returns the logical complement of o.
// For example Negate(>=) is < and Negate(IN) is NOT IN.
func (o Operator) Negate() Operator {
	return negations[o]
}

var tagKeyPattern = regexp.MustCompile(`^tags\[(.+)\]$`)

// Key names the field a term filters on.
type Key struct {
	// Name is the field name as written, e.g. "environment" or "tags[browser]".
	Name string

	// IsTag marks free-form tags as opposed to known columns.
	IsTag bool
}

// NewKey builds a key, marking names of the form tags[...] as tags.
func NewKey(name string) Key {
	return Key{Name: name, IsTag: tagKeyPattern.MatchString(name)}
}

// TagKey builds a key for a free-form tag.
func TagKey(name string) Key {
	return Key{Name: name, IsTag: true}
}

// Value is the right-hand side of a term.
//
// Raw holds exactly what the parser produced: a string, a []string for
// list operators, an int64, a float64 or a time.Time. Values rewritten by
// the compiler may also hold an []int64 list of ids.
type Value struct {
	Raw any
}

// String builds a scalar string value.
func String(s string) Value { return Value{Raw: s} }

// List builds a list value for IN / NOT IN terms.
func List(vals ...string) Value {
	if vals == nil {
		vals = []string{}
	}
	return Value{Raw: vals}
}

// Ints builds an id list value.
func Ints(vals ...int64) Value {
	if vals == nil {
		vals = []int64{}
	}
	return Value{Raw: vals}
}

// Int builds an integer value.
func Int(n int64) Value { return Value{Raw: n} }

// Float builds a floating point value.
func Float(f float64) Value { return Value{Raw: f} }

// Time builds a datetime value.
func Time(t time.Time) Value { return Value{Raw: t} }

// IsList reports whether the value is a list.
func (v Value) IsList() bool {
	switch v.Raw.(type) {
	case []string, []int64:
		return true
	}
	return false
}

// Str returns the raw scalar string, if the value is one.
func (v Value) Str() (string, bool) {
	s, ok := v.Raw.(string)
	return s, ok
}

// Strings returns the value as a list. A scalar string or number becomes
// a single-element list in its search syntax form; datetimes and id lists
// yield nil.
func (v Value) Strings() []string {
	switch raw := v.Raw.(type) {
	case []string:
		return raw
	case string:
		return []string{raw}
	case int64:
		return []string{strconv.FormatInt(raw, 10)}
	case float64:
		return []string{strconv.FormatFloat(raw, 'f', -1, 64)}
	default:
		return nil
	}
}

// IsEmpty reports whether the raw value is the empty string, which is how
// the parser encodes has:field / !has:field checks.
func (v Value) IsEmpty() bool {
	s, ok := v.Raw.(string)
	return ok && s == ""
}

// TimeValue returns the raw datetime, if the value is one.
func (v Value) TimeValue() (time.Time, bool) {
	t, ok := v.Raw.(time.Time)
	return t, ok
}

// IsWildcard reports whether a scalar string contains an unescaped '*'.
func (v Value) IsWildcard() bool {
	s, ok := v.Raw.(string)
	if !ok {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*':
			return true
		}
	}
	return false
}

// Resolved returns the value the converter compares against. Wildcard
// strings become an anchored regular expression; all other values are
// returned unchanged.
func (v Value) Resolved() any {
	if v.IsWildcard() {
		return TranslateWildcard(v.Raw.(string))
	}
	return v.Raw
}

// TranslateWildcard converts a user pattern into an anchored regular
// expression. '*' matches any run of characters, a backslash escapes the
// following character, and everything else matches literally.
func TranslateWildcard(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			i++
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		case c == '*':
			b.WriteString(".*")
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// Item is one element of a search sequence.
//
// This is a sealed interface; Term, AggregateTerm, Group and Connective are
// the only implementations.
type Item interface {
	searchItem()
}

// Term is a leaf field/operator/value clause.
type Term struct {
	Key      Key
	Operator Operator
	Value    Value
}

func (Term) searchItem() {}

// IsInFilter reports whether the term uses list semantics.
func (t Term) IsInFilter() bool {
	return t.Operator.IsList()
}

func (t Term) String() string {
	return fmt.Sprintf("%s %s %v", t.Key.Name, t.Operator, t.Value.Raw)
}

// AggregateTerm filters on a computed/aggregate expression such as
// count() or p95(transaction.duration). It always lands in the having tree.
type AggregateTerm struct {
	Key      Key
	Operator Operator
	Value    Value
}

func (AggregateTerm) searchItem() {}

func (t AggregateTerm) String() string {
	return fmt.Sprintf("%s %s %v", t.Key.Name, t.Operator, t.Value.Raw)
}

// Group is a parenthesized sub-sequence with the same shape as the
// top-level sequence.
type Group struct {
	Children []Item
}

func (Group) searchItem() {}

// Connective is a boolean operator between two items.
type Connective string

const (
	And Connective = "AND"
	Or  Connective = "OR"
)

func (Connective) searchItem() {}

// IsConnective reports whether item is an AND/OR token.
func IsConnective(item Item) bool {
	_, ok := item.(Connective)
	return ok
}
