// Package expr models the parsed search predicate handed to providers.
//
// A tree is built from two node kinds: Compare leaves and Group nodes combining
// children with AND or OR. Element is a closed sum type; Walk dispatches every
// node to a Visitor so translators handle both kinds explicitly.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// GroupOp is the boolean operator of a Group.
type GroupOp string

// Group operators.
const (
	And GroupOp = "AND"
	Or  GroupOp = "OR"
)

// ParseGroupOp accepts exactly "AND" or "OR".
func ParseGroupOp(s string) (GroupOp, error) {
	switch GroupOp(s) {
	case And, Or:
		return GroupOp(s), nil
	default:
		return "", fmt.Errorf("group operator must be AND or OR, got %q", s)
	}
}

// CompareOp is the operator of a Compare leaf.
type CompareOp string

// Comparison operators produced by the host.
const (
	Eq  CompareOp = "="
	Ne  CompareOp = "!="
	Lt  CompareOp = "<"
	Lte CompareOp = "<="
	Gt  CompareOp = ">"
	Gte CompareOp = ">="
)

// Known reports whether op is one of the recognized comparison operators.
func (op CompareOp) Known() bool {
	switch op {
	case Eq, Ne, Lt, Lte, Gt, Gte:
		return true
	}
	return false
}

// IsOrdering reports whether op compares by order rather than equality.
func (op CompareOp) IsOrdering() bool {
	switch op {
	case Lt, Lte, Gt, Gte:
		return true
	}
	return false
}

// Element is a node of a search expression tree: either Compare or Group.
type Element interface {
	isElement()
	String() string
}

// Value is the right-hand side of a comparison: text or a number.
type Value struct {
	text    string
	num     float64
	numeric bool
}

// Text creates a textual value.
func Text(s string) Value { return Value{text: s} }

// Number creates a numeric value.
func Number(f float64) Value { return Value{num: f, numeric: true} }

// IsNumber reports whether the value was parsed as a number.
func (v Value) IsNumber() bool { return v.numeric }

// Float returns the numeric value; ok is false for text values.
func (v Value) Float() (f float64, ok bool) { return v.num, v.numeric }

// Raw returns the value as it would appear in a query: the text verbatim or the
// shortest decimal form of the number.
func (v Value) Raw() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.text
}

// Interface returns the value as a string or float64.
func (v Value) Interface() any {
	if v.numeric {
		return v.num
	}
	return v.text
}

// Compare is a leaf predicate: lhs <op> rhs.
type Compare struct {
	LHS           string
	RHS           Value
	Op            CompareOp
	Negated       bool
	Numeric       bool
	LiteralTerm   bool
	CaseSensitive bool
	CIDRMatch     bool
}

func (Compare) isElement() {}

func (c Compare) String() string {
	var b strings.Builder
	if c.Negated {
		b.WriteString("NOT ")
	}
	b.WriteString(c.LHS)
	b.WriteString(string(c.Op))
	if c.RHS.IsNumber() {
		b.WriteString(c.RHS.Raw())
	} else {
		b.WriteString(strconv.Quote(c.RHS.Raw()))
	}
	return b.String()
}

// Group combines children with a boolean operator. Children keep request order.
type Group struct {
	op       GroupOp
	children []Element
}

// NewGroup validates op and creates a Group.
func NewGroup(op GroupOp, children ...Element) (Group, error) {
	if _, err := ParseGroupOp(string(op)); err != nil {
		return Group{}, err
	}
	return Group{op: op, children: children}, nil
}

// Empty returns an AND group without children, which matches everything.
func Empty() Group { return Group{op: And} }

func (Group) isElement() {}

// Op returns the boolean operator.
func (g Group) Op() GroupOp { return g.op }

// Children returns a copy of the child elements.
func (g Group) Children() []Element {
	out := make([]Element, len(g.children))
	copy(out, g.children)
	return out
}

// Len returns the number of children.
func (g Group) Len() int { return len(g.children) }

func (g Group) String() string {
	if len(g.children) == 0 {
		return "*"
	}
	parts := make([]string, 0, len(g.children))
	for _, c := range g.children {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, " "+string(g.op)+" ") + ")"
}

// IsEmpty reports whether e is a group with no children, recursively.
func IsEmpty(e Element) bool {
	g, ok := e.(Group)
	if !ok {
		return false
	}
	for _, c := range g.children {
		if !IsEmpty(c) {
			return false
		}
	}
	return true
}

// Visitor receives each node kind during Walk.
type Visitor[T any] interface {
	VisitCompare(c Compare) (T, error)
	VisitGroup(g Group, children []T) (T, error)
}

// Walk evaluates e bottom-up with v: group children are visited first and their
// results passed to VisitGroup in order.
func Walk[T any](e Element, v Visitor[T]) (T, error) {
	switch n := e.(type) {
	case Compare:
		return v.VisitCompare(n)
	case *Compare:
		return v.VisitCompare(*n)
	case Group:
		return walkGroup(n, v)
	case *Group:
		return walkGroup(*n, v)
	default:
		var zero T
		return zero, fmt.Errorf("unknown search element %T", e)
	}
}

func walkGroup[T any](g Group, v Visitor[T]) (T, error) {
	results := make([]T, 0, len(g.children))
	for _, c := range g.children {
		r, err := Walk(c, v)
		if err != nil {
			var zero T
			return zero, err
		}
		results = append(results, r)
	}
	return v.VisitGroup(g, results)
}

// WithTimeRange restricts e to field >= earliest and field < latest. Nil bounds are
// omitted; when both are nil e is returned unchanged.
func WithTimeRange(e Element, field string, earliest, latest *int64) Element {
	if field == "" || (earliest == nil && latest == nil) {
		return e
	}
	children := make([]Element, 0, 3)
	if !IsEmpty(e) {
		children = append(children, e)
	}
	if earliest != nil {
		children = append(children, Compare{
			LHS: field, RHS: Number(float64(*earliest)), Op: Gte, Numeric: true, CaseSensitive: true,
		})
	}
	if latest != nil {
		children = append(children, Compare{
			LHS: field, RHS: Number(float64(*latest)), Op: Lt, Numeric: true, CaseSensitive: true,
		})
	}
	return Group{op: And, children: children}
}
