package jsonl

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
)

// Matcher evaluates a compiled search expression against decoded records.
type Matcher struct {
	source string
	prg    cel.Program
}

// Compile translates e into a CEL program over the variable doc.
func Compile(e expr.Element) (*Matcher, error) {
	src, err := Translate(e)
	if err != nil {
		return nil, err
	}
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("CEL environment: %w", err)
	}
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return &Matcher{source: src, prg: prg}, nil
}

// Source returns the CEL text of the program.
func (m *Matcher) Source() string { return m.source }

// Match reports whether doc satisfies the expression. An evaluation error,
// such as a type mismatch, is returned alongside false.
func (m *Matcher) Match(doc map[string]any) (bool, error) {
	out, _, err := m.prg.Eval(map[string]any{"doc": doc})
	if err != nil {
		return false, err
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL result is not boolean: %T", out.Value())
	}
	return result, nil
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
		cel.Lib(cidrLib{}),
	)
}

// Translate renders e as a CEL boolean expression.
func Translate(e expr.Element) (string, error) {
	return expr.Walk[string](e, celBuilder{})
}

const matchAll = "true"

type celBuilder struct{}

func (celBuilder) VisitGroup(g expr.Group, children []string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		if c == matchAll {
			if g.Op() == expr.Or {
				return matchAll, nil
			}
			continue
		}
		parts = append(parts, c)
	}
	switch len(parts) {
	case 0:
		return matchAll, nil
	case 1:
		return parts[0], nil
	}
	sep := " && "
	if g.Op() == expr.Or {
		sep = " || "
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (celBuilder) VisitCompare(c expr.Compare) (string, error) {
	if !c.Op.Known() {
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}
	negate := c.Negated
	op := string(c.Op)
	if c.Op == expr.Ne {
		negate = !negate
		op = "="
	}
	if op == "=" {
		op = "=="
	}

	key := strconv.Quote(c.LHS)
	field := "doc[" + key + "]"
	var test string
	switch {
	case c.CIDRMatch:
		test = fmt.Sprintf("cidr_match(%s, string(%s))", strconv.Quote(c.RHS.Raw()), field)
	case c.RHS.IsNumber() || (c.Numeric && isNumber(c.RHS.Raw())):
		test = fmt.Sprintf("double(%s) %s %s", field, op, doubleLiteral(c.RHS))
	case op == "==" && (c.LiteralTerm || strings.Contains(c.RHS.Raw(), "*") || !c.CaseSensitive):
		test = fmt.Sprintf("string(%s).matches(%s)", field, strconv.Quote(pattern(c)))
	case c.CaseSensitive:
		test = fmt.Sprintf("string(%s) %s %s", field, op, strconv.Quote(c.RHS.Raw()))
	default:
		test = fmt.Sprintf("string(%s).lowerAscii() %s %s", field, op, strconv.Quote(strings.ToLower(c.RHS.Raw())))
	}

	clause := "(" + key + " in doc && " + test + ")"
	if negate {
		return "!" + clause, nil
	}
	return clause, nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func doubleLiteral(v expr.Value) string {
	f, ok := v.Float()
	if !ok {
		f, _ = strconv.ParseFloat(v.Raw(), 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// pattern builds the RE2 pattern of a text equality.
func pattern(c expr.Compare) string {
	raw := c.RHS.Raw()
	var re string
	if c.LiteralTerm {
		re = regexp.QuoteMeta(raw)
	} else {
		parts := strings.Split(raw, "*")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		re = "^" + strings.Join(parts, ".*") + "$"
	}
	if !c.CaseSensitive {
		re = "(?i)" + re
	}
	return re
}

// cidrLib declares cidr_match(cidr, ip). A bare address as cidr matches itself.
type cidrLib struct{}

func (cidrLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("cidr_match",
			cel.Overload("cidr_match_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(cidrMatch),
			),
		),
	}
}

func (cidrLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func cidrMatch(lhs, rhs ref.Val) ref.Val {
	cidr, ok := lhs.(types.String)
	if !ok {
		return types.NewErr("invalid cidr argument to cidr_match")
	}
	ip, ok := rhs.(types.String)
	if !ok {
		return types.NewErr("invalid address argument to cidr_match")
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(string(ip)))
	if err != nil {
		return types.Bool(false)
	}
	if !strings.Contains(string(cidr), "/") {
		other, err := netip.ParseAddr(string(cidr))
		if err != nil {
			return types.NewErr("cidr_match: %v", err)
		}
		return types.Bool(addr.Unmap() == other.Unmap())
	}
	prefix, err := netip.ParsePrefix(string(cidr))
	if err != nil {
		return types.NewErr("cidr_match: %v", err)
	}
	return types.Bool(prefix.Contains(addr.Unmap()))
}
