package redis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
)

// ErrUntranslatable is returned by BuildQuery for comparisons FT.SEARCH cannot express.
var ErrUntranslatable = errors.New("cannot translate to FT.SEARCH")

const matchAll = "*"

// BuildQuery translates a search expression into an FT.SEARCH (DIALECT 2) query.
// Text comparisons target TAG fields, numeric ones NUMERIC fields.
func BuildQuery(e expr.Element) (string, error) {
	return expr.Walk[string](e, queryBuilder{})
}

type queryBuilder struct{}

func (queryBuilder) VisitGroup(g expr.Group, children []string) (string, error) {
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
	sep := " "
	if g.Op() == expr.Or {
		sep = " | "
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (queryBuilder) VisitCompare(c expr.Compare) (string, error) {
	if c.CIDRMatch {
		return "", fmt.Errorf("%w: cidr match on %s", ErrUntranslatable, c.LHS)
	}
	if !c.Op.Known() {
		return "", fmt.Errorf("%w: operator %q", ErrUntranslatable, c.Op)
	}

	negate := c.Negated
	if c.Op == expr.Ne {
		negate = !negate
	}

	var clause string
	if f, ok := numericValue(c); ok {
		clause = buildNumericClause(c.LHS, c.Op, f)
	} else {
		if c.Op.IsOrdering() {
			return "", fmt.Errorf("%w: ordering on non-numeric value %q", ErrUntranslatable, c.RHS.Raw())
		}
		tag, err := buildTagValue(c)
		if err != nil {
			return "", err
		}
		clause = fmt.Sprintf("@%s:{%s}", c.LHS, tag)
	}

	if negate {
		return "-" + clause, nil
	}
	return clause, nil
}

// numericValue reports the comparison value when it should hit a NUMERIC field.
// Ordering comparisons on numeric looking text count as numeric.
func numericValue(c expr.Compare) (float64, bool) {
	if f, ok := c.RHS.Float(); ok {
		return f, true
	}
	if !c.Numeric && !c.Op.IsOrdering() {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.RHS.Raw(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func buildNumericClause(field string, op expr.CompareOp, v float64) string {
	num := strconv.FormatFloat(v, 'g', -1, 64)
	minBound, maxBound := "-inf", "+inf"
	switch op {
	case expr.Eq, expr.Ne:
		minBound, maxBound = num, num
	case expr.Gt:
		minBound = "(" + num
	case expr.Gte:
		minBound = num
	case expr.Lt:
		maxBound = "(" + num
	case expr.Lte:
		maxBound = num
	}
	return fmt.Sprintf("@%s:[%s %s]", field, minBound, maxBound)
}

// buildTagValue escapes the value; `*` is kept as a wildcard and a literal term
// becomes an infix match.
func buildTagValue(c expr.Compare) (string, error) {
	raw := c.RHS.Raw()
	if c.LiteralTerm {
		return "*" + tagEscaper.Replace(raw) + "*", nil
	}
	if !strings.Contains(raw, "*") {
		return tagEscaper.Replace(raw), nil
	}
	parts := strings.Split(raw, "*")
	for i, p := range parts {
		parts[i] = tagEscaper.Replace(p)
	}
	if strings.Trim(raw, "*") == "" {
		return "", fmt.Errorf("%w: bare wildcard on %s", ErrUntranslatable, c.LHS)
	}
	return strings.Join(parts, "*"), nil
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)
