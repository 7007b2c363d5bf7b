package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
)

// ErrUntranslatable is returned by BuildWhere for comparisons SQLite cannot express.
var ErrUntranslatable = errors.New("cannot translate to sql")

// Where is a parameterised boolean SQL expression. An empty SQL matches every row.
type Where struct {
	SQL  string
	Args []any
}

// BuildWhere translates a search expression into a WHERE clause body.
func BuildWhere(e expr.Element) (Where, error) {
	return expr.Walk[Where](e, whereBuilder{})
}

type whereBuilder struct{}

func (whereBuilder) VisitGroup(g expr.Group, children []Where) (Where, error) {
	parts := make([]string, 0, len(children))
	var args []any
	for _, c := range children {
		if c.SQL == "" {
			if g.Op() == expr.Or {
				return Where{}, nil
			}
			continue
		}
		parts = append(parts, c.SQL)
		args = append(args, c.Args...)
	}
	switch len(parts) {
	case 0:
		return Where{}, nil
	case 1:
		return Where{SQL: parts[0], Args: args}, nil
	}
	return Where{SQL: "(" + strings.Join(parts, " "+string(g.Op())+" ") + ")", Args: args}, nil
}

func (whereBuilder) VisitCompare(c expr.Compare) (Where, error) {
	if c.CIDRMatch {
		return Where{}, fmt.Errorf("%w: cidr match on %s", ErrUntranslatable, c.LHS)
	}
	if !c.Op.Known() {
		return Where{}, fmt.Errorf("%w: operator %q", ErrUntranslatable, c.Op)
	}

	negate := c.Negated
	op := string(c.Op)
	if c.Op == expr.Ne {
		negate = !negate
		op = "="
	}

	col := QuoteIdent(c.LHS)
	var w Where
	switch {
	case c.RHS.IsNumber():
		w = Where{SQL: col + " " + op + " ?", Args: []any{c.RHS.Interface()}}
	case op == "=" && (c.LiteralTerm || strings.Contains(c.RHS.Raw(), "*")):
		w = patternMatch(col, c)
	case c.CaseSensitive:
		w = Where{SQL: col + " " + op + " ?", Args: []any{c.RHS.Raw()}}
	default:
		w = Where{SQL: col + " " + op + " ? COLLATE NOCASE", Args: []any{c.RHS.Raw()}}
	}

	if negate {
		w.SQL = "NOT (" + w.SQL + ")"
	}
	return w, nil
}

// patternMatch uses GLOB for case sensitive matches and LIKE otherwise.
func patternMatch(col string, c expr.Compare) Where {
	raw := c.RHS.Raw()
	if c.CaseSensitive {
		pattern := globEscaper.Replace(raw)
		if c.LiteralTerm {
			pattern = "*" + strings.ReplaceAll(pattern, "*", "[*]") + "*"
		}
		return Where{SQL: col + " GLOB ?", Args: []any{pattern}}
	}
	pattern := likeEscaper.Replace(raw)
	if c.LiteralTerm {
		pattern = "%" + pattern + "%"
	} else {
		pattern = strings.ReplaceAll(pattern, "*", "%")
	}
	return Where{SQL: col + ` LIKE ? ESCAPE '\'`, Args: []any{pattern}}
}

var (
	globEscaper = strings.NewReplacer("?", "[?]", "[", "[[]")
	likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
)

// QuoteIdent quotes an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
