package mongo

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
)

// ErrUntranslatable is returned by BuildFilter for comparisons MongoDB cannot express.
var ErrUntranslatable = errors.New("cannot translate to mongo filter")

// BuildFilter translates a search expression into a find filter. An empty
// document matches every record.
func BuildFilter(e expr.Element) (bson.D, error) {
	return expr.Walk[bson.D](e, filterBuilder{})
}

type filterBuilder struct{}

func (filterBuilder) VisitGroup(g expr.Group, children []bson.D) (bson.D, error) {
	parts := make(bson.A, 0, len(children))
	for _, c := range children {
		if len(c) == 0 {
			if g.Op() == expr.Or {
				return bson.D{}, nil
			}
			continue
		}
		parts = append(parts, c)
	}
	switch len(parts) {
	case 0:
		return bson.D{}, nil
	case 1:
		return parts[0].(bson.D), nil
	}
	op := "$and"
	if g.Op() == expr.Or {
		op = "$or"
	}
	return bson.D{{Key: op, Value: parts}}, nil
}

func (filterBuilder) VisitCompare(c expr.Compare) (bson.D, error) {
	if c.CIDRMatch {
		return nil, fmt.Errorf("%w: cidr match on %s", ErrUntranslatable, c.LHS)
	}
	op := mapOp(c.Op)
	if op == "" {
		return nil, fmt.Errorf("%w: operator %q", ErrUntranslatable, c.Op)
	}

	negate := c.Negated
	if c.Op == expr.Ne {
		negate = !negate
		op = "$eq"
	}

	var cond any
	if pattern, ok := textPattern(c); ok && op == "$eq" {
		re := primitive.Regex{Pattern: pattern}
		if !c.CaseSensitive {
			re.Options = "i"
		}
		cond = re
	} else {
		cond = bson.D{{Key: op, Value: c.RHS.Interface()}}
	}

	clause := bson.D{{Key: c.LHS, Value: cond}}
	if negate {
		return bson.D{{Key: "$nor", Value: bson.A{clause}}}, nil
	}
	return clause, nil
}

func mapOp(op expr.CompareOp) string {
	switch op {
	case expr.Eq, expr.Ne:
		return "$eq"
	case expr.Gt:
		return "$gt"
	case expr.Gte:
		return "$gte"
	case expr.Lt:
		return "$lt"
	case expr.Lte:
		return "$lte"
	default:
		return ""
	}
}

// textPattern reports the regular expression of a text equality that needs one:
// wildcards, literal terms and case-insensitive matches.
func textPattern(c expr.Compare) (string, bool) {
	if c.RHS.IsNumber() {
		return "", false
	}
	raw := c.RHS.Raw()
	if c.LiteralTerm {
		return regexp.QuoteMeta(raw), true
	}
	if !strings.Contains(raw, "*") && c.CaseSensitive {
		return "", false
	}
	parts := strings.Split(raw, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, ".*") + "$", true
}
