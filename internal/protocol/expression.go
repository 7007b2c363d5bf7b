package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
)

// Node types of search_expr.
const (
	nodeGroup   = "group"
	nodeCompare = "cmp"
)

type exprNode struct {
	Type     string            `json:"type"`
	Op       string            `json:"op"`
	Children []json.RawMessage `json:"children"`

	LHS             string          `json:"lhs"`
	RHS             json.RawMessage `json:"rhs"`
	IsNegated       bool            `json:"is_negated"`
	IsNumeric       bool            `json:"is_numeric"`
	IsLiteralTerm   bool            `json:"is_literal_term"`
	IsCaseSensitive bool            `json:"is_case_sensitive"`
	IsCIDRMatch     bool            `json:"is_cidr_match"`
}

// decodeExpression decodes a search_expr tree. A missing tree, or a root of an
// unknown type, matches everything.
func decodeExpression(raw json.RawMessage) (expr.Element, error) {
	if isNull(raw) {
		return expr.Empty(), nil
	}
	e, ok, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return expr.Empty(), nil
	}
	return e, nil
}

// decodeNode reports ok=false for nodes of unknown type; parents drop them.
func decodeNode(raw json.RawMessage) (expr.Element, bool, error) {
	if isNull(raw) {
		return nil, false, nil
	}
	var n exprNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, false, fmt.Errorf("%w: search_expr: %v", ErrMalformedProtocol, err)
	}

	switch n.Type {
	case nodeGroup:
		g, err := decodeGroup(n)
		if err != nil {
			return nil, false, err
		}
		return g, true, nil
	case nodeCompare:
		c, err := decodeCompare(n)
		if err != nil {
			return nil, false, err
		}
		return c, true, nil
	default:
		return nil, false, nil
	}
}

func decodeGroup(n exprNode) (expr.Group, error) {
	op, err := expr.ParseGroupOp(n.Op)
	if err != nil {
		return expr.Group{}, fmt.Errorf("%w: %v", ErrInvalidGroupOperator, err)
	}
	children := make([]expr.Element, 0, len(n.Children))
	for _, raw := range n.Children {
		child, ok, err := decodeNode(raw)
		if err != nil {
			return expr.Group{}, err
		}
		if ok {
			children = append(children, child)
		}
	}
	return expr.NewGroup(op, children...)
}

func decodeCompare(n exprNode) (expr.Compare, error) {
	rhs, err := decodeRHS(n.RHS, n.IsNumeric)
	if err != nil {
		return expr.Compare{}, fmt.Errorf("%s: %w", n.LHS, err)
	}
	return expr.Compare{
		LHS:           n.LHS,
		RHS:           rhs,
		Op:            expr.CompareOp(n.Op),
		Negated:       n.IsNegated,
		Numeric:       n.IsNumeric,
		LiteralTerm:   n.IsLiteralTerm,
		CaseSensitive: n.IsCaseSensitive,
		CIDRMatch:     n.IsCIDRMatch,
	}, nil
}

// decodeRHS keeps the value verbatim unless numeric is set, in which case the text
// or number must parse as a float.
func decodeRHS(raw json.RawMessage, numeric bool) (expr.Value, error) {
	var text string
	trimmed := bytes.TrimSpace(raw)
	switch {
	case isNull(trimmed):
	case trimmed[0] == '"':
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return expr.Value{}, fmt.Errorf("%w: rhs: %v", ErrMalformedProtocol, err)
		}
	default:
		text = string(trimmed)
	}

	if !numeric {
		return expr.Text(text), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return expr.Value{}, fmt.Errorf("%w: %q", ErrInvalidNumericValue, text)
	}
	return expr.Number(f), nil
}
