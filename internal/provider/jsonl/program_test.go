package jsonl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
)

func TestTranslate(t *testing.T) {
	a := expr.Compare{LHS: "status", Op: expr.Eq, RHS: expr.Text("paid"), CaseSensitive: true}
	b := expr.Compare{LHS: "qty", Op: expr.Gt, RHS: expr.Number(2), Numeric: true}
	or, _ := expr.NewGroup(expr.Or, a, b)

	tests := []struct {
		name string
		in   expr.Element
		want string
	}{
		{"empty", expr.Empty(), "true"},
		{"text", a, `("status" in doc && string(doc["status"]) == "paid")`},
		{"number", b, `("qty" in doc && double(doc["qty"]) > 2.0)`},
		{"or", or, `(("status" in doc && string(doc["status"]) == "paid") || ("qty" in doc && double(doc["qty"]) > 2.0))`},
		{
			"ne",
			expr.Compare{LHS: "s", Op: expr.Ne, RHS: expr.Text("x"), CaseSensitive: true},
			`!("s" in doc && string(doc["s"]) == "x")`,
		},
		{
			"case insensitive",
			expr.Compare{LHS: "s", Op: expr.Eq, RHS: expr.Text("a.b")},
			`("s" in doc && string(doc["s"]).matches("(?i)^a\\.b$"))`,
		},
		{
			"ordering case insensitive",
			expr.Compare{LHS: "s", Op: expr.Lt, RHS: expr.Text("M")},
			`("s" in doc && string(doc["s"]).lowerAscii() < "m")`,
		},
		{
			"cidr",
			expr.Compare{LHS: "ip", Op: expr.Eq, RHS: expr.Text("10.0.0.0/8"), CIDRMatch: true},
			`("ip" in doc && cidr_match("10.0.0.0/8", string(doc["ip"])))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Translate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher(t *testing.T) {
	doc := map[string]any{
		"name":   "Acme Corp",
		"status": "PAID",
		"qty":    float64(5),
		"ip":     "10.1.2.3",
		"note":   "price (net)",
	}
	tests := []struct {
		name string
		in   expr.Compare
		want bool
	}{
		{"eq case insensitive", expr.Compare{LHS: "status", Op: expr.Eq, RHS: expr.Text("paid")}, true},
		{"eq case sensitive", expr.Compare{LHS: "status", Op: expr.Eq, RHS: expr.Text("paid"), CaseSensitive: true}, false},
		{"wildcard", expr.Compare{LHS: "name", Op: expr.Eq, RHS: expr.Text("acme*")}, true},
		{"literal", expr.Compare{LHS: "note", Op: expr.Eq, RHS: expr.Text("(net)"), LiteralTerm: true}, true},
		{"numeric", expr.Compare{LHS: "qty", Op: expr.Gte, RHS: expr.Number(5), Numeric: true}, true},
		{"numeric false", expr.Compare{LHS: "qty", Op: expr.Lt, RHS: expr.Number(5), Numeric: true}, false},
		{"missing field", expr.Compare{LHS: "nope", Op: expr.Eq, RHS: expr.Text("x")}, false},
		{"negated missing field", expr.Compare{LHS: "nope", Op: expr.Eq, RHS: expr.Text("x"), Negated: true}, true},
		{"ne", expr.Compare{LHS: "status", Op: expr.Ne, RHS: expr.Text("void")}, true},
		{"cidr", expr.Compare{LHS: "ip", Op: expr.Eq, RHS: expr.Text("10.0.0.0/8"), CIDRMatch: true}, true},
		{"cidr miss", expr.Compare{LHS: "ip", Op: expr.Eq, RHS: expr.Text("192.168.0.0/16"), CIDRMatch: true}, false},
		{"cidr address", expr.Compare{LHS: "ip", Op: expr.Eq, RHS: expr.Text("10.1.2.3"), CIDRMatch: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compile(tt.in)
			require.NoError(t, err)
			got, err := m.Match(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, m.Source())
		})
	}
}

func TestMatcher_TypeMismatch(t *testing.T) {
	m, err := Compile(expr.Compare{LHS: "qty", Op: expr.Gt, RHS: expr.Number(1), Numeric: true})
	require.NoError(t, err)

	_, err = m.Match(map[string]any{"qty": true})
	assert.Error(t, err)
}

func TestCompile_UnknownOperator(t *testing.T) {
	_, err := Compile(expr.Compare{LHS: "a", Op: expr.CompareOp("~"), RHS: expr.Text("x")})
	assert.Error(t, err)
}
