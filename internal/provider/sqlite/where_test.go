package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
)

func TestBuildWhere_Compare(t *testing.T) {
	tests := []struct {
		name string
		in   expr.Compare
		want Where
	}{
		{
			name: "case sensitive eq",
			in:   expr.Compare{LHS: "status", Op: expr.Eq, RHS: expr.Text("paid"), CaseSensitive: true},
			want: Where{SQL: `"status" = ?`, Args: []any{"paid"}},
		},
		{
			name: "case insensitive eq",
			in:   expr.Compare{LHS: "status", Op: expr.Eq, RHS: expr.Text("Paid")},
			want: Where{SQL: `"status" = ? COLLATE NOCASE`, Args: []any{"Paid"}},
		},
		{
			name: "numeric",
			in:   expr.Compare{LHS: "qty", Op: expr.Gte, RHS: expr.Number(5), Numeric: true},
			want: Where{SQL: `"qty" >= ?`, Args: []any{5.0}},
		},
		{
			name: "ne",
			in:   expr.Compare{LHS: "qty", Op: expr.Ne, RHS: expr.Number(5), Numeric: true},
			want: Where{SQL: `NOT ("qty" = ?)`, Args: []any{5.0}},
		},
		{
			name: "negated ne",
			in:   expr.Compare{LHS: "s", Op: expr.Ne, RHS: expr.Text("x"), Negated: true, CaseSensitive: true},
			want: Where{SQL: `"s" = ?`, Args: []any{"x"}},
		},
		{
			name: "like wildcard",
			in:   expr.Compare{LHS: "name", Op: expr.Eq, RHS: expr.Text("b_o*")},
			want: Where{SQL: `"name" LIKE ? ESCAPE '\'`, Args: []any{`b\_o%`}},
		},
		{
			name: "like literal",
			in:   expr.Compare{LHS: "msg", Op: expr.Eq, RHS: expr.Text("50%"), LiteralTerm: true},
			want: Where{SQL: `"msg" LIKE ? ESCAPE '\'`, Args: []any{`%50\%%`}},
		},
		{
			name: "glob wildcard",
			in:   expr.Compare{LHS: "name", Op: expr.Eq, RHS: expr.Text("B?b*"), CaseSensitive: true},
			want: Where{SQL: `"name" GLOB ?`, Args: []any{"B[?]b*"}},
		},
		{
			name: "glob literal",
			in:   expr.Compare{LHS: "msg", Op: expr.Eq, RHS: expr.Text("a*b"), LiteralTerm: true, CaseSensitive: true},
			want: Where{SQL: `"msg" GLOB ?`, Args: []any{"*a[*]b*"}},
		},
		{
			name: "quoted identifier",
			in:   expr.Compare{LHS: `we"ird`, Op: expr.Lt, RHS: expr.Text("m")},
			want: Where{SQL: `"we""ird" < ? COLLATE NOCASE`, Args: []any{"m"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildWhere(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildWhere_Groups(t *testing.T) {
	a := expr.Compare{LHS: "a", Op: expr.Eq, RHS: expr.Text("1"), CaseSensitive: true}
	b := expr.Compare{LHS: "b", Op: expr.Gt, RHS: expr.Number(2), Numeric: true}
	or, _ := expr.NewGroup(expr.Or, a, b)
	nested, _ := expr.NewGroup(expr.And, b, or)
	orAll, _ := expr.NewGroup(expr.Or, a, expr.Empty())

	tests := []struct {
		name string
		in   expr.Element
		want Where
	}{
		{"empty", expr.Empty(), Where{}},
		{"or", or, Where{SQL: `("a" = ? OR "b" > ?)`, Args: []any{"1", 2.0}}},
		{"nested", nested, Where{SQL: `("b" > ? AND ("a" = ? OR "b" > ?))`, Args: []any{2.0, "1", 2.0}}},
		{"or with match all", orAll, Where{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildWhere(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildWhere_Untranslatable(t *testing.T) {
	_, err := BuildWhere(expr.Compare{LHS: "ip", Op: expr.Eq, RHS: expr.Text("10.0.0.0/8"), CIDRMatch: true})
	assert.ErrorIs(t, err, ErrUntranslatable)
}
