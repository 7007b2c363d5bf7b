package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
	"github.com/kailas-cloud/vixbridge/internal/provider"
	"github.com/kailas-cloud/vixbridge/internal/provider/providertest"
)

var props = providertest.Props

// setupDatabase creates a database file with an orders table.
func setupDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "erp.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE orders (id INTEGER PRIMARY KEY, customer TEXT, status TEXT, total REAL, ts INTEGER);
		INSERT INTO orders VALUES
			(1, 'Acme', 'PAID', 10.5, 100),
			(2, 'acme corp', 'open', 3, 150),
			(3, 'Globex', 'paid', 99, 200),
			(4, 'Initech', 'void', 0, 250);
	`)
	require.NoError(t, err)
	return path
}

func run(t *testing.T, path string, v vix.VixConfig, info *searchinfo.SearchInfo, fields *fieldlist.List) *providertest.Recorder {
	t.Helper()
	p := New(provider.Deps{})
	cfg := vix.NewProviderConfig("sqlite", props("path", path, "batch_size", 2))
	require.NoError(t, p.Init(context.Background(), cfg, []vix.VixConfig{v}, info, fields))
	rec := providertest.NewRecorder()
	require.NoError(t, p.Run(context.Background(), rec))
	require.NoError(t, p.Close())
	return rec
}

func ids(t *testing.T, rec *providertest.Recorder) []float64 {
	t.Helper()
	records, err := rec.Decoded()
	require.NoError(t, err)
	out := make([]float64, 0, len(records))
	for _, r := range records {
		out = append(out, r["id"].(float64))
	}
	return out
}

func TestProvider_Filters(t *testing.T) {
	path := setupDatabase(t)

	paid := expr.Compare{LHS: "status", Op: expr.Eq, RHS: expr.Text("paid")}
	paidExact := expr.Compare{LHS: "status", Op: expr.Eq, RHS: expr.Text("paid"), CaseSensitive: true}
	acme := expr.Compare{LHS: "customer", Op: expr.Eq, RHS: expr.Text("acme*")}
	big := expr.Compare{LHS: "total", Op: expr.Gt, RHS: expr.Number(5), Numeric: true}
	notVoid := expr.Compare{LHS: "status", Op: expr.Ne, RHS: expr.Text("void"), CaseSensitive: true}
	corp := expr.Compare{LHS: "customer", Op: expr.Eq, RHS: expr.Text("corp"), LiteralTerm: true}
	andGroup, _ := expr.NewGroup(expr.And, paid, big)
	orGroup, _ := expr.NewGroup(expr.Or, acme, notVoid)

	tests := []struct {
		name string
		in   expr.Element
		want []float64
	}{
		{"all", expr.Empty(), []float64{1, 2, 3, 4}},
		{"case insensitive", paid, []float64{1, 3}},
		{"case sensitive", paidExact, []float64{3}},
		{"like", acme, []float64{1, 2}},
		{"literal", corp, []float64{2}},
		{"and", andGroup, []float64{1, 3}},
		{"or", orGroup, []float64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := vix.NewVixConfig("orders", props("order_by", "id"), tt.in)
			require.NoError(t, err)
			rec := run(t, path, v, nil, nil)
			assert.Equal(t, tt.want, ids(t, rec))
			assert.Equal(t, [2]int64{int64(len(tt.want)), int64(len(tt.want))}, rec.Counts["orders"])
		})
	}
}

func TestProvider_RecordShape(t *testing.T) {
	path := setupDatabase(t)
	v, _ := vix.NewVixConfig("big_orders", props("table", "orders", "order_by", "id", "timestamp_field", "ts"), nil)
	info := searchinfo.New(map[string]string{searchinfo.KeyEarliest: "150", searchinfo.KeyLatest: "250"})
	fields := fieldlist.New([]string{"id", "cust*"})

	rec := run(t, path, v, info, fields)

	assert.Equal(t, []string{
		`{"customer":"acme corp","id":2}`,
		`{"customer":"Globex","id":3}`,
	}, rec.Records)
	assert.Equal(t, []providertest.Header{{Index: "big_orders", Source: "orders", Sourcetype: "sqlite:json"}}, rec.Headers)
	assert.Equal(t, `"ts":`, rec.Props["TIME_PREFIX"])
	assert.Equal(t, 1, rec.BatchCalls)
	assert.Equal(t, int64(1), rec.Metrics["query.big_orders"][1])
}

func TestProvider_InitErrors(t *testing.T) {
	path := setupDatabase(t)
	cidr := expr.Compare{LHS: "ip", Op: expr.Eq, RHS: expr.Text("10.0.0.0/8"), CIDRMatch: true}

	tests := []struct {
		name  string
		props vix.Properties
		index string
		expr  expr.Element
		want  error
	}{
		{"missing path", props(), "orders", nil, domain.ErrInvalidConfig},
		{"absent file", props("path", filepath.Join(t.TempDir(), "none.db")), "orders", nil, domain.ErrInvalidConfig},
		{"unknown table", props("path", path), "nope", nil, ErrTableNotFound},
		{"cidr", props("path", path), "orders", cidr, domain.ErrUnsupportedExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(provider.Deps{})
			v, _ := vix.NewVixConfig(tt.index, nil, tt.expr)
			err := p.Init(context.Background(), vix.NewProviderConfig("sqlite", tt.props), []vix.VixConfig{v}, nil, nil)
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, p.Close())
		})
	}
}

func TestProvider_DefaultPathFromConfig(t *testing.T) {
	path := setupDatabase(t)
	p := New(provider.Deps{Defaults: props("path", path)})
	v, _ := vix.NewVixConfig("orders", nil, nil)

	require.NoError(t, p.Init(context.Background(), vix.NewProviderConfig("sqlite", nil), []vix.VixConfig{v}, nil, nil))
	rec := providertest.NewRecorder()
	require.NoError(t, p.Run(context.Background(), rec))
	require.NoError(t, p.Close())
	assert.Len(t, rec.Records, 4)
}
