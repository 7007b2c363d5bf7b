// Package sqlite serves virtual indexes from SQLite tables and views.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
	"github.com/kailas-cloud/vixbridge/internal/provider"
)

// Name is the registry key of this provider.
const Name = "sqlite"

const (
	propPath  = "path"
	propTable = "table"
	propOrder = "order_by"
)

// ErrTableNotFound is returned by Init when an index names a missing table.
var ErrTableNotFound = errors.New("table not found")

type plan struct {
	target provider.Target
	query  string
	args   []any
}

// Provider implements provider.Provider with SELECT statements.
type Provider struct {
	log      *zap.Logger
	defaults vix.Properties

	db        *sql.DB
	batchSize int
	fields    *fieldlist.List
	plans     []plan
}

// New creates a Provider.
func New(deps provider.Deps) *Provider {
	return &Provider{log: deps.Log().Named(Name), defaults: deps.Defaults}
}

// Factory is the registry constructor.
func Factory(deps provider.Deps) (provider.Provider, error) {
	return New(deps), nil
}

// Init opens the database read-only and prepares one query per index.
func (p *Provider) Init(
	ctx context.Context, cfg vix.ProviderConfig, indexes []vix.VixConfig,
	info *searchinfo.SearchInfo, fields *fieldlist.List,
) error {
	props := provider.Merge(p.defaults, cfg.Properties())

	path, err := provider.Require(props, propPath)
	if err != nil {
		return err
	}
	if p.batchSize, err = provider.BatchSize(props); err != nil {
		return err
	}
	p.fields = fields
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, propPath, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	p.db = db
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	for _, v := range indexes {
		pl, err := p.plan(ctx, cfg.FamilyName(), v, info)
		if err != nil {
			return fmt.Errorf("index %s: %w", v.IndexName(), err)
		}
		p.plans = append(p.plans, pl)
	}
	p.log.Info("sqlite provider initialized", zap.String("path", path), zap.Int("indexes", len(p.plans)))
	return nil
}

func (p *Provider) plan(ctx context.Context, family string, v vix.VixConfig, info *searchinfo.SearchInfo) (plan, error) {
	props := v.Properties()
	table := props.StringOr(propTable, v.IndexName())
	target := provider.ResolveTarget(family, v, table)

	restricted := target.Restrict(v, info)
	where, err := BuildWhere(restricted)
	if err != nil {
		if errors.Is(err, ErrUntranslatable) {
			return plan{}, provider.Unsupported(restricted, err.Error())
		}
		return plan{}, err
	}

	var name string
	err = p.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, table,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return plan{}, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	if err != nil {
		return plan{}, fmt.Errorf("looking up table: %w", err)
	}

	query := "SELECT * FROM " + QuoteIdent(table)
	if where.SQL != "" {
		query += " WHERE " + where.SQL
	}
	if order := props.StringOr(propOrder, ""); order != "" {
		query += " ORDER BY " + QuoteIdent(order)
	}
	p.log.Debug("sqlite query planned", zap.String("query", query), zap.Int("args", len(where.Args)))
	return plan{target: target, query: query, args: where.Args}, nil
}

// Run executes every planned query.
func (p *Provider) Run(ctx context.Context, w provider.ResultWriter) error {
	for _, pl := range p.plans {
		if err := p.runPlan(ctx, pl, w); err != nil {
			return fmt.Errorf("index %s: %w", pl.target.Index, err)
		}
	}
	return nil
}

func (p *Provider) runPlan(ctx context.Context, pl plan, w provider.ResultWriter) error {
	pl.target.Begin(w)
	b := provider.NewBatcher(w, p.fields, p.batchSize)
	start := time.Now()

	rows, err := p.db.QueryContext(ctx, pl.query, pl.args...)
	if err != nil {
		return fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("reading columns: %w", err)
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if raw, ok := values[i].([]byte); ok {
				rec[c] = string(raw)
			} else {
				rec[c] = values[i]
			}
		}
		if err := b.Add(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}
	if err := b.Flush(); err != nil {
		return err
	}

	provider.Report(w, pl.target.Index, b.Scanned(), b.Emitted(), time.Since(start), 1)
	p.log.Info("sqlite index streamed",
		zap.String("index", pl.target.Index),
		zap.Int64("records", b.Emitted()),
	)
	return nil
}

// Close closes the database.
func (p *Provider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
