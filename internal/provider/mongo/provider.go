// Package mongo serves virtual indexes from MongoDB collections.
package mongo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
	"github.com/kailas-cloud/vixbridge/internal/provider"
)

// Name is the registry key of this provider.
const Name = "mongo"

const (
	propURI            = "uri"
	propDatabase       = "database"
	propConnectTimeout = "connect_timeout_sec"
	propCollection     = "collection"
	propSort           = "sort"

	defaultConnectTimeout = 10 * time.Second
)

// ErrCollectionNotFound is returned by Init when an index names a missing collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Dialer opens a Store.
type Dialer func(ctx context.Context, uri, database string, timeout time.Duration) (Store, error)

// Option configures a Provider.
type Option func(*Provider)

// WithDialer replaces the driver connection.
func WithDialer(d Dialer) Option {
	return func(p *Provider) { p.dial = d }
}

type plan struct {
	target provider.Target
	query  FindQuery
}

// Provider implements provider.Provider with collection finds.
type Provider struct {
	log      *zap.Logger
	defaults vix.Properties
	dial     Dialer

	store     Store
	batchSize int
	fields    *fieldlist.List
	plans     []plan
}

// New creates a Provider.
func New(deps provider.Deps, opts ...Option) *Provider {
	p := &Provider{
		log:      deps.Log().Named(Name),
		defaults: deps.Defaults,
		dial:     Dial,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Factory is the registry constructor.
func Factory(deps provider.Deps) (provider.Provider, error) {
	return New(deps), nil
}

// Init connects and builds one find per index.
func (p *Provider) Init(
	ctx context.Context, cfg vix.ProviderConfig, indexes []vix.VixConfig,
	info *searchinfo.SearchInfo, fields *fieldlist.List,
) error {
	props := provider.Merge(p.defaults, cfg.Properties())

	uri, err := provider.Require(props, propURI)
	if err != nil {
		return err
	}
	database, err := provider.Require(props, propDatabase)
	if err != nil {
		return err
	}
	timeout := defaultConnectTimeout
	if secs, ok, err := props.Int(propConnectTimeout); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	} else if ok {
		timeout = time.Duration(secs) * time.Second
	}
	if p.batchSize, err = provider.BatchSize(props); err != nil {
		return err
	}
	p.fields = fields

	store, err := p.dial(ctx, uri, database, timeout)
	if err != nil {
		return err
	}
	p.store = store

	for _, v := range indexes {
		pl, err := p.plan(ctx, cfg.FamilyName(), v, info)
		if err != nil {
			return fmt.Errorf("index %s: %w", v.IndexName(), err)
		}
		p.plans = append(p.plans, pl)
	}
	p.log.Info("mongo provider initialized", zap.String("database", database), zap.Int("indexes", len(p.plans)))
	return nil
}

func (p *Provider) plan(ctx context.Context, family string, v vix.VixConfig, info *searchinfo.SearchInfo) (plan, error) {
	props := v.Properties()
	collection := props.StringOr(propCollection, v.IndexName())
	target := provider.ResolveTarget(family, v, collection)

	restricted := target.Restrict(v, info)
	filter, err := BuildFilter(restricted)
	if err != nil {
		if errors.Is(err, ErrUntranslatable) {
			return plan{}, provider.Unsupported(restricted, err.Error())
		}
		return plan{}, err
	}

	exists, err := p.store.CollectionExists(ctx, collection)
	if err != nil {
		return plan{}, err
	}
	if !exists {
		return plan{}, fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}

	q := FindQuery{
		Collection: collection,
		Filter:     filter,
		Sort:       parseSort(props.StringOr(propSort, "")),
		BatchSize:  int32(p.batchSize),
	}
	if exact, ok := p.fields.Exact(); ok {
		for _, f := range exact {
			q.Projection = append(q.Projection, bson.E{Key: f, Value: 1})
		}
	}
	p.log.Debug("mongo query planned", zap.String("collection", collection), zap.Any("filter", filter))
	return plan{target: target, query: q}, nil
}

// parseSort reads "a,-b" into ascending a then descending b.
func parseSort(s string) bson.D {
	var out bson.D
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		dir := 1
		if name, ok := strings.CutPrefix(f, "-"); ok {
			f, dir = name, -1
		}
		out = append(out, bson.E{Key: f, Value: dir})
	}
	return out
}

// Run streams every planned find.
func (p *Provider) Run(ctx context.Context, w provider.ResultWriter) error {
	for _, pl := range p.plans {
		if err := p.runPlan(ctx, pl, w); err != nil {
			return fmt.Errorf("index %s: %w", pl.target.Index, err)
		}
	}
	return nil
}

func (p *Provider) runPlan(ctx context.Context, pl plan, w provider.ResultWriter) (err error) {
	pl.target.Begin(w)
	b := provider.NewBatcher(w, p.fields, p.batchSize)
	start := time.Now()

	cur, err := p.store.Find(ctx, pl.query)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for cur.Next(ctx) {
		var raw bson.Raw
		if err := cur.Decode(&raw); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		rec, err := toRecord(raw)
		if err != nil {
			return err
		}
		if err := b.Add(rec); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("cursor: %w", err)
	}
	if err := b.Flush(); err != nil {
		return err
	}

	calls := 1 + b.Scanned()/int64(p.batchSize)
	provider.Report(w, pl.target.Index, b.Scanned(), b.Emitted(), time.Since(start), calls)
	p.log.Info("mongo index streamed",
		zap.String("index", pl.target.Index),
		zap.Int64("records", b.Emitted()),
	)
	return nil
}

// toRecord renders a document as relaxed extended JSON.
func toRecord(raw bson.Raw) (map[string]any, error) {
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("extjson: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("extjson: %w", err)
	}
	return m, nil
}

// Close disconnects.
func (p *Provider) Close() error {
	if p.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	return p.store.Close(ctx)
}
