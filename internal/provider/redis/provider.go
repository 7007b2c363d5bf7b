// Package redis serves virtual indexes from Redis/Valkey FT indexes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/db"
	redisdb "github.com/kailas-cloud/vixbridge/internal/db/redis"
	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
	"github.com/kailas-cloud/vixbridge/internal/provider"
)

// Name is the registry key of this provider.
const Name = "redis"

// Property keys.
const (
	propAddrs     = "addrs"
	propUsername  = "username"
	propPassword  = "password"
	propDB        = "db"
	propReadiness = "readiness_timeout_sec"
	propIndex     = "index"
	propStorage   = "storage"
	propSortBy    = "sort_by"

	storageHash = "hash"
	storageJSON = "json"

	defaultReadiness = 5 * time.Second
	// KeyField carries the document key in emitted records.
	KeyField = "_key"
)

// StoreFactory opens a store.
type StoreFactory func(cfg redisdb.Config) (db.Store, error)

// Option configures a Provider.
type Option func(*Provider)

// WithStoreFactory replaces the rueidis connection, mostly for tests.
func WithStoreFactory(f StoreFactory) Option {
	return func(p *Provider) { p.newStore = f }
}

type plan struct {
	target       provider.Target
	ftIndex      string
	query        string
	storage      string
	returnFields []string
	sortBy       string
}

// Provider implements provider.Provider over FT.SEARCH.
type Provider struct {
	log      *zap.Logger
	defaults vix.Properties
	newStore StoreFactory

	store     db.Store
	batchSize int
	fields    *fieldlist.List
	plans     []plan
}

// New creates a Provider.
func New(deps provider.Deps, opts ...Option) *Provider {
	p := &Provider{
		log:      deps.Log().Named(Name),
		defaults: deps.Defaults,
		newStore: func(cfg redisdb.Config) (db.Store, error) { return redisdb.NewStore(cfg) },
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

// Init connects, waits for readiness and translates every index expression.
func (p *Provider) Init(
	ctx context.Context, cfg vix.ProviderConfig, indexes []vix.VixConfig,
	info *searchinfo.SearchInfo, fields *fieldlist.List,
) error {
	props := provider.Merge(p.defaults, cfg.Properties())

	addrs := props.Strings(propAddrs)
	if len(addrs) == 0 {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidConfig, propAddrs)
	}
	dbNum, _, err := props.Int(propDB)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	readiness := defaultReadiness
	if secs, ok, err := props.Int(propReadiness); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	} else if ok {
		readiness = time.Duration(secs) * time.Second
	}
	if p.batchSize, err = provider.BatchSize(props); err != nil {
		return err
	}
	p.fields = fields

	store, err := p.newStore(redisdb.Config{
		Addrs:    addrs,
		Username: props.StringOr(propUsername, ""),
		Password: props.StringOr(propPassword, ""),
		DB:       dbNum,
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	p.store = store
	if err := store.WaitForReady(ctx, readiness); err != nil {
		return fmt.Errorf("wait for redis: %w", err)
	}

	for _, v := range indexes {
		pl, err := p.plan(ctx, cfg.FamilyName(), v, info)
		if err != nil {
			return fmt.Errorf("index %s: %w", v.IndexName(), err)
		}
		p.plans = append(p.plans, pl)
	}
	p.log.Info("redis provider initialized", zap.Strings("addrs", addrs), zap.Int("indexes", len(p.plans)))
	return nil
}

func (p *Provider) plan(ctx context.Context, family string, v vix.VixConfig, info *searchinfo.SearchInfo) (plan, error) {
	props := v.Properties()
	ftIndex := props.StringOr(propIndex, v.IndexName())
	target := provider.ResolveTarget(family, v, ftIndex)

	restricted := target.Restrict(v, info)
	query, err := redisdb.BuildQuery(restricted)
	if err != nil {
		if errors.Is(err, redisdb.ErrUntranslatable) {
			return plan{}, provider.Unsupported(restricted, err.Error())
		}
		return plan{}, err
	}

	exists, err := p.store.IndexExists(ctx, ftIndex)
	if err != nil {
		return plan{}, err
	}
	if !exists {
		return plan{}, fmt.Errorf("%s: %w", ftIndex, db.ErrIndexNotFound)
	}

	storage := strings.ToLower(props.StringOr(propStorage, storageHash))
	if storage != storageHash && storage != storageJSON {
		return plan{}, fmt.Errorf("%w: storage must be hash or json, got %q", domain.ErrInvalidConfig, storage)
	}
	var returnFields []string
	if exact, ok := p.fields.Exact(); ok && storage == storageHash {
		returnFields = exact
	}

	p.log.Debug("redis query planned", zap.String("index", ftIndex), zap.String("query", query))
	return plan{
		target:       target,
		ftIndex:      ftIndex,
		query:        query,
		storage:      storage,
		returnFields: returnFields,
		sortBy:       props.StringOr(propSortBy, ""),
	}, nil
}

// Run pages through every planned query.
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
	var calls int64

	for offset := 0; ; {
		res, err := p.store.Search(ctx, &db.SearchQuery{
			IndexName:    pl.ftIndex,
			Query:        pl.query,
			Offset:       offset,
			Limit:        p.batchSize,
			ReturnFields: pl.returnFields,
			SortBy:       pl.sortBy,
		})
		if err != nil {
			return err
		}
		calls++
		for _, entry := range res.Entries {
			if err := b.Add(toRecord(entry, pl.storage)); err != nil {
				return err
			}
		}
		offset += len(res.Entries)
		if len(res.Entries) == 0 || offset >= res.Total {
			break
		}
	}
	if err := b.Flush(); err != nil {
		return err
	}

	provider.Report(w, pl.target.Index, b.Scanned(), b.Emitted(), time.Since(start), calls)
	p.log.Info("redis index streamed",
		zap.String("index", pl.target.Index),
		zap.Int64("records", b.Emitted()),
		zap.Int64("calls", calls),
	)
	return nil
}

func toRecord(entry db.SearchEntry, storage string) map[string]any {
	if storage == storageJSON {
		if doc, ok := entry.Fields["$"]; ok {
			var m map[string]any
			if err := json.Unmarshal([]byte(doc), &m); err == nil {
				m[KeyField] = entry.Key
				return m
			}
		}
	}
	rec := make(map[string]any, len(entry.Fields)+1)
	for k, v := range entry.Fields {
		rec[k] = v
	}
	rec[KeyField] = entry.Key
	return rec
}

// Close releases the connection.
func (p *Provider) Close() error {
	if p.store != nil {
		p.store.Close()
	}
	return nil
}
