// Package jsonl serves virtual indexes from JSON-lines files. Search
// expressions are compiled to CEL and evaluated per record.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
	"github.com/kailas-cloud/vixbridge/internal/provider"
)

// Name is the registry key of this provider.
const Name = "jsonl"

const (
	propDir  = "dir"
	propPath = "path"

	fileExt = ".jsonl"
)

type plan struct {
	target  provider.Target
	path    string
	matcher *Matcher
}

// Provider implements provider.Provider over local files.
type Provider struct {
	log      *zap.Logger
	defaults vix.Properties

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

// Init resolves every index file and compiles its expression.
func (p *Provider) Init(
	_ context.Context, cfg vix.ProviderConfig, indexes []vix.VixConfig,
	info *searchinfo.SearchInfo, fields *fieldlist.List,
) error {
	props := provider.Merge(p.defaults, cfg.Properties())
	dir := props.StringOr(propDir, ".")

	var err error
	if p.batchSize, err = provider.BatchSize(props); err != nil {
		return err
	}
	p.fields = fields

	for _, v := range indexes {
		path := v.Properties().StringOr(propPath, v.IndexName()+fileExt)
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		st, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("index %s: %w: %v", v.IndexName(), domain.ErrInvalidConfig, err)
		}
		if st.IsDir() {
			return fmt.Errorf("index %s: %w: %s is a directory", v.IndexName(), domain.ErrInvalidConfig, path)
		}

		target := provider.ResolveTarget(cfg.FamilyName(), v, filepath.Base(path))
		m, err := Compile(target.Restrict(v, info))
		if err != nil {
			return fmt.Errorf("index %s: %w", v.IndexName(), err)
		}
		p.log.Debug("jsonl program compiled", zap.String("path", path), zap.String("cel", m.Source()))
		p.plans = append(p.plans, plan{target: target, path: path, matcher: m})
	}
	p.log.Info("jsonl provider initialized", zap.String("dir", dir), zap.Int("indexes", len(p.plans)))
	return nil
}

// Run scans every file.
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

	f, err := os.Open(pl.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var malformed, mismatched int64
	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading %s: %w", pl.path, readErr)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var doc map[string]any
			if err := json.Unmarshal(line, &doc); err != nil || doc == nil {
				malformed++
				b.Skip()
			} else if ok, err := pl.matcher.Match(doc); err != nil {
				mismatched++
				b.Skip()
			} else if !ok {
				b.Skip()
			} else if err := b.Add(doc); err != nil {
				return err
			}
		}
		if readErr != nil {
			break
		}
	}
	if err := b.Flush(); err != nil {
		return err
	}

	if malformed > 0 {
		w.AddMessage("warn", fmt.Sprintf("%s: skipped %d malformed lines", pl.target.Index, malformed))
	}
	provider.Report(w, pl.target.Index, b.Scanned(), b.Emitted(), time.Since(start), 1)
	p.log.Info("jsonl index streamed",
		zap.String("index", pl.target.Index),
		zap.Int64("records", b.Emitted()),
		zap.Int64("malformed", malformed),
		zap.Int64("type_mismatches", mismatched),
	)
	return nil
}

// Close is a no-op; files are closed after each scan.
func (p *Provider) Close() error { return nil }
