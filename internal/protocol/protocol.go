// Package protocol decodes the request line the host writes to the bridge's stdin.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
)

// Request is a decoded request document.
type Request struct {
	Provider vix.ProviderConfig
	Indexes  []vix.VixConfig
	// Info is nil when the request carries no info block.
	Info *searchinfo.SearchInfo
	// RequiredFields is nil when the request names no fields.
	RequiredFields *fieldlist.List
}

type document struct {
	Conf *struct {
		Provider json.RawMessage `json:"provider"`
		Indexes  json.RawMessage `json:"indexes"`
	} `json:"conf"`
	Args struct {
		Search struct {
			Info           json.RawMessage `json:"info"`
			RequiredFields json.RawMessage `json:"required_fields"`
		} `json:"search"`
	} `json:"args"`
}

// Decode reads one line from r and decodes it. Bytes after the first newline are
// left unread as far as the underlying reader allows.
func Decode(r io.Reader) (*Request, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return Parse(line)
}

// Parse decodes a single request document.
func Parse(line []byte) (*Request, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || isNull(line) {
		return nil, invalid(ErrNullProtocol)
	}

	var doc document
	if err := json.Unmarshal(line, &doc); err != nil {
		return nil, invalid(fmt.Errorf("%w: %v", ErrMalformedProtocol, err))
	}
	if doc.Conf == nil || isNull(doc.Conf.Provider) {
		return nil, invalid(ErrMissingProvider)
	}

	provider, err := decodeProvider(doc.Conf.Provider)
	if err != nil {
		return nil, invalid(err)
	}
	indexes, err := decodeIndexes(doc.Conf.Indexes, provider.FamilyName())
	if err != nil {
		return nil, invalid(err)
	}
	info, err := decodeInfo(doc.Args.Search.Info)
	if err != nil {
		return nil, invalid(err)
	}
	fields, err := decodeRequiredFields(doc.Args.Search.RequiredFields)
	if err != nil {
		return nil, invalid(err)
	}

	return &Request{
		Provider:       provider,
		Indexes:        indexes,
		Info:           info,
		RequiredFields: fields,
	}, nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeProvider(raw json.RawMessage) (vix.ProviderConfig, error) {
	var props vix.Properties
	if err := json.Unmarshal(raw, &props); err != nil {
		return vix.ProviderConfig{}, fmt.Errorf("%w: conf.provider: %v", ErrMalformedProtocol, err)
	}
	family, ok := props.String("family")
	if !ok || strings.TrimSpace(family) == "" {
		return vix.ProviderConfig{}, ErrMissingFamily
	}
	return vix.NewProviderConfig(family, stripFamily(props, family)), nil
}

// stripFamily keeps the keys namespaced as "<family>.<key>" and removes that
// prefix once. Foreign keys are dropped.
func stripFamily(props vix.Properties, family string) vix.Properties {
	prefix := family + "."
	out := make(vix.Properties, len(props))
	for k, v := range props {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok || rest == "" {
			continue
		}
		out[rest] = v
	}
	return out
}

func decodeIndexes(raw json.RawMessage, family string) ([]vix.VixConfig, error) {
	if isNull(raw) {
		return nil, ErrMissingIndexes
	}
	var items []vix.Properties
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: conf.indexes: %v", ErrMalformedProtocol, err)
	}
	if len(items) == 0 {
		return nil, ErrMissingIndexes
	}

	out := make([]vix.VixConfig, 0, len(items))
	for i, item := range items {
		var name string
		if rawName, ok := item["name"]; ok {
			if err := json.Unmarshal(rawName, &name); err != nil {
				return nil, fmt.Errorf("%w: index %d: name must be a string", ErrMissingIndexName, i)
			}
		}
		if name == "" {
			return nil, fmt.Errorf("%w: index %d", ErrMissingIndexName, i)
		}

		expression, err := decodeExpression(item["search_expr"])
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", name, err)
		}
		cfg, err := vix.NewVixConfig(name, stripFamily(item, family), expression)
		if err != nil {
			return nil, fmt.Errorf("%w: index %d: %v", ErrMissingIndexName, i, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func decodeInfo(raw json.RawMessage) (*searchinfo.SearchInfo, error) {
	if isNull(raw) {
		return nil, nil
	}

	var blocks []map[string]json.RawMessage
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var single map[string]json.RawMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("%w: args.search.info: %v", ErrMalformedProtocol, err)
		}
		blocks = append(blocks, single)
	} else if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("%w: args.search.info: %v", ErrMalformedProtocol, err)
	}

	fields := make(map[string]string)
	for _, block := range blocks {
		for k, v := range block {
			if strings.EqualFold(k, searchinfo.KeyTimezone) {
				continue
			}
			if s, ok := vix.Text(v); ok {
				fields[k] = s
			}
		}
	}
	return searchinfo.New(fields), nil
}

func decodeRequiredFields(raw json.RawMessage) (*fieldlist.List, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: args.search.required_fields: %v", ErrMalformedProtocol, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(items))
	for i, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err != nil {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidRequiredField, i)
		}
		names = append(names, name)
	}
	return fieldlist.New(names), nil
}
