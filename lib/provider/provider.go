// Package provider defines the pluggable backend contracts of the engine:
// scraping providers that drive a page session and storage providers that
// persist extracted elements. Concrete implementations live under
// lib/scrapers and lib/storage; the engine only ever sees these interfaces.
package provider

import (
	"context"

	"github.com/spf13/cast"
)

const (
	KindScraping = "scraping"
	KindStorage  = "storage"
)

// Metadata describes a registered provider.
type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Kind         string   `json:"kind"`
	Capabilities []string `json:"capabilities"`
	Description  string   `json:"description,omitempty"`
}

// Config is the opaque provider configuration block from a workflow
// document. Providers pull their own sub-tree out of it by name.
type Config map[string]any

func (c Config) Sub(key string) Config {
	v, ok := c[key]
	if !ok {
		return Config{}
	}
	sub, err := cast.ToStringMapE(v)
	if err != nil {
		return Config{}
	}
	return Config(sub)
}

func (c Config) String(key, fallback string) string {
	v, ok := c[key]
	if !ok {
		return fallback
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fallback
	}
	return s
}

func (c Config) Int(key string, fallback int) int {
	v, ok := c[key]
	if !ok {
		return fallback
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return fallback
	}
	return n
}

func (c Config) Bool(key string, fallback bool) bool {
	v, ok := c[key]
	if !ok {
		return fallback
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return fallback
	}
	return b
}

// ScrapingProvider is the contract a scraping backend implements. Execute
// methods take the step's typed config; ExecuteDiscover, ExecuteExtract and
// ExecutePaginate also take the current page context produced by a previous
// init or paginate step.
type ScrapingProvider interface {
	Metadata() Metadata
	Initialize(ctx context.Context, config Config) error
	ExecuteInit(ctx context.Context, config InitConfig) (*PageContext, error)
	ExecuteDiscover(ctx context.Context, config DiscoverConfig, page *PageContext) ([]DataElement, error)
	ExecuteExtract(ctx context.Context, config ExtractConfig, page *PageContext) ([]DataElement, error)
	// ExecutePaginate returns nil when there is no further page.
	ExecutePaginate(ctx context.Context, config PaginateConfig, page *PageContext) (*PageContext, error)
	Cleanup(ctx context.Context) error
	HealthCheck(ctx context.Context) bool
}

// StorageProvider is the contract a storage backend implements.
type StorageProvider interface {
	Metadata() Metadata
	Connect(ctx context.Context, config Config) error
	Store(ctx context.Context, data []DataElement, schema *SchemaDefinition) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) bool
}

// SchemaDefinition describes the shape of stored records for providers that
// support structured storage.
type SchemaDefinition struct {
	Name       string                 `json:"name"`
	Fields     map[string]SchemaField `json:"fields"`
	PrimaryKey []string               `json:"primary_key,omitempty"`
}

type SchemaField struct {
	Type      string `json:"type"`
	Required  bool   `json:"required,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	Index     bool   `json:"index,omitempty"`
}
