package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// UnknownProviderError is returned when a workflow names a provider that was
// never registered.
type UnknownProviderError struct {
	Kind string
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown %s provider: %s", e.Kind, e.Name)
}

// Registry maps provider names to constructors. Registration happens at
// startup; lookups may run concurrently across workflow executions, so the
// maps are guarded by a RWMutex. Re-registering a name overwrites silently.
type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]func() ScrapingProvider
	storages map[string]func() StorageProvider
}

func NewRegistry() *Registry {
	return &Registry{
		scrapers: map[string]func() ScrapingProvider{},
		storages: map[string]func() StorageProvider{},
	}
}

func (r *Registry) RegisterScraping(name string, construct func() ScrapingProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers[name] = construct
}

func (r *Registry) RegisterStorage(name string, construct func() StorageProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storages[name] = construct
}

func (r *Registry) HasScraping(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scrapers[name]
	return ok
}

func (r *Registry) HasStorage(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.storages[name]
	return ok
}

// CreateScraping instantiates a fresh scraping provider.
func (r *Registry) CreateScraping(name string) (ScrapingProvider, error) {
	r.mu.RLock()
	construct, ok := r.scrapers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownProviderError{Kind: KindScraping, Name: name}
	}
	return construct(), nil
}

// CreateStorage instantiates a fresh storage provider.
func (r *Registry) CreateStorage(name string) (StorageProvider, error) {
	r.mu.RLock()
	construct, ok := r.storages[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownProviderError{Kind: KindStorage, Name: name}
	}
	return construct(), nil
}

// List enumerates registered providers, optionally filtered by kind
// (KindScraping or KindStorage, empty for all). A constructor that panics
// degrades to a placeholder entry instead of aborting the listing.
func (r *Registry) List(kind string) []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Metadata
	if kind == "" || kind == KindScraping {
		for name, construct := range r.scrapers {
			out = append(out, scrapingMetadata(name, construct))
		}
	}
	if kind == "" || kind == KindStorage {
		for name, construct := range r.storages {
			out = append(out, storageMetadata(name, construct))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func scrapingMetadata(name string, construct func() ScrapingProvider) (md Metadata) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("scraping provider metadata unavailable", "name", name, "panic", r)
			md = Metadata{Name: name, Version: "unknown", Kind: KindScraping}
		}
	}()
	return construct().Metadata()
}

func storageMetadata(name string, construct func() StorageProvider) (md Metadata) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("storage provider metadata unavailable", "name", name, "panic", r)
			md = Metadata{Name: name, Version: "unknown", Kind: KindStorage}
		}
	}()
	return construct().Metadata()
}

// TestConnection instantiates the named provider, initializes it with the
// given config and runs its health check. This is a best-effort probe: any
// failure along the way reports false, nothing propagates.
func (r *Registry) TestConnection(ctx context.Context, name string, config Config) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("provider connection test panicked", "name", name, "panic", rec)
			ok = false
		}
	}()

	if r.HasScraping(name) {
		p, err := r.CreateScraping(name)
		if err != nil {
			return false
		}
		defer p.Cleanup(ctx)
		if err := p.Initialize(ctx, config); err != nil {
			slog.Debug("scraping provider failed to initialize", "name", name, "err", err)
			return false
		}
		return p.HealthCheck(ctx)
	}

	if r.HasStorage(name) {
		p, err := r.CreateStorage(name)
		if err != nil {
			return false
		}
		defer p.Disconnect(ctx)
		if err := p.Connect(ctx, config); err != nil {
			slog.Debug("storage provider failed to connect", "name", name, "err", err)
			return false
		}
		return p.HealthCheck(ctx)
	}

	return false
}
