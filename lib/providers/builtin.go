// Package providers wires the built-in provider set into a registry.
package providers

import (
	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/shafqat-a/scrapper/lib/scrapers/goqueryscraper"
	"github.com/shafqat-a/scrapper/lib/storage/csvstore"
	"github.com/shafqat-a/scrapper/lib/storage/jsonstore"
	"github.com/shafqat-a/scrapper/lib/storage/pgstore"
	"github.com/shafqat-a/scrapper/lib/storage/sqlitestore"
)

// DefaultRegistry returns a registry with every built-in provider
// registered. Callers embedding the engine can start from this and register
// their own providers on top.
func DefaultRegistry() *provider.Registry {
	registry := provider.NewRegistry()

	registry.RegisterScraping("goquery", func() provider.ScrapingProvider {
		return goqueryscraper.New()
	})

	registry.RegisterStorage("csv", func() provider.StorageProvider {
		return csvstore.New()
	})
	registry.RegisterStorage("json", func() provider.StorageProvider {
		return jsonstore.New()
	})
	registry.RegisterStorage("sqlite", func() provider.StorageProvider {
		return sqlitestore.New()
	})
	registry.RegisterStorage("postgresql", func() provider.StorageProvider {
		return pgstore.New()
	})

	return registry
}
