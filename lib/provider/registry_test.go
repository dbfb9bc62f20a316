package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	initErr error
	healthy bool
}

func (f *fakeScraper) Metadata() Metadata {
	return Metadata{Name: "fake", Version: "0.0.1", Kind: KindScraping}
}

func (f *fakeScraper) Initialize(ctx context.Context, config Config) error { return f.initErr }

func (f *fakeScraper) ExecuteInit(ctx context.Context, config InitConfig) (*PageContext, error) {
	return &PageContext{URL: config.URL}, nil
}

func (f *fakeScraper) ExecuteDiscover(ctx context.Context, config DiscoverConfig, page *PageContext) ([]DataElement, error) {
	return nil, nil
}

func (f *fakeScraper) ExecuteExtract(ctx context.Context, config ExtractConfig, page *PageContext) ([]DataElement, error) {
	return nil, nil
}

func (f *fakeScraper) ExecutePaginate(ctx context.Context, config PaginateConfig, page *PageContext) (*PageContext, error) {
	return nil, nil
}

func (f *fakeScraper) Cleanup(ctx context.Context) error { return nil }

func (f *fakeScraper) HealthCheck(ctx context.Context) bool { return f.healthy }

type fakeStorage struct {
	connectErr error
	healthy    bool
}

func (f *fakeStorage) Metadata() Metadata {
	return Metadata{Name: "fakestore", Version: "0.0.1", Kind: KindStorage}
}

func (f *fakeStorage) Connect(ctx context.Context, config Config) error { return f.connectErr }

func (f *fakeStorage) Store(ctx context.Context, data []DataElement, schema *SchemaDefinition) error {
	return nil
}

func (f *fakeStorage) Disconnect(ctx context.Context) error { return nil }

func (f *fakeStorage) HealthCheck(ctx context.Context) bool { return f.healthy }

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterScraping("fake", func() ScrapingProvider {
		return &fakeScraper{healthy: true}
	})
	reg.RegisterStorage("fakestore", func() StorageProvider {
		return &fakeStorage{healthy: true}
	})

	require.True(t, reg.HasScraping("fake"))
	require.False(t, reg.HasScraping("fakestore"))
	require.True(t, reg.HasStorage("fakestore"))

	scraper, err := reg.CreateScraping("fake")
	require.NoError(t, err)
	require.Equal(t, "fake", scraper.Metadata().Name)

	_, err = reg.CreateScraping("missing")
	require.Error(t, err)
	unknown, ok := err.(*UnknownProviderError)
	require.True(t, ok)
	require.Equal(t, KindScraping, unknown.Kind)
	require.Equal(t, "missing", unknown.Name)
}

func TestRegistryCreateReturnsFreshInstances(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterScraping("fake", func() ScrapingProvider {
		return &fakeScraper{}
	})

	a, err := reg.CreateScraping("fake")
	require.NoError(t, err)
	b, err := reg.CreateScraping("fake")
	require.NoError(t, err)
	require.NotSame(t, a, b)
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterScraping("zeta", func() ScrapingProvider { return &fakeScraper{} })
	reg.RegisterScraping("alpha", func() ScrapingProvider { return &fakeScraper{} })
	reg.RegisterStorage("store", func() StorageProvider { return &fakeStorage{} })

	all := reg.List("")
	require.Len(t, all, 3)
	// scraping sorts before storage, names sort within a kind
	require.Equal(t, KindScraping, all[0].Kind)
	require.Equal(t, KindScraping, all[1].Kind)
	require.Equal(t, KindStorage, all[2].Kind)

	scraping := reg.List(KindScraping)
	require.Len(t, scraping, 2)
	require.Equal(t, "fake", scraping[0].Name)

	storage := reg.List(KindStorage)
	require.Len(t, storage, 1)
}

func TestRegistryListSurvivesPanickingConstructor(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterScraping("broken", func() ScrapingProvider {
		panic("constructor exploded")
	})

	list := reg.List(KindScraping)
	require.Len(t, list, 1)
	require.Equal(t, "broken", list[0].Name)
	require.Equal(t, "unknown", list[0].Version)
}

func TestRegistryTestConnection(t *testing.T) {
	ctx := context.Background()

	reg := NewRegistry()
	reg.RegisterScraping("healthy", func() ScrapingProvider {
		return &fakeScraper{healthy: true}
	})
	reg.RegisterScraping("unhealthy", func() ScrapingProvider {
		return &fakeScraper{healthy: false}
	})
	reg.RegisterScraping("broken", func() ScrapingProvider {
		return &fakeScraper{initErr: context.DeadlineExceeded}
	})
	reg.RegisterStorage("store", func() StorageProvider {
		return &fakeStorage{healthy: true}
	})

	require.True(t, reg.TestConnection(ctx, "healthy", Config{}))
	require.False(t, reg.TestConnection(ctx, "unhealthy", Config{}))
	require.False(t, reg.TestConnection(ctx, "broken", Config{}))
	require.True(t, reg.TestConnection(ctx, "store", Config{}))
	require.False(t, reg.TestConnection(ctx, "missing", Config{}))
}
