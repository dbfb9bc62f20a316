package goqueryscraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/stretchr/testify/require"
)

const pageOne = `<!DOCTYPE html>
<html>
<head><title>  Product   Listing  </title></head>
<body>
	<h1 class="headline">Deals</h1>
	<div class="product"><span class="name">Widget</span> <span class="price">$1,234.50</span></div>
	<div class="product"><span class="name">Gadget</span> <span class="price">$99.00</span></div>
	<a class="next" href="/page/2">next</a>
</body>
</html>`

const pageTwo = `<!DOCTYPE html>
<html>
<head><title>Product Listing, page 2</title></head>
<body>
	<div class="product"><span class="name">Doohickey</span> <span class="price">$5.00</span></div>
</body>
</html>`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageOne)
	})
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageTwo)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func initScraper(t *testing.T, url string) (*Scraper, *provider.PageContext) {
	t.Helper()
	ctx := context.Background()

	s := New()
	require.NoError(t, s.Initialize(ctx, provider.Config{
		"goquery": map[string]any{"timeout": 5},
	}))
	require.True(t, s.HealthCheck(ctx))

	page, err := s.ExecuteInit(ctx, provider.InitConfig{URL: url})
	require.NoError(t, err)
	require.NotNil(t, page)
	return s, page
}

func TestExecuteInit(t *testing.T) {
	server := testServer(t)
	s, page := initScraper(t, server.URL+"/")

	require.Equal(t, server.URL+"/", page.URL)
	require.Equal(t, "Product Listing", page.Title)
	require.Equal(t, []string{server.URL + "/"}, page.NavigationHistory)
	require.NotEmpty(t, page.UserAgent)
	require.Equal(t, 1920, page.Viewport.Width)

	require.NoError(t, s.Cleanup(context.Background()))
	require.False(t, s.HealthCheck(context.Background()))
}

func TestExecuteInitWaitSelector(t *testing.T) {
	server := testServer(t)
	ctx := context.Background()

	s := New()
	require.NoError(t, s.Initialize(ctx, provider.Config{}))

	_, err := s.ExecuteInit(ctx, provider.InitConfig{
		URL:     server.URL,
		WaitFor: ".does-not-exist",
	})
	require.Error(t, err)

	page, err := s.ExecuteInit(ctx, provider.InitConfig{
		URL:     server.URL,
		WaitFor: ".product",
	})
	require.NoError(t, err)
	require.NotNil(t, page)
}

func TestExecuteInitRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	s := New()
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx, provider.Config{}))

	_, err := s.ExecuteInit(ctx, provider.InitConfig{URL: server.URL})
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestExecuteInitRequiresInitialize(t *testing.T) {
	_, err := New().ExecuteInit(context.Background(), provider.InitConfig{URL: "https://example.com"})
	require.Error(t, err)
}

func TestExecuteDiscover(t *testing.T) {
	server := testServer(t)
	s, page := initScraper(t, server.URL+"/")

	elements, err := s.ExecuteDiscover(context.Background(), provider.DiscoverConfig{
		Selectors: map[string]string{"product": ".product"},
	}, page)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	require.Equal(t, "product", elements[0].Type)
	require.Equal(t, ".product", elements[0].Selector)
	require.Equal(t, "Widget $1,234.50", elements[0].Value)
	require.Equal(t, "div", elements[0].Metadata["tag_name"])
	require.Equal(t, 0, elements[0].Metadata["index"])
	require.Equal(t, server.URL+"/", elements[0].SourceURL())
}

func TestExecuteExtract(t *testing.T) {
	server := testServer(t)
	s, page := initScraper(t, server.URL+"/")
	ctx := context.Background()

	{
		elements, err := s.ExecuteExtract(ctx, provider.ExtractConfig{
			Elements: map[string]provider.ElementSpec{
				"name": {Selector: ".product .name"},
			},
		}, page)
		require.NoError(t, err)
		require.Len(t, elements, 2)
		require.Equal(t, "Widget", elements[0].Value)
	}
	{
		// float transform strips currency formatting
		elements, err := s.ExecuteExtract(ctx, provider.ExtractConfig{
			Elements: map[string]provider.ElementSpec{
				"price": {Selector: ".product .price", Transform: "float"},
			},
		}, page)
		require.NoError(t, err)
		require.Len(t, elements, 2)
		require.Equal(t, 1234.5, elements[0].Value)
		require.Equal(t, 99.0, elements[1].Value)
	}
	{
		// unparseable values degrade to zero instead of failing the step
		elements, err := s.ExecuteExtract(ctx, provider.ExtractConfig{
			Elements: map[string]provider.ElementSpec{
				"count": {Selector: ".product .name", Transform: "int"},
			},
		}, page)
		require.NoError(t, err)
		require.Equal(t, 0, elements[0].Value)
	}
	{
		elements, err := s.ExecuteExtract(ctx, provider.ExtractConfig{
			Elements: map[string]provider.ElementSpec{
				"class": {Selector: "h1", Type: "attribute", Attribute: "class"},
			},
		}, page)
		require.NoError(t, err)
		require.Len(t, elements, 1)
		require.Equal(t, "headline", elements[0].Value)
	}
	{
		elements, err := s.ExecuteExtract(ctx, provider.ExtractConfig{
			Elements: map[string]provider.ElementSpec{
				"raw": {Selector: "h1", Type: "html"},
			},
		}, page)
		require.NoError(t, err)
		require.Contains(t, elements[0].Value, "<h1")
	}
}

func TestExecutePaginate(t *testing.T) {
	server := testServer(t)
	s, page := initScraper(t, server.URL+"/")
	ctx := context.Background()

	noWait := 0
	next, err := s.ExecutePaginate(ctx, provider.PaginateConfig{
		NextPageSelector: ".next",
		WaitAfterClick:   &noWait,
	}, page)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, server.URL+"/page/2", next.URL)
	require.Equal(t, []string{server.URL + "/", server.URL + "/page/2"}, next.NavigationHistory)

	// the loaded document advanced with the pagination
	elements, err := s.ExecuteDiscover(ctx, provider.DiscoverConfig{
		Selectors: map[string]string{"product": ".product"},
	}, next)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	require.Equal(t, "Doohickey $5.00", elements[0].Value)

	// page two has no next link: pagination is over, no error
	last, err := s.ExecutePaginate(ctx, provider.PaginateConfig{
		NextPageSelector: ".next",
		WaitAfterClick:   &noWait,
	}, next)
	require.NoError(t, err)
	require.Nil(t, last)
}
