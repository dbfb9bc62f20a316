package provider

// Cookie mirrors the cookie shape carried in workflow documents and page
// contexts.
type Cookie struct {
	Name     string `json:"name" mapstructure:"name"`
	Value    string `json:"value" mapstructure:"value"`
	Domain   string `json:"domain" mapstructure:"domain"`
	Path     string `json:"path" mapstructure:"path"`
	Expires  int64  `json:"expires,omitempty" mapstructure:"expires"`
	HttpOnly bool   `json:"http_only,omitempty" mapstructure:"http_only"`
	Secure   bool   `json:"secure,omitempty" mapstructure:"secure"`
}

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func DefaultViewport() Viewport {
	return Viewport{Width: 1920, Height: 1080}
}

// PageContext is the carried session state describing where the scraping
// provider currently is. It is produced by init and paginate steps and read
// by discover, extract and paginate steps. The engine replaces it wholesale,
// it is never mutated in place.
type PageContext struct {
	URL               string   `json:"url"`
	Title             string   `json:"title"`
	Cookies           []Cookie `json:"cookies,omitempty"`
	NavigationHistory []string `json:"navigation_history,omitempty"`
	Viewport          Viewport `json:"viewport"`
	UserAgent         string   `json:"user_agent,omitempty"`
}
