package provider

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Typed step configurations decoded from a step's opaque config map. The
// decode itself lives in lib/workflow; these shapes are part of the
// provider contract because Execute* methods receive them.

type InitConfig struct {
	URL string `mapstructure:"url"`
	// WaitFor is either a CSS selector (string) or a delay in
	// milliseconds (number).
	WaitFor any               `mapstructure:"wait_for"`
	Cookies []Cookie          `mapstructure:"cookies"`
	Headers map[string]string `mapstructure:"headers"`
}

func (c InitConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("init config requires a url")
	}
	return nil
}

// WaitSelector reports the wait_for value as a CSS selector, if it is one.
func (c InitConfig) WaitSelector() (string, bool) {
	s, ok := c.WaitFor.(string)
	return s, ok && s != ""
}

// WaitDelay reports the wait_for value as a sleep duration, if numeric.
func (c InitConfig) WaitDelay() (time.Duration, bool) {
	if _, isString := c.WaitFor.(string); isString || c.WaitFor == nil {
		return 0, false
	}
	ms, err := cast.ToIntE(c.WaitFor)
	if err != nil || ms <= 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

type DiscoverConfig struct {
	Selectors  map[string]string `mapstructure:"selectors"`
	Pagination map[string]any    `mapstructure:"pagination"`
}

func (c DiscoverConfig) Validate() error {
	if len(c.Selectors) == 0 {
		return fmt.Errorf("discover config requires at least one selector")
	}
	return nil
}

// ElementSpec describes how one named field is pulled out of the page.
type ElementSpec struct {
	Selector  string `mapstructure:"selector"`
	Type      string `mapstructure:"type"`
	Attribute string `mapstructure:"attribute"`
	Transform string `mapstructure:"transform"`
}

type ExtractConfig struct {
	Elements map[string]ElementSpec `mapstructure:"elements"`
}

func (c ExtractConfig) Validate() error {
	if len(c.Elements) == 0 {
		return fmt.Errorf("extract config requires a non-empty elements map")
	}
	for name, spec := range c.Elements {
		if spec.Selector == "" {
			return fmt.Errorf("extract element %q requires a selector", name)
		}
	}
	return nil
}

type PaginateConfig struct {
	NextPageSelector string         `mapstructure:"next_page_selector"`
	MaxPages         int            `mapstructure:"max_pages"`
	WaitAfterClick   *int           `mapstructure:"wait_after_click"`
	StopCondition    map[string]any `mapstructure:"stop_condition"`
}

func (c PaginateConfig) Validate() error {
	if c.NextPageSelector == "" {
		return fmt.Errorf("paginate config requires next_page_selector")
	}
	return nil
}

// WaitAfterClickDelay defaults to one second when unset.
func (c PaginateConfig) WaitAfterClickDelay() time.Duration {
	if c.WaitAfterClick == nil {
		return time.Second
	}
	return time.Duration(*c.WaitAfterClick) * time.Millisecond
}
