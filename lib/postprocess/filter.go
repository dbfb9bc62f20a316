package postprocess

import (
	"strings"

	"github.com/shafqat-a/scrapper/lib/provider"
)

// filterHeaderIndicators are the keyword tokens the filter stage uses when
// exclude_headers is set. The remove_headers stage has its own, larger list.
var filterHeaderIndicators = []string{"date", "time", "generation", "demand", "mw", "column"}

type filterProcessor struct {
	MinLength      int      `mapstructure:"min_length"`
	Excludes       string   `mapstructure:"excludes"`
	RequiredFields []string `mapstructure:"required_fields"`
	ExcludeEmpty   bool     `mapstructure:"exclude_empty"`
	ExcludeHeaders bool     `mapstructure:"exclude_headers"`
}

func newFilter(config map[string]any) (Processor, error) {
	p := &filterProcessor{ExcludeEmpty: true}
	if err := decodeStageConfig(config, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *filterProcessor) Process(items []provider.DataElement) ([]provider.DataElement, error) {
	var kept []provider.DataElement

	for _, item := range items {
		fields := item.Fields()
		if !p.keep(fields) {
			continue
		}
		kept = append(kept, item)
	}
	return kept, nil
}

func (p *filterProcessor) keep(fields map[string]any) bool {
	for _, required := range p.RequiredFields {
		if _, ok := fields[required]; !ok {
			return false
		}
	}

	if p.MinLength > 0 {
		longEnough := false
		for _, v := range fields {
			if s, ok := v.(string); ok && len(s) >= p.MinLength {
				longEnough = true
				break
			}
		}
		if !longEnough {
			return false
		}
	}

	if p.Excludes != "" {
		if strings.Contains(strings.ToLower(joinFields(fields)), strings.ToLower(p.Excludes)) {
			return false
		}
	}

	if p.ExcludeEmpty {
		empty := true
		for _, v := range fields {
			if strings.TrimSpace(stringify(v)) != "" {
				empty = false
				break
			}
		}
		if empty {
			return false
		}
	}

	if p.ExcludeHeaders {
		text := strings.ToLower(joinFields(fields))
		for _, indicator := range filterHeaderIndicators {
			if strings.Contains(text, indicator) {
				return false
			}
		}
	}

	return true
}

func joinFields(fields map[string]any) string {
	var parts []string
	for _, v := range fields {
		parts = append(parts, stringify(v))
	}
	return strings.Join(parts, " ")
}
