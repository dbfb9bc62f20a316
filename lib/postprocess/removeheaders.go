package postprocess

import (
	"regexp"
	"strings"

	"github.com/shafqat-a/scrapper/lib/provider"
)

// defaultHeaderIndicators mark rows that re-appear as column headers on
// paginated tables (generation/demand/mw come from power-grid style report
// tables, the rest are generic).
var defaultHeaderIndicators = []string{
	"date", "time", "generation", "demand", "mw", "column",
	"sl", "serial", "no.", "#", "header",
}

// headerPatternSources is the fallback heuristic: values shaped like column
// names. Compiled twice so case_sensitive reaches the pattern match too.
var headerPatternSources = []string{
	`^(column|col)_?\d+$`,
	`^[a-z_]+\([a-z]+\)$`,
	`^\w+\s+\([^)]+\)$`,
	`^sl\.?$|^no\.?$|^#$`,
}

var (
	headerPatterns   = compileHeaderPatterns(`(?i)`)
	headerPatternsCS = compileHeaderPatterns(``)
)

func compileHeaderPatterns(flags string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(headerPatternSources))
	for _, src := range headerPatternSources {
		patterns = append(patterns, regexp.MustCompile(flags+src))
	}
	return patterns
}

type removeHeadersProcessor struct {
	HeaderIndicators []string `mapstructure:"header_indicators"`
	KeepFirst        bool     `mapstructure:"keep_first"`
	CaseSensitive    bool     `mapstructure:"case_sensitive"`
	ExactMatch       bool     `mapstructure:"exact_match"`
}

func newRemoveHeaders(config map[string]any) (Processor, error) {
	p := &removeHeadersProcessor{KeepFirst: true}
	if err := decodeStageConfig(config, p); err != nil {
		return nil, err
	}
	if len(p.HeaderIndicators) == 0 {
		p.HeaderIndicators = defaultHeaderIndicators
	}
	if !p.CaseSensitive {
		for i, indicator := range p.HeaderIndicators {
			p.HeaderIndicators[i] = strings.ToLower(indicator)
		}
	}
	return p, nil
}

func (p *removeHeadersProcessor) Process(items []provider.DataElement) ([]provider.DataElement, error) {
	var kept []provider.DataElement
	firstHeaderSeen := false

	for _, item := range items {
		if !p.looksLikeHeader(item.Fields()) {
			kept = append(kept, item)
			continue
		}
		if p.KeepFirst && !firstHeaderSeen {
			firstHeaderSeen = true
			kept = append(kept, item)
			continue
		}
	}
	return kept, nil
}

func (p *removeHeadersProcessor) looksLikeHeader(fields map[string]any) bool {
	var values []string
	for _, v := range fields {
		s := stringify(v)
		if strings.TrimSpace(s) != "" {
			values = append(values, s)
		}
	}
	if len(values) == 0 {
		return false
	}

	combined := strings.Join(values, " ")
	if !p.CaseSensitive {
		combined = strings.ToLower(combined)
	}

	for _, indicator := range p.HeaderIndicators {
		if p.ExactMatch {
			for _, val := range values {
				if !p.CaseSensitive {
					val = strings.ToLower(val)
				}
				if val == indicator {
					return true
				}
			}
		} else if strings.Contains(combined, indicator) {
			return true
		}
	}

	// Pattern fallback: with at least 3 columns, flag the row when most
	// values look like column names.
	if len(values) >= 3 {
		patterns := headerPatterns
		if p.CaseSensitive {
			patterns = headerPatternsCS
		}
		headerLike := 0
		for _, val := range values {
			for _, pattern := range patterns {
				if pattern.MatchString(val) {
					headerLike++
					break
				}
			}
		}
		if float64(headerLike) >= float64(len(values))*0.6 {
			return true
		}
	}

	return false
}
