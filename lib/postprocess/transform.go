package postprocess

import (
	"sort"
	"strings"

	"github.com/shafqat-a/scrapper/lib/provider"
)

type transformProcessor struct {
	Strip     bool              `mapstructure:"strip"`
	Replace   map[string]string `mapstructure:"replace"`
	Lowercase bool              `mapstructure:"lowercase"`

	replaceKeys []string
}

func newTransform(config map[string]any) (Processor, error) {
	p := &transformProcessor{Strip: true}
	if err := decodeStageConfig(config, p); err != nil {
		return nil, err
	}
	// JSON objects do not survive as ordered maps, so replacement rules
	// are applied in sorted-key order to keep runs reproducible.
	for k := range p.Replace {
		p.replaceKeys = append(p.replaceKeys, k)
	}
	sort.Strings(p.replaceKeys)
	return p, nil
}

func (p *transformProcessor) Process(items []provider.DataElement) ([]provider.DataElement, error) {
	out := make([]provider.DataElement, 0, len(items))

	for _, item := range items {
		fields := item.Fields()
		next := make(map[string]any, len(fields))

		for key, value := range fields {
			s, isString := value.(string)
			if !isString {
				next[key] = value
				continue
			}
			if p.Strip {
				s = strings.TrimSpace(s)
			}
			for _, old := range p.replaceKeys {
				s = strings.ReplaceAll(s, old, p.Replace[old])
			}
			if p.Lowercase {
				s = strings.ToLower(s)
			}
			next[key] = s
		}

		out = append(out, item.WithFields(next))
	}
	return out, nil
}
