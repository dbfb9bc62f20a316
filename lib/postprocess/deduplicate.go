package postprocess

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shafqat-a/scrapper/lib/provider"
)

type deduplicateProcessor struct {
	Key []string `mapstructure:"key"`
}

func newDeduplicate(config map[string]any) (Processor, error) {
	p := &deduplicateProcessor{}
	if err := decodeStageConfig(config, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *deduplicateProcessor) Process(items []provider.DataElement) ([]provider.DataElement, error) {
	seen := map[string]struct{}{}
	var unique []provider.DataElement

	for _, item := range items {
		key := p.keyFor(item.Fields())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, item)
	}
	return unique, nil
}

// keyFor builds the dedupe key: the configured fields' values in declared
// order, or, with no fields configured, an order-independent key over every
// field.
func (p *deduplicateProcessor) keyFor(fields map[string]any) string {
	if len(p.Key) > 0 {
		parts := make([]string, len(p.Key))
		for i, field := range p.Key {
			parts[i] = stringify(fields[field])
		}
		return strings.Join(parts, "\x1f")
	}

	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s:%s", k, stringify(v)))
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x1f")
}
