package postprocess

import (
	"time"

	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/spf13/cast"
)

type addColumnsProcessor struct {
	Columns map[string]any `mapstructure:"columns"`

	now func() time.Time
}

func newAddColumns(config map[string]any) (Processor, error) {
	p := &addColumnsProcessor{now: time.Now}
	if err := decodeStageConfig(config, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *addColumnsProcessor) Process(items []provider.DataElement) ([]provider.DataElement, error) {
	if len(p.Columns) == 0 {
		return items, nil
	}

	out := make([]provider.DataElement, 0, len(items))
	for _, item := range items {
		fields := item.Fields()
		next := make(map[string]any, len(fields)+len(p.Columns))
		for k, v := range fields {
			next[k] = v
		}
		for name, spec := range p.Columns {
			next[name] = p.columnValue(spec, item)
		}
		out = append(out, item.WithFields(next))
	}
	return out, nil
}

// columnValue resolves a configured column: map configs carry a typed
// "value" (with placeholder substitution), anything else is a literal.
func (p *addColumnsProcessor) columnValue(spec any, item provider.DataElement) any {
	m, err := cast.ToStringMapE(spec)
	if err != nil {
		return stringify(spec)
	}

	value, ok := m["value"]
	if !ok {
		return ""
	}
	switch value {
	case "{current_date}":
		return p.now().Format("2006-01-02")
	case "{current_datetime}":
		return p.now().Format(time.RFC3339)
	case "{source_url}":
		return item.SourceURL()
	}
	return value
}
