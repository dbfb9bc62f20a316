package postprocess

import (
	"strings"

	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/spf13/cast"
)

type validateProcessor struct {
	Required  bool              `mapstructure:"required"`
	MinLength int               `mapstructure:"min_length"`
	DataTypes map[string]string `mapstructure:"data_types"`
}

func newValidate(config map[string]any) (Processor, error) {
	p := &validateProcessor{}
	if err := decodeStageConfig(config, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *validateProcessor) Process(items []provider.DataElement) ([]provider.DataElement, error) {
	var valid []provider.DataElement

	for _, item := range items {
		fields := item.Fields()
		if p.isValid(fields) {
			valid = append(valid, item)
		}
	}
	return valid, nil
}

func (p *validateProcessor) isValid(fields map[string]any) bool {
	if p.Required && len(fields) == 0 {
		return false
	}

	if p.MinLength > 0 {
		if len(strings.TrimSpace(joinFields(fields))) < p.MinLength {
			return false
		}
	}

	for field, wantType := range p.DataTypes {
		value, ok := fields[field]
		if !ok {
			continue
		}
		switch wantType {
		case "float":
			if _, err := cast.ToFloat64E(value); err != nil {
				return false
			}
		case "int":
			if _, err := cast.ToInt64E(value); err != nil {
				return false
			}
		}
	}

	return true
}
