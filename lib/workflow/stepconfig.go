package workflow

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shafqat-a/scrapper/lib/provider"
)

func decodeConfig[T interface{ Validate() error }](raw map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(raw); err != nil {
		return out, err
	}
	return out, out.Validate()
}

// InitConfig decodes the step's opaque config map into the typed init shape.
func (s Step) InitConfig() (provider.InitConfig, error) {
	return decodeConfig[provider.InitConfig](s.Config)
}

func (s Step) DiscoverConfig() (provider.DiscoverConfig, error) {
	return decodeConfig[provider.DiscoverConfig](s.Config)
}

func (s Step) ExtractConfig() (provider.ExtractConfig, error) {
	return decodeConfig[provider.ExtractConfig](s.Config)
}

func (s Step) PaginateConfig() (provider.PaginateConfig, error) {
	return decodeConfig[provider.PaginateConfig](s.Config)
}

// CheckConfig decodes the step config for its command and reports the first
// problem. Used by the validator; the engine decodes again at execution
// time through the typed accessors above.
func (s Step) CheckConfig() error {
	var err error
	switch s.Command {
	case CommandInit:
		_, err = s.InitConfig()
	case CommandDiscover:
		_, err = s.DiscoverConfig()
	case CommandExtract:
		_, err = s.ExtractConfig()
	case CommandPaginate:
		_, err = s.PaginateConfig()
	default:
		err = fmt.Errorf("unknown command: %s", s.Command)
	}
	return err
}
