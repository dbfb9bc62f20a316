// Package postprocess implements the composable transform chain applied to
// the extracted element set after a workflow's steps finish. Stages are pure
// functions over the element list, applied strictly in declared order; a
// misconfigured or failing stage is logged and skipped rather than failing
// the whole workflow.
package postprocess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/shafqat-a/scrapper/lib/workflow"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scrapper/postprocess")

// Processor is one named stage. Implementations must not mutate the input
// slice or its elements.
type Processor interface {
	Process(items []provider.DataElement) ([]provider.DataElement, error)
}

// New builds a processor for the given stage type.
func New(stageType string, config map[string]any) (Processor, error) {
	switch stageType {
	case "filter":
		return newFilter(config)
	case "transform":
		return newTransform(config)
	case "validate":
		return newValidate(config)
	case "deduplicate":
		return newDeduplicate(config)
	case "remove_headers":
		return newRemoveHeaders(config)
	case "add_columns":
		return newAddColumns(config)
	default:
		return nil, fmt.Errorf("unknown post-processor type: %s", stageType)
	}
}

// Apply runs the declared stages in order over the element set and returns
// the transformed set. Unknown stage types and stage errors degrade to a
// logged skip.
func Apply(ctx context.Context, steps []workflow.PostProcessingStep, items []provider.DataElement) []provider.DataElement {
	ctx, span := tracer.Start(ctx, "postprocess:Apply")
	defer span.End()

	for _, step := range steps {
		proc, err := New(step.Type, step.Config)
		if err != nil {
			slog.WarnContext(ctx, "skipping unknown post-processing stage", "type", step.Type, "err", err)
			continue
		}
		out, err := proc.Process(items)
		if err != nil {
			slog.ErrorContext(ctx, "post-processing stage failed, skipping", "type", step.Type, "err", err)
			continue
		}
		slog.InfoContext(
			ctx, "applied post-processing stage",
			"type", step.Type,
			"before", len(items),
			"after", len(out),
		)
		span.AddEvent("stage", trace.WithAttributes(
			attribute.String("type", step.Type),
			attribute.Int("before", len(items)),
			attribute.Int("after", len(out)),
		))
		items = out
	}
	return items
}

func decodeStageConfig(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// stringify renders a field value the way the stages compare and join
// values: scalars through cast, anything else through fmt.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
