// Package csvstore implements the "csv" storage provider: extracted
// elements are appended to a flat CSV file, one row per element, with
// attribute and metadata maps flattened into prefixed columns.
package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapper/csvstore")

type Store struct {
	path       string
	delimiter  rune
	appendMode bool
}

func New() *Store {
	return &Store{}
}

func (s *Store) Metadata() provider.Metadata {
	return provider.Metadata{
		Name:        "csv",
		Version:     "1.0.0",
		Kind:        provider.KindStorage,
		Description: "flat CSV file storage",
		Capabilities: []string{
			"file_output",
			"append_mode",
		},
	}
}

func (s *Store) Connect(ctx context.Context, config provider.Config) error {
	sub := config.Sub("csv")

	s.path = sub.String("path", "")
	if s.path == "" {
		return fmt.Errorf("csv storage requires a path")
	}
	s.appendMode = sub.Bool("append_mode", true)

	delimiter := sub.String("delimiter", ",")
	runes := []rune(delimiter)
	if len(runes) != 1 {
		return fmt.Errorf("csv delimiter must be a single character, got %q", delimiter)
	}
	s.delimiter = runes[0]

	return os.MkdirAll(filepath.Dir(s.path), 0o755)
}

func (s *Store) Store(ctx context.Context, data []provider.DataElement, schema *provider.SchemaDefinition) error {
	ctx, span := tracer.Start(ctx, "csvstore:Store")
	defer span.End()
	span.SetAttributes(
		attribute.String("path", s.path),
		attribute.Int("count", len(data)),
	)

	if len(data) == 0 {
		return nil
	}

	header := s.header(data)

	flags := os.O_CREATE | os.O_WRONLY
	if s.appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	info, statErr := os.Stat(s.path)
	writeHeader := !s.appendMode || statErr != nil || info.Size() == 0

	file, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open file")
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = s.delimiter

	if writeHeader {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	for _, element := range data {
		if err := writer.Write(s.row(header, element)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// header builds the union of columns across the batch: the fixed element
// columns first, then attribute and metadata columns sorted by name so the
// layout is stable between runs.
func (s *Store) header(data []provider.DataElement) []string {
	attrKeys := map[string]bool{}
	metaKeys := map[string]bool{}
	for _, element := range data {
		for k := range element.Attributes {
			attrKeys[k] = true
		}
		for k := range element.Metadata {
			metaKeys[k] = true
		}
	}

	header := []string{"type", "selector", "value"}
	for _, k := range sortedKeys(attrKeys) {
		header = append(header, "attr_"+k)
	}
	for _, k := range sortedKeys(metaKeys) {
		header = append(header, "meta_"+k)
	}
	return header
}

func (s *Store) row(header []string, element provider.DataElement) []string {
	row := make([]string, 0, len(header))
	for _, column := range header {
		switch {
		case column == "type":
			row = append(row, element.Type)
		case column == "selector":
			row = append(row, element.Selector)
		case column == "value":
			row = append(row, stringify(element.Value))
		case len(column) > 5 && column[:5] == "attr_":
			row = append(row, element.Attributes[column[5:]])
		case len(column) > 5 && column[:5] == "meta_":
			row = append(row, stringify(element.Metadata[column[5:]]))
		default:
			row = append(row, "")
		}
	}
	return row
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

func (s *Store) Disconnect(ctx context.Context) error {
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) bool {
	if s.path == "" {
		return false
	}
	_, err := os.Stat(filepath.Dir(s.path))
	return err == nil
}
