// Package jsonstore implements the "json" storage provider: extracted
// elements are written as a JSON array or as line-delimited JSON records,
// each stamped with the time it was stored.
package jsonstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/shafqat-a/scrapper/lib/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapper/jsonstore")

const (
	FormatArray = "json"
	FormatLines = "jsonl"
)

type Store struct {
	path        string
	format      string
	appendMode  bool
	prettyPrint bool

	now func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

func (s *Store) Metadata() provider.Metadata {
	return provider.Metadata{
		Name:        "json",
		Version:     "1.0.0",
		Kind:        provider.KindStorage,
		Description: "JSON document or JSON-lines file storage",
		Capabilities: []string{
			"file_output",
			"append_mode",
			"jsonl",
		},
	}
}

func (s *Store) Connect(ctx context.Context, config provider.Config) error {
	sub := config.Sub("json")

	s.path = sub.String("path", "")
	if s.path == "" {
		return fmt.Errorf("json storage requires a path")
	}

	s.format = sub.String("format", FormatArray)
	if s.format != FormatArray && s.format != FormatLines {
		return fmt.Errorf("unknown json storage format: %s", s.format)
	}
	s.appendMode = sub.Bool("append_mode", false)
	s.prettyPrint = sub.Bool("pretty_print", false)

	if s.now == nil {
		s.now = time.Now
	}
	return os.MkdirAll(filepath.Dir(s.path), 0o755)
}

type record struct {
	Type       string            `json:"type"`
	Selector   string            `json:"selector,omitempty"`
	Value      any               `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	StoredAt   string            `json:"stored_at"`
}

func (s *Store) Store(ctx context.Context, data []provider.DataElement, schema *provider.SchemaDefinition) error {
	ctx, span := tracer.Start(ctx, "jsonstore:Store")
	defer span.End()
	span.SetAttributes(
		attribute.String("path", s.path),
		attribute.String("format", s.format),
		attribute.Int("count", len(data)),
	)

	storedAt := s.now().Format(time.RFC3339)
	records := make([]record, len(data))
	for i, element := range data {
		records[i] = record{
			Type:       element.Type,
			Selector:   element.Selector,
			Value:      element.Value,
			Attributes: element.Attributes,
			Metadata:   element.Metadata,
			StoredAt:   storedAt,
		}
	}

	var err error
	if s.format == FormatLines {
		err = s.writeLines(records)
	} else {
		err = s.writeArray(records)
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to write records")
		return err
	}
	return nil
}

func (s *Store) writeLines(records []record) error {
	flags := os.O_CREATE | os.O_WRONLY
	if s.appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// writeArray rewrites the whole document; in append mode the existing array
// is read back first and the new records are merged onto its tail.
func (s *Store) writeArray(records []record) error {
	all := records
	if s.appendMode {
		existing, err := s.readExisting()
		if err != nil {
			return err
		}
		all = append(existing, records...)
	}

	var (
		out []byte
		err error
	)
	if s.prettyPrint {
		out, err = json.MarshalIndent(all, "", "  ")
	} else {
		out, err = json.Marshal(all)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o644)
}

func (s *Store) readExisting() ([]record, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var existing []record
	if err := json.Unmarshal(raw, &existing); err != nil {
		return nil, fmt.Errorf("existing file %s is not a JSON array: %w", s.path, err)
	}
	return existing, nil
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
