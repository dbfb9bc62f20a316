// Package pgstore implements the "postgresql" storage provider backed by a
// pgx connection pool. Attribute and metadata maps are stored as JSONB;
// schema fields become extra typed columns with optional indexes, and
// inserts for a batch go through a single pipelined pgx.Batch.
package pgstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapper/pgstore")

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedColumns are always present; schema fields with these names are
// skipped rather than doubled up.
var reservedColumns = map[string]bool{
	"id":           true,
	"element_type": true,
	"selector":     true,
	"value":        true,
	"attributes":   true,
	"metadata":     true,
	"created_at":   true,
}

type Store struct {
	pool *pgxpool.Pool
}

func New() *Store {
	return &Store{}
}

func (s *Store) Metadata() provider.Metadata {
	return provider.Metadata{
		Name:        "postgresql",
		Version:     "1.0.0",
		Kind:        provider.KindStorage,
		Description: "PostgreSQL storage over a pgx pool",
		Capabilities: []string{
			"sql",
			"transactions",
			"jsonb",
		},
	}
}

func (s *Store) Connect(ctx context.Context, config provider.Config) error {
	sub := config.Sub("postgresql")

	dsn := sub.String("dsn", "")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s",
			sub.String("user", "postgres"),
			sub.String("password", ""),
			sub.String("host", "localhost"),
			sub.Int("port", 5432),
			sub.String("database", "postgres"),
		)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return err
	}
	if maxConns := sub.Int("max_connections", 0); maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return err
	}

	s.pool = pool
	return nil
}

func (s *Store) Store(ctx context.Context, data []provider.DataElement, schema *provider.SchemaDefinition) error {
	ctx, span := tracer.Start(ctx, "pgstore:Store")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(data)))

	if s.pool == nil {
		return fmt.Errorf("postgresql storage is not connected")
	}
	if schema == nil || schema.Name == "" {
		return fmt.Errorf("postgresql storage requires a schema with a table name")
	}
	if !identPattern.MatchString(schema.Name) {
		return fmt.Errorf("invalid table name: %s", schema.Name)
	}
	span.SetAttributes(attribute.String("table", schema.Name))

	fieldCols, err := schemaColumns(schema)
	if err != nil {
		return err
	}
	if err := s.ensureTable(ctx, schema, fieldCols); err != nil {
		span.SetStatus(codes.Error, "failed to create table")
		return err
	}

	cols := append([]string{"element_type", "selector", "value", "attributes", "metadata"}, fieldCols...)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		schema.Name,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
	)

	batch := &pgx.Batch{}
	for _, element := range data {
		args := []any{
			element.Type,
			element.Selector,
			cast.ToString(element.Value),
			element.Attributes,
			element.Metadata,
		}
		for _, name := range fieldCols {
			args = append(args, convertValue(fieldValue(element, name), schema.Fields[name]))
		}
		batch.Queue(insert, args...)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range data {
		if _, err := results.Exec(); err != nil {
			span.SetStatus(codes.Error, "insert failed")
			return err
		}
	}
	return nil
}

// schemaColumns returns the schema-declared field names in a stable order,
// skipping the reserved element columns.
func schemaColumns(schema *provider.SchemaDefinition) ([]string, error) {
	var names []string
	for name := range schema.Fields {
		if reservedColumns[name] {
			continue
		}
		if !identPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid schema field name: %s", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func columnType(field provider.SchemaField) string {
	switch field.Type {
	case "number":
		return "INTEGER"
	case "date":
		return "TIMESTAMPTZ"
	case "json":
		return "JSONB"
	case "boolean":
		return "VARCHAR(10)"
	default:
		if field.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", field.MaxLength)
		}
		return "TEXT"
	}
}

// fieldValue pulls a schema field's value out of an element: attributes
// first, then metadata, then the main value for text-ish field names.
func fieldValue(element provider.DataElement, name string) any {
	if v, ok := element.Attributes[name]; ok {
		return v
	}
	if v, ok := element.Metadata[name]; ok {
		return v
	}
	if name == "text" || name == "content" {
		return element.Value
	}
	if fields, ok := element.Value.(map[string]any); ok {
		if v, ok := fields[name]; ok {
			return v
		}
	}
	return nil
}

func convertValue(v any, field provider.SchemaField) any {
	if v == nil {
		return nil
	}
	switch field.Type {
	case "number":
		n, err := cast.ToIntE(v)
		if err != nil {
			return cast.ToString(v)
		}
		return n
	case "boolean":
		return strconv.FormatBool(cast.ToBool(v))
	case "json":
		raw, err := json.Marshal(v)
		if err != nil {
			return cast.ToString(v)
		}
		return string(raw)
	default:
		return cast.ToString(v)
	}
}

func (s *Store) ensureTable(ctx context.Context, schema *provider.SchemaDefinition, fieldCols []string) error {
	defs := []string{
		"id BIGSERIAL PRIMARY KEY",
		"element_type TEXT NOT NULL",
		"selector TEXT",
		"value TEXT",
		"attributes JSONB",
		"metadata JSONB",
		"created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	}
	for _, name := range fieldCols {
		field := schema.Fields[name]
		def := fmt.Sprintf("%s %s", name, columnType(field))
		if field.Required {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)",
		schema.Name, strings.Join(defs, ", "),
	))
	if err != nil {
		return err
	}

	for _, name := range fieldCols {
		if !schema.Fields[name].Index {
			continue
		}
		_, err := s.pool.Exec(ctx, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
			schema.Name, name, schema.Name, name,
		))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool = nil
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) bool {
	if s.pool == nil {
		return false
	}
	return s.pool.Ping(ctx) == nil
}
