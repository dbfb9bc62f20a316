// Package sqlitestore implements the "sqlite" storage provider: extracted
// elements land in a local sqlite database, one row per element, with
// attribute and metadata maps serialized as JSON text columns. Schema
// fields become extra typed columns on the table, with optional indexes.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("scrapper/sqlitestore")

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
	db *sql.DB
}

func New() *Store {
	return &Store{}
}

func (s *Store) Metadata() provider.Metadata {
	return provider.Metadata{
		Name:        "sqlite",
		Version:     "1.0.0",
		Kind:        provider.KindStorage,
		Description: "local sqlite database storage",
		Capabilities: []string{
			"sql",
			"transactions",
		},
	}
}

func (s *Store) Connect(ctx context.Context, config provider.Config) error {
	sub := config.Sub("sqlite")

	path := sub.String("path", "")
	if path == "" {
		return fmt.Errorf("sqlite storage requires a path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *Store) Store(ctx context.Context, data []provider.DataElement, schema *provider.SchemaDefinition) error {
	ctx, span := tracer.Start(ctx, "sqlitestore:Store")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(data)))

	if s.db == nil {
		return fmt.Errorf("sqlite storage is not connected")
	}
	if schema == nil || schema.Name == "" {
		return fmt.Errorf("sqlite storage requires a schema with a table name")
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cols := append([]string{"element_type", "selector", "value", "attributes", "metadata", "created_at"}, fieldCols...)
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		schema.Name,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	createdAt := time.Now().Format(time.RFC3339)
	for _, element := range data {
		attrs, err := json.Marshal(element.Attributes)
		if err != nil {
			return err
		}
		meta, err := json.Marshal(element.Metadata)
		if err != nil {
			return err
		}
		args := []any{
			element.Type,
			element.Selector,
			cast.ToString(element.Value),
			string(attrs),
			string(meta),
			createdAt,
		}
		for _, name := range fieldCols {
			args = append(args, convertValue(fieldValue(element, name), schema.Fields[name]))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			span.SetStatus(codes.Error, "insert failed")
			return err
		}
	}

	return tx.Commit()
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
	default:
		// string, boolean, date and json all land as TEXT in sqlite
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
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		"element_type TEXT NOT NULL",
		"selector TEXT",
		"value TEXT",
		"attributes TEXT",
		"metadata TEXT",
		"created_at TEXT NOT NULL",
	}
	for _, name := range fieldCols {
		field := schema.Fields[name]
		def := fmt.Sprintf("%s %s", name, columnType(field))
		if field.Required {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
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
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(
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
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) HealthCheck(ctx context.Context) bool {
	if s.db == nil {
		return false
	}
	return s.db.PingContext(ctx) == nil
}
