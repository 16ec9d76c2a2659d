package config

import (
	"fmt"

	"github.com/danmuck/plcbridge/internal/protocol/schema"
)

// BuildSchema turns the [schema] section into an immutable schema.
func BuildSchema(cfg SchemaConfig) (*schema.Schema, error) {
	if len(cfg.Fields) == 0 {
		return nil, ErrNoSchemaFields
	}
	order, err := schema.ParseByteOrder(cfg.ByteOrder)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	b := schema.NewBuilder(schema.WithByteOrder(order))
	for i, f := range cfg.Fields {
		code, length, err := schema.ParseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("config: schema.fields[%d] %q: %w", i, f.Name, err)
		}
		def, err := schema.ValueOf(f.Default)
		if err != nil {
			return nil, fmt.Errorf("config: schema.fields[%d] %q default: %w", i, f.Name, err)
		}
		b.AddDef(schema.FieldDef{Name: f.Name, Type: code, Length: length, Default: def})
	}
	return b.Build()
}
