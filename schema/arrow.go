// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/parquet-go/parquet-go"
)

var ErrUnsupportedColumn = errors.New("unsupported column")

// ArrowField maps a flat parquet leaf column to an arrow field. Repeated
// columns and physical types without an arrow counterpart are rejected.
func ArrowField(leaf parquet.LeafColumn) (arrow.Field, error) {
	name := strings.Join(leaf.Path, ".")
	if leaf.MaxRepetitionLevel > 0 {
		return arrow.Field{}, fmt.Errorf("%w: %q is repeated", ErrUnsupportedColumn, name)
	}

	typ := leaf.Node.Type()

	var dt arrow.DataType
	switch typ.Kind() {
	case parquet.Boolean:
		dt = arrow.FixedWidthTypes.Boolean
	case parquet.Int32:
		dt = arrow.PrimitiveTypes.Int32
	case parquet.Int64:
		dt = arrow.PrimitiveTypes.Int64
	case parquet.Float:
		dt = arrow.PrimitiveTypes.Float32
	case parquet.Double:
		dt = arrow.PrimitiveTypes.Float64
	case parquet.ByteArray:
		dt = arrow.BinaryTypes.Binary
		if lt := typ.LogicalType(); lt != nil && (lt.UTF8 != nil || lt.Enum != nil || lt.Json != nil) {
			dt = arrow.BinaryTypes.String
		}
	case parquet.FixedLenByteArray:
		dt = &arrow.FixedSizeBinaryType{ByteWidth: typ.Length()}
	default:
		return arrow.Field{}, fmt.Errorf("%w: %q has physical type %s", ErrUnsupportedColumn, name, typ.Kind())
	}

	return arrow.Field{
		Name:     name,
		Type:     dt,
		Nullable: leaf.MaxDefinitionLevel > 0,
	}, nil
}

// ArrowSchema returns the arrow schema of the projected leaf columns, in leaf order.
func ArrowSchema(s *parquet.Schema, p Projection) (*arrow.Schema, error) {
	if err := p.Validate(s); err != nil {
		return nil, err
	}
	cols := s.Columns()

	fields := make([]arrow.Field, 0, p.Len())
	for _, l := range p.leaves {
		leaf, ok := s.Lookup(cols[l]...)
		if !ok {
			return nil, fmt.Errorf("leaf column %d not found in schema", l)
		}
		f, err := ArrowField(leaf)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return arrow.NewSchema(fields, nil), nil
}
