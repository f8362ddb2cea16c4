// Copyright (c) The Thanos Authors.
// Licensed under the Apache 2.0 license found in the LICENSE file or at:
//     https://opensource.org/licenses/Apache-2.0

// Package filter implements row predicates for the reader.
package filter

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
	"github.com/prometheus/prometheus/model/labels"

	"github.com/thanos-io/parquet-scan/reader"
	"github.com/thanos-io/parquet-scan/schema"
)

type config struct {
	mem memory.Allocator
}

type Option func(*config)

// Allocator sets the allocator used for masks.
func Allocator(mem memory.Allocator) Option {
	return func(cfg *config) {
		cfg.mem = mem
	}
}

func newConfig(opts []Option) config {
	cfg := config{mem: memory.DefaultAllocator}
	for i := range opts {
		opts[i](&cfg)
	}
	return cfg
}

// Matcher evaluates a label matcher against the values of a string or binary
// column. Null values produce null mask entries.
type Matcher struct {
	leaf int
	m    *labels.Matcher
	mem  memory.Allocator
}

var _ reader.Predicate = (*Matcher)(nil)

// NewMatcher returns a predicate that matches the column named by m.Name.
func NewMatcher(s *parquet.Schema, m *labels.Matcher, opts ...Option) (*Matcher, error) {
	leaf, err := lookupLeaf(s, m.Name)
	if err != nil {
		return nil, err
	}
	as, err := schema.ArrowSchema(s, schema.ProjectionFromLeaves(leaf))
	if err != nil {
		return nil, err
	}
	field := as.Field(0)
	switch field.Type.ID() {
	case arrow.STRING, arrow.BINARY, arrow.FIXED_SIZE_BINARY:
	default:
		return nil, fmt.Errorf("matcher %s: column %q has type %s, expected a string or binary column", m, m.Name, field.Type)
	}
	return &Matcher{leaf: leaf, m: m, mem: newConfig(opts).mem}, nil
}

// FromMatchers returns one predicate per matcher.
func FromMatchers(s *parquet.Schema, ms ...*labels.Matcher) ([]reader.Predicate, error) {
	res := make([]reader.Predicate, 0, len(ms))
	for _, m := range ms {
		p, err := NewMatcher(s, m)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (m *Matcher) Projection() schema.Projection {
	return schema.ProjectionFromLeaves(m.leaf)
}

func (m *Matcher) String() string {
	return m.m.String()
}

func (m *Matcher) Evaluate(rec arrow.Record) (*array.Boolean, error) {
	if rec.NumCols() != 1 {
		return nil, fmt.Errorf("matcher %s: expected one column, got %d", m.m, rec.NumCols())
	}

	b := array.NewBooleanBuilder(m.mem)
	defer b.Release()

	col := rec.Column(0)
	b.Reserve(col.Len())
	switch arr := col.(type) {
	case *array.String:
		for i := range arr.Len() {
			if arr.IsNull(i) {
				b.UnsafeAppendBoolToBitmap(false)
				continue
			}
			b.UnsafeAppend(m.m.Matches(arr.Value(i)))
		}
	case *array.Binary:
		for i := range arr.Len() {
			if arr.IsNull(i) {
				b.UnsafeAppendBoolToBitmap(false)
				continue
			}
			b.UnsafeAppend(m.m.Matches(string(arr.Value(i))))
		}
	case *array.FixedSizeBinary:
		for i := range arr.Len() {
			if arr.IsNull(i) {
				b.UnsafeAppendBoolToBitmap(false)
				continue
			}
			b.UnsafeAppend(m.m.Matches(string(arr.Value(i))))
		}
	default:
		return nil, fmt.Errorf("matcher %s: unsupported array type %s", m.m, col.DataType())
	}
	return b.NewBooleanArray(), nil
}

// NotNull matches rows where a column holds a value.
type NotNull struct {
	leaf int
	mem  memory.Allocator
}

var _ reader.Predicate = (*NotNull)(nil)

func NewNotNull(s *parquet.Schema, column string, opts ...Option) (*NotNull, error) {
	leaf, err := lookupLeaf(s, column)
	if err != nil {
		return nil, err
	}
	return &NotNull{leaf: leaf, mem: newConfig(opts).mem}, nil
}

func (n *NotNull) Projection() schema.Projection {
	return schema.ProjectionFromLeaves(n.leaf)
}

func (n *NotNull) Evaluate(rec arrow.Record) (*array.Boolean, error) {
	if rec.NumCols() != 1 {
		return nil, fmt.Errorf("not null: expected one column, got %d", rec.NumCols())
	}

	b := array.NewBooleanBuilder(n.mem)
	defer b.Release()

	col := rec.Column(0)
	b.Reserve(col.Len())
	for i := range col.Len() {
		b.UnsafeAppend(col.IsValid(i))
	}
	return b.NewBooleanArray(), nil
}

// Func adapts a function to a predicate over a projection.
type Func struct {
	projection schema.Projection
	fn         func(rec arrow.Record) (*array.Boolean, error)
}

var _ reader.Predicate = Func{}

func NewFunc(projection schema.Projection, fn func(rec arrow.Record) (*array.Boolean, error)) Func {
	return Func{projection: projection, fn: fn}
}

func (f Func) Projection() schema.Projection {
	return f.projection
}

func (f Func) Evaluate(rec arrow.Record) (*array.Boolean, error) {
	return f.fn(rec)
}

func lookupLeaf(s *parquet.Schema, column string) (int, error) {
	p, err := schema.ProjectionFromNames(s, column)
	if err != nil {
		return 0, err
	}
	return p.Leaves()[0], nil
}
