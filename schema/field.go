// Package schema declares field types and the canonical term byte encoding
// shared by the inverted index, the fast-field store, and the JSON dynamic
// field writer.
package schema

import (
	"fmt"

	"github.com/nutmeg-labs/ember/ftserrors"
)

// Type is a field's declared logical type.
type Type uint8

// The ten logical field types.
const (
	TypeStr Type = iota
	TypeU64
	TypeI64
	TypeF64
	TypeBool
	TypeDate
	TypeBytes
	TypeIpAddr
	TypeFacet
	TypeJson
)

func (t Type) String() string {
	switch t {
	case TypeStr:
		return "Str"
	case TypeU64:
		return "U64"
	case TypeI64:
		return "I64"
	case TypeF64:
		return "F64"
	case TypeBool:
		return "Bool"
	case TypeDate:
		return "Date"
	case TypeBytes:
		return "Bytes"
	case TypeIpAddr:
		return "IpAddr"
	case TypeFacet:
		return "Facet"
	case TypeJson:
		return "Json"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Code returns the single byte persisted in a term's type_code slot.
func (t Type) Code() byte { return byte(t) }

// TypeFromCode decodes a persisted type code, rejecting anything unknown.
func TypeFromCode(code byte) (Type, error) {
	if code > byte(TypeJson) {
		return 0, ftserrors.NewDataError(nil, ftserrors.ErrorCodeUnknownTypeCode,
			fmt.Sprintf("unknown term type code %d", code))
	}
	return Type(code), nil
}

// Options describes how a field participates in indexing: contributing to
// the inverted index, reconstructable via the doc store, and/or available
// as a fast (columnar) field.
type Options struct {
	Indexed bool
	Stored  bool
	Fast    bool
}

// Field is a stable, schema-declared field: its numeric id, name, logical
// type, and participation options. Field declarations are immutable across
// the lifetime of an index.
type Field struct {
	ID      uint32
	Name    string
	Type    Type
	Options Options
}

// Schema is the ordered, immutable set of field declarations for an index.
type Schema struct {
	fields  []Field
	byName  map[string]uint32
	nextID  uint32
}

// NewSchema creates an empty, mutable schema builder; fields are declared
// with AddField. There is no separate freeze step.
func NewSchema() *Schema {
	return &Schema{byName: make(map[string]uint32)}
}

// AddField declares a new field. Declaring the same name twice is a
// SchemaError.
func (s *Schema) AddField(name string, typ Type, opts Options) (Field, error) {
	if _, exists := s.byName[name]; exists {
		return Field{}, ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldDuplicated,
			"field already declared").WithField(name).WithRule("unique-name")
	}
	f := Field{ID: s.nextID, Name: name, Type: typ, Options: opts}
	s.fields = append(s.fields, f)
	s.byName[name] = f.ID
	s.nextID++
	return f, nil
}

// FieldByName resolves a field name, returning a SchemaError if the field
// was never declared.
func (s *Schema) FieldByName(name string) (Field, error) {
	id, ok := s.byName[name]
	if !ok {
		return Field{}, ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldNotFound,
			"field not declared in schema").WithField(name).WithRule("must-exist")
	}
	return s.fields[id], nil
}

// FieldByID resolves a field id previously returned by AddField/FieldByName.
func (s *Schema) FieldByID(id uint32) (Field, bool) {
	if int(id) >= len(s.fields) {
		return Field{}, false
	}
	return s.fields[id], true
}

// Fields returns the ordered list of declared fields.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Len returns the number of declared fields.
func (s *Schema) Len() int { return len(s.fields) }

// RequireType returns a SchemaError unless field.Type == want.
func RequireType(field Field, want Type) error {
	if field.Type != want {
		return ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldTypeWrong,
			fmt.Sprintf("field %q has type %s, operation requires %s", field.Name, field.Type, want)).
			WithField(field.Name).WithRule("type-match")
	}
	return nil
}

// RequireIndexed returns a SchemaError unless field is indexed.
func RequireIndexed(field Field) error {
	if !field.Options.Indexed {
		return ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldTypeWrong,
			fmt.Sprintf("field %q is not indexed", field.Name)).
			WithField(field.Name).WithRule("must-be-indexed")
	}
	return nil
}

// RequireFast returns a SchemaError unless field is a fast field.
func RequireFast(field Field) error {
	if !field.Options.Fast {
		return ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldTypeWrong,
			fmt.Sprintf("field %q is not a fast field", field.Name)).
			WithField(field.Name).WithRule("must-be-fast")
	}
	return nil
}
