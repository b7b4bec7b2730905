package schema

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
)

// Term is the canonical byte sequence `[field_id:4 BE | type_code:1 |
// value_bytes:...]` shared by every field type. The JSON
// encoding packs the path into value_bytes as documented on
// AppendJSONPathSegment/CloseJSONPath.
type Term []byte

// termMetadataLength is the number of bytes consumed by field id + type
// code before value_bytes begins.
const termMetadataLength = 5

// JSONPathSegmentSep separates successive path segments inside a JSON
// term's value_bytes.
const JSONPathSegmentSep byte = 0x01

// JSONEndOfPath marks the boundary between the path and the leaf type code
// + leaf value inside a JSON term's value_bytes.
const JSONEndOfPath byte = 0x00

// NewTerm allocates a Term with its field id and type code prefix written,
// with no value bytes yet.
func NewTerm(fieldID uint32, typ Type) Term {
	t := make(Term, termMetadataLength, termMetadataLength+8)
	binary.BigEndian.PutUint32(t[0:4], fieldID)
	t[4] = typ.Code()
	return t
}

// FieldID returns the field id encoded in the term's first 4 bytes.
func (t Term) FieldID() uint32 {
	return binary.BigEndian.Uint32(t[0:4])
}

// TypeCode returns the raw type code byte (use schema.TypeFromCode to
// validate it).
func (t Term) TypeCode() byte {
	return t[4]
}

// ValueBytes returns the bytes following the 5-byte field id + type code
// header.
func (t Term) ValueBytes() []byte {
	return t[termMetadataLength:]
}

// AppendBytes appends raw bytes to the term's value portion and returns
// the (possibly reallocated) term.
func (t Term) AppendBytes(b []byte) Term {
	return append(t, b...)
}

// TruncateValue truncates the term's value portion to n bytes (used by the
// JSON term writer's path-stack pop/trim).
func (t Term) TruncateValue(n int) Term {
	return t[:termMetadataLength+n]
}

// ---- order-preserving numeric projections ----
//
// Each numeric logical type is mapped to a u64 such that the unsigned
// byte-wise comparison of the encoded bytes matches the value's natural
// ordering.

// U64ToOrdered is the identity projection: u64 is already order-preserving
// as big-endian bytes.
func U64ToOrdered(v uint64) uint64 { return v }

// OrderedToU64 inverts U64ToOrdered.
func OrderedToU64(v uint64) uint64 { return v }

// I64ToOrdered flips the sign bit so two's-complement ordering becomes
// unsigned ordering.
func I64ToOrdered(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

// OrderedToI64 inverts I64ToOrdered.
func OrderedToI64(v uint64) int64 {
	return int64(v ^ (1 << 63))
}

// F64ToOrdered maps an IEEE-754 float64 to a u64 such that unsigned integer
// ordering matches float ordering: flip the sign bit for non-negative
// values, flip all bits for negative values.
func F64ToOrdered(v float64) uint64 {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// OrderedToF64 inverts F64ToOrdered.
func OrderedToF64(v uint64) float64 {
	if v&(1<<63) != 0 {
		return math.Float64frombits(v & ^uint64(1<<63))
	}
	return math.Float64frombits(^v)
}

// BoolToOrdered maps false/true to 0/1.
func BoolToOrdered(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// OrderedToBool inverts BoolToOrdered.
func OrderedToBool(v uint64) bool { return v != 0 }

// DateToOrdered projects a Unix-microsecond timestamp (the precision the
// engine persists dates at) through the i64 projection; it does no
// truncation itself, callers pass an already-microsecond value.
func DateToOrdered(unixMicros int64) uint64 {
	return I64ToOrdered(unixMicros)
}

// OrderedToDate inverts DateToOrdered.
func OrderedToDate(v uint64) int64 { return OrderedToI64(v) }

func putOrderedU64(t Term, ordered uint64) Term {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], ordered)
	return t.AppendBytes(buf[:])
}

// FromFieldU64 builds a term for a declared U64 field.
func FromFieldU64(fieldID uint32, v uint64) Term {
	return putOrderedU64(NewTerm(fieldID, TypeU64), U64ToOrdered(v))
}

// FromFieldI64 builds a term for a declared I64 field.
func FromFieldI64(fieldID uint32, v int64) Term {
	return putOrderedU64(NewTerm(fieldID, TypeI64), I64ToOrdered(v))
}

// FromFieldF64 builds a term for a declared F64 field.
func FromFieldF64(fieldID uint32, v float64) Term {
	return putOrderedU64(NewTerm(fieldID, TypeF64), F64ToOrdered(v))
}

// FromFieldBool builds a term for a declared Bool field.
func FromFieldBool(fieldID uint32, v bool) Term {
	return putOrderedU64(NewTerm(fieldID, TypeBool), BoolToOrdered(v))
}

// FromFieldDate builds a term for a declared Date field, given a Unix
// microsecond timestamp.
func FromFieldDate(fieldID uint32, unixMicros int64) Term {
	return putOrderedU64(NewTerm(fieldID, TypeDate), DateToOrdered(unixMicros))
}

// FromFieldText builds a term for a declared Str field.
func FromFieldText(fieldID uint32, text string) Term {
	return NewTerm(fieldID, TypeStr).AppendBytes([]byte(text))
}

// FromFieldBytes builds a term for a declared Bytes field.
func FromFieldBytes(fieldID uint32, b []byte) Term {
	return NewTerm(fieldID, TypeBytes).AppendBytes(b)
}

// FromFieldIPAddr builds a term for a declared IpAddr field, encoding the
// address as 16-byte big-endian IPv6 (IPv4 addresses are mapped into
// IPv4-in-IPv6 form).
func FromFieldIPAddr(fieldID uint32, ip net.IP) Term {
	v6 := ip.To16()
	return NewTerm(fieldID, TypeIpAddr).AppendBytes(v6)
}

// DecodedValue holds a value decoded back out of a non-JSON, non-Facet
// term, tagged by which field of the union is populated.
type DecodedValue struct {
	Type   Type
	U64    uint64
	I64    int64
	F64    float64
	Bool   bool
	Date   int64
	Str    string
	Bytes  []byte
	IPAddr net.IP
}

// Decode inverts the From* constructors above: decode(encode(v)) == v for
// every supported value type.
func Decode(t Term) (DecodedValue, error) {
	typ, err := TypeFromCode(t.TypeCode())
	if err != nil {
		return DecodedValue{}, err
	}
	value := t.ValueBytes()
	switch typ {
	case TypeU64:
		return DecodedValue{Type: typ, U64: OrderedToU64(binary.BigEndian.Uint64(value))}, nil
	case TypeI64:
		return DecodedValue{Type: typ, I64: OrderedToI64(binary.BigEndian.Uint64(value))}, nil
	case TypeF64:
		return DecodedValue{Type: typ, F64: OrderedToF64(binary.BigEndian.Uint64(value))}, nil
	case TypeBool:
		return DecodedValue{Type: typ, Bool: OrderedToBool(binary.BigEndian.Uint64(value))}, nil
	case TypeDate:
		return DecodedValue{Type: typ, Date: OrderedToDate(binary.BigEndian.Uint64(value))}, nil
	case TypeStr:
		return DecodedValue{Type: typ, Str: string(value)}, nil
	case TypeBytes:
		return DecodedValue{Type: typ, Bytes: append([]byte(nil), value...)}, nil
	case TypeIpAddr:
		ip := make(net.IP, 16)
		copy(ip, value)
		return DecodedValue{Type: typ, IPAddr: ip}, nil
	case TypeFacet:
		return DecodedValue{Type: typ, Str: string(value)}, nil
	default:
		return DecodedValue{}, fmt.Errorf("cannot Decode a %s term generically, use the JSON term reader", typ)
	}
}
