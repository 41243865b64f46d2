// Package ir defines the intermediate representation for the hazardflow
// elaborator core.
//
// The IR captures combinational logic as a hash-consed expression tree
// (Expr) over a bit-level and interface-level type lattice (Shape,
// PortDecls, ChannelTyp, InterfaceTyp). It is produced by package lower
// and consumed by packages graph and emit.
package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape is a bit-level array shape: an ordered sequence of positive
// dimensions plus a signedness flag. Width is the product of the
// dimensions.
type Shape struct {
	Dims   []int
	Signed bool
}

// NewShape constructs a Shape from its dimensions and signedness.
func NewShape(dims []int, signed bool) Shape {
	d := make([]int, len(dims))
	copy(d, dims)
	return Shape{Dims: d, Signed: signed}
}

// Bits constructs the common single-dimension shape of the given width.
func Bits(width int, signed bool) Shape {
	return Shape{Dims: []int{width}, Signed: signed}
}

// Width returns the product of the dimensions.
func (s Shape) Width() int {
	w := 1
	for _, d := range s.Dims {
		w *= d
	}
	return w
}

// Multiple scales the outermost dimension by k: [a,b].Multiple(k) = [a*k,b].
func (s Shape) Multiple(k int) Shape {
	if len(s.Dims) == 0 {
		return Shape{Dims: []int{k}, Signed: s.Signed}
	}
	out := make([]int, len(s.Dims))
	copy(out, s.Dims)
	out[0] *= k
	return Shape{Dims: out, Signed: s.Signed}
}

// Divide scales the outermost dimension down by k. Panics if the
// outermost dimension is not evenly divisible by k.
func (s Shape) Divide(k int) Shape {
	if len(s.Dims) == 0 {
		if k != 1 {
			panic(fmt.Sprintf("ir: cannot divide empty shape by %d", k))
		}
		return s
	}
	if s.Dims[0]%k != 0 {
		panic(fmt.Sprintf("ir: shape outer dimension %d is not divisible by %d", s.Dims[0], k))
	}
	out := make([]int, len(s.Dims))
	copy(out, s.Dims)
	out[0] /= k
	return Shape{Dims: out, Signed: s.Signed}
}

func (s Shape) String() string {
	parts := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		parts[i] = strconv.Itoa(d)
	}
	sign := "u"
	if s.Signed {
		sign = "s"
	}
	return sign + "[" + strings.Join(parts, ",") + "]"
}

// PortDecls is the bit-level type of a combinational value: either a flat
// bit vector (Shape) or a struct of named/unnamed fields. Width is the sum
// of field widths. The unit type is Struct(nil).
type PortDecls struct {
	bits   *Shape
	fields []PortDeclsField
}

// PortDeclsField is one field of a PortDecls struct; Name is optional
// (nil for positional/tuple fields) and participates in structural
// equality alongside the field's type.
type PortDeclsField struct {
	Name *string
	Decl PortDecls
}

// BitsDecl constructs a leaf PortDecls from a Shape.
func BitsDecl(s Shape) PortDecls {
	return PortDecls{bits: &s}
}

// UnsignedBits constructs an unsigned flat bit vector PortDecls of the
// given width.
func UnsignedBits(width int) PortDecls {
	return BitsDecl(Bits(width, false))
}

// SignedBits constructs a signed flat bit vector PortDecls of the given
// width.
func SignedBits(width int) PortDecls {
	return BitsDecl(Bits(width, true))
}

// StructDecl constructs a struct PortDecls from its ordered fields.
func StructDecl(fields ...PortDeclsField) PortDecls {
	return PortDecls{fields: fields}
}

// Field builds a PortDeclsField with the given name.
func Field(name string, decl PortDecls) PortDeclsField {
	return PortDeclsField{Name: &name, Decl: decl}
}

// UnnamedField builds a PortDeclsField with no name (tuple position).
func UnnamedField(decl PortDecls) PortDeclsField {
	return PortDeclsField{Decl: decl}
}

// Unit is the zero-width struct type.
func Unit() PortDecls {
	return PortDecls{}
}

// IsBits reports whether this PortDecls is a flat bit vector.
func (p PortDecls) IsBits() bool {
	return p.bits != nil
}

// IsStruct reports whether this PortDecls is a struct (possibly empty,
// i.e. Unit).
func (p PortDecls) IsStruct() bool {
	return p.bits == nil
}

// Shape returns the underlying Shape of a Bits PortDecls. Panics if this
// is a Struct.
func (p PortDecls) Shape() Shape {
	if p.bits == nil {
		panic("ir: PortDecls.Shape called on a Struct")
	}
	return *p.bits
}

// Fields returns the ordered fields of a Struct PortDecls. Panics if this
// is a Bits.
func (p PortDecls) Fields() []PortDeclsField {
	if p.bits != nil {
		panic("ir: PortDecls.Fields called on a Bits")
	}
	return p.fields
}

// Width returns the total bit width: the shape's width for Bits, or the
// sum of field widths for Struct.
func (p PortDecls) Width() int {
	if p.bits != nil {
		return p.bits.Width()
	}
	total := 0
	for _, f := range p.fields {
		total += f.Decl.Width()
	}
	return total
}

// IsSigned reports the signedness of a Bits PortDecls (false for Struct).
func (p PortDecls) IsSigned() bool {
	if p.bits != nil {
		return p.bits.Signed
	}
	return false
}

// Multiple scales a Bits PortDecls' outer dimension by k.
func (p PortDecls) Multiple(k int) PortDecls {
	if p.bits == nil {
		panic("ir: PortDecls.Multiple called on a Struct")
	}
	s := p.bits.Multiple(k)
	return PortDecls{bits: &s}
}

// Divide scales a Bits PortDecls' outer dimension down by k.
func (p PortDecls) Divide(k int) PortDecls {
	if p.bits == nil {
		panic("ir: PortDecls.Divide called on a Struct")
	}
	s := p.bits.Divide(k)
	return PortDecls{bits: &s}
}

// Equal reports structural equality: field names are part of identity
// for Struct PortDecls (positional equality, unlike InterfaceTyp.Struct).
func (p PortDecls) Equal(o PortDecls) bool {
	if p.IsBits() != o.IsBits() {
		return false
	}
	if p.IsBits() {
		return p.bits.Width() == o.bits.Width() && p.bits.Signed == o.bits.Signed
	}
	if len(p.fields) != len(o.fields) {
		return false
	}
	for i, f := range p.fields {
		g := o.fields[i]
		if (f.Name == nil) != (g.Name == nil) {
			return false
		}
		if f.Name != nil && *f.Name != *g.Name {
			return false
		}
		if !f.Decl.Equal(g.Decl) {
			return false
		}
	}
	return true
}

func (p PortDecls) String() string {
	if p.bits != nil {
		return p.bits.String()
	}
	parts := make([]string, len(p.fields))
	for i, f := range p.fields {
		name := "_"
		if f.Name != nil {
			name = *f.Name
		}
		parts[i] = name + ":" + f.Decl.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ChannelTyp is a hazard channel type: a forward payload type and a
// backward resolver type.
type ChannelTyp struct {
	Fwd PortDecls
	Bwd PortDecls
}

// Equal reports whether two ChannelTyp values carry structurally equal
// forward and backward types.
func (c ChannelTyp) Equal(o ChannelTyp) bool {
	return c.Fwd.Equal(o.Fwd) && c.Bwd.Equal(o.Bwd)
}

// InterfaceTyp is the interface-level type lattice: Unit, a single
// Channel, a fixed-length Array of a homogeneous InterfaceTyp, or a
// Struct of named subinterfaces. Struct equality is set-like by key
// (field order does not matter), unlike PortDecls.Equal which is
// positional.
type InterfaceTyp struct {
	kind      interfaceTypKind
	channel   ChannelTyp
	arrayElem *InterfaceTyp
	arrayLen  int
	fields    []InterfaceField
}

type interfaceTypKind uint8

const (
	ifaceUnit interfaceTypKind = iota
	ifaceChannel
	ifaceArray
	ifaceStruct
)

// InterfaceField is one named field of an InterfaceTyp.Struct, with an
// optional path separator override (defaults to "_" when printing port
// names).
type InterfaceField struct {
	Name string
	Sep  *string
	Typ  InterfaceTyp
}

// UnitTyp constructs the Unit interface type.
func UnitTyp() InterfaceTyp { return InterfaceTyp{kind: ifaceUnit} }

// ChannelIfaceTyp constructs a leaf Channel interface type.
func ChannelIfaceTyp(ch ChannelTyp) InterfaceTyp {
	return InterfaceTyp{kind: ifaceChannel, channel: ch}
}

// ArrayIfaceTyp constructs a fixed-length Array interface type.
func ArrayIfaceTyp(elem InterfaceTyp, n int) InterfaceTyp {
	return InterfaceTyp{kind: ifaceArray, arrayElem: &elem, arrayLen: n}
}

// StructIfaceTyp constructs a Struct interface type from its fields.
// Field order only affects path generation, not equality.
func StructIfaceTyp(fields ...InterfaceField) InterfaceTyp {
	return InterfaceTyp{kind: ifaceStruct, fields: fields}
}

// Kind returns a short tag for switch-like dispatch in callers that do
// not want direct access to the private fields.
type InterfaceTypKind = interfaceTypKind

const (
	KindUnit    = ifaceUnit
	KindChannel = ifaceChannel
	KindArray   = ifaceArray
	KindStruct  = ifaceStruct
)

func (t InterfaceTyp) Kind() InterfaceTypKind { return t.kind }

func (t InterfaceTyp) Channel() ChannelTyp {
	if t.kind != ifaceChannel {
		panic("ir: InterfaceTyp.Channel called on non-Channel")
	}
	return t.channel
}

func (t InterfaceTyp) ArrayElem() (InterfaceTyp, int) {
	if t.kind != ifaceArray {
		panic("ir: InterfaceTyp.ArrayElem called on non-Array")
	}
	return *t.arrayElem, t.arrayLen
}

func (t InterfaceTyp) Fields() []InterfaceField {
	if t.kind != ifaceStruct {
		panic("ir: InterfaceTyp.Fields called on non-Struct")
	}
	return t.fields
}

// FieldByName looks up a Struct field by name.
func (t InterfaceTyp) FieldByName(name string) (InterfaceField, bool) {
	if t.kind != ifaceStruct {
		return InterfaceField{}, false
	}
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return InterfaceField{}, false
}

// Equal reports structural equality. Struct equality is set-like by key:
// field order is irrelevant, only the (name -> InterfaceTyp) mapping
// matters.
func (t InterfaceTyp) Equal(o InterfaceTyp) bool {
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case ifaceUnit:
		return true
	case ifaceChannel:
		return t.channel.Equal(o.channel)
	case ifaceArray:
		return t.arrayLen == o.arrayLen && t.arrayElem.Equal(*o.arrayElem)
	case ifaceStruct:
		if len(t.fields) != len(o.fields) {
			return false
		}
		for _, f := range t.fields {
			g, ok := o.FieldByName(f.Name)
			if !ok || !f.Typ.Equal(g.Typ) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// PathSegment is one hop of an endpoint path: either an array Index or a
// named struct Field (with its separator, for port-name joining).
type PathSegment struct {
	// IsIndex distinguishes Index from Field.
	IsIndex bool
	Index   int
	Name    string
	Sep     string
}

// IndexSeg constructs an array-index path segment.
func IndexSeg(i int) PathSegment { return PathSegment{IsIndex: true, Index: i} }

// FieldSeg constructs a struct-field path segment with the given
// separator (defaults to "_" if empty).
func FieldSeg(name, sep string) PathSegment {
	if sep == "" {
		sep = "_"
	}
	return PathSegment{Name: name, Sep: sep}
}

// Path is an ordered sequence of PathSegment describing one endpoint
// inside an InterfaceTyp/Interface tree, from the root down to a leaf
// Channel or Unit.
type Path []PathSegment

func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.IsIndex {
			fmt.Fprintf(&b, "[%d]", seg.Index)
			continue
		}
		if i > 0 {
			b.WriteString(seg.Sep)
		}
		b.WriteString(seg.Name)
	}
	return b.String()
}

// Append returns a new Path with seg appended.
func (p Path) Append(seg PathSegment) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// PrimitiveLeaf pairs a leaf Channel/Unit InterfaceTyp subinterface with
// its endpoint path, as produced by InterfaceTyp.IntoPrimitives.
type PrimitiveLeaf struct {
	Path Path
	// IsUnit distinguishes a Unit leaf (no channel) from a Channel leaf.
	IsUnit  bool
	Channel ChannelTyp
}

// IntoPrimitives walks the InterfaceTyp tree and yields every leaf
// Channel/Unit subinterface paired with its endpoint path.
func (t InterfaceTyp) IntoPrimitives() []PrimitiveLeaf {
	var out []PrimitiveLeaf
	t.intoPrimitives(nil, &out)
	return out
}

func (t InterfaceTyp) intoPrimitives(prefix Path, out *[]PrimitiveLeaf) {
	switch t.kind {
	case ifaceUnit:
		*out = append(*out, PrimitiveLeaf{Path: prefix, IsUnit: true})
	case ifaceChannel:
		*out = append(*out, PrimitiveLeaf{Path: prefix, Channel: t.channel})
	case ifaceArray:
		for i := 0; i < t.arrayLen; i++ {
			t.arrayElem.intoPrimitives(prefix.Append(IndexSeg(i)), out)
		}
	case ifaceStruct:
		for _, f := range t.fields {
			sep := "_"
			if f.Sep != nil {
				sep = *f.Sep
			}
			f.Typ.intoPrimitives(prefix.Append(FieldSeg(f.Name, sep)), out)
		}
	}
}

// GetSubinterface resolves a Path against this InterfaceTyp, returning
// the InterfaceTyp found at that path.
func (t InterfaceTyp) GetSubinterface(path Path) (InterfaceTyp, error) {
	cur := t
	for _, seg := range path {
		switch cur.kind {
		case ifaceArray:
			if !seg.IsIndex || seg.Index < 0 || seg.Index >= cur.arrayLen {
				return InterfaceTyp{}, fmt.Errorf("ir: path segment %v invalid for array of length %d", seg, cur.arrayLen)
			}
			cur = *cur.arrayElem
		case ifaceStruct:
			if seg.IsIndex {
				return InterfaceTyp{}, fmt.Errorf("ir: path segment %v is an index but type is a struct", seg)
			}
			f, ok := cur.FieldByName(seg.Name)
			if !ok {
				return InterfaceTyp{}, fmt.Errorf("ir: no field %q in interface struct", seg.Name)
			}
			cur = f.Typ
		default:
			return InterfaceTyp{}, fmt.Errorf("ir: cannot descend into %v at path segment %v", cur.kind, seg)
		}
	}
	return cur, nil
}

// NestedArrayFlattenedLen returns the total number of Channel/Unit
// leaves reachable by repeatedly descending through nested Arrays (used
// to compute flattened port-array multiplicities in component E).
func (t InterfaceTyp) NestedArrayFlattenedLen() int {
	n := 1
	cur := t
	for cur.kind == ifaceArray {
		n *= cur.arrayLen
		cur = *cur.arrayElem
	}
	return n
}
