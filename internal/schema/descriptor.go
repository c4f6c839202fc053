// Package schema describes the shape of node payloads.
//
// A Descriptor is a tagged union mirroring the JSON shape the canvas stores:
//
//	"string" | "number" | "boolean"   primitive
//	[<descriptor>]                    homogeneous array
//	{"key": <descriptor>, ...}        object, keys in display order
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind discriminates the Descriptor variants.
type Kind int

const (
	KindPrimitive Kind = iota
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Primitive is the leaf type tag.
type Primitive string

const (
	TypeString  Primitive = "string"
	TypeNumber  Primitive = "number"
	TypeBoolean Primitive = "boolean"
)

// Known reports whether p is one of the three supported tags.
func (p Primitive) Known() bool {
	switch p {
	case TypeString, TypeNumber, TypeBoolean:
		return true
	}
	return false
}

// Property is one named entry of an object descriptor.
type Property struct {
	Name  string
	Value *Descriptor
}

// Descriptor is one node of a payload shape tree.
type Descriptor struct {
	Kind       Kind
	Type       Primitive   // KindPrimitive
	Items      *Descriptor // KindArray
	Properties []Property  // KindObject, display order
}

// String returns a string primitive.
func String() *Descriptor { return &Descriptor{Kind: KindPrimitive, Type: TypeString} }

// Number returns a number primitive.
func Number() *Descriptor { return &Descriptor{Kind: KindPrimitive, Type: TypeNumber} }

// Boolean returns a boolean primitive.
func Boolean() *Descriptor { return &Descriptor{Kind: KindPrimitive, Type: TypeBoolean} }

// ArrayOf returns an array whose items all have the shape items.
func ArrayOf(items *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindArray, Items: items}
}

// Object returns an object with the given properties in order.
func Object(props ...Property) *Descriptor {
	return &Descriptor{Kind: KindObject, Properties: props}
}

// Prop is shorthand for building object properties.
func Prop(name string, value *Descriptor) Property {
	return Property{Name: name, Value: value}
}

// Get returns the first property called name.
func (d *Descriptor) Get(name string) (*Descriptor, bool) {
	if d == nil || d.Kind != KindObject {
		return nil, false
	}
	for _, p := range d.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of name, appending the property when absent.
func (d *Descriptor) Set(name string, value *Descriptor) {
	if d == nil || d.Kind != KindObject {
		return
	}
	for i, p := range d.Properties {
		if p.Name == name {
			d.Properties[i].Value = value
			return
		}
	}
	d.Properties = append(d.Properties, Property{Name: name, Value: value})
}

// Delete removes the first property called name.
func (d *Descriptor) Delete(name string) bool {
	if d == nil || d.Kind != KindObject {
		return false
	}
	for i, p := range d.Properties {
		if p.Name == name {
			d.Properties = append(d.Properties[:i], d.Properties[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns the property names in display order.
func (d *Descriptor) Keys() []string {
	if d == nil || d.Kind != KindObject {
		return nil
	}
	keys := make([]string, len(d.Properties))
	for i, p := range d.Properties {
		keys[i] = p.Name
	}
	return keys
}

// Clone returns a deep copy.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := &Descriptor{Kind: d.Kind, Type: d.Type, Items: d.Items.Clone()}
	if d.Properties != nil {
		c.Properties = make([]Property, len(d.Properties))
		for i, p := range d.Properties {
			c.Properties[i] = Property{Name: p.Name, Value: p.Value.Clone()}
		}
	}
	return c
}

// Equal reports structural equality, including property order.
func (d *Descriptor) Equal(o *Descriptor) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Kind != o.Kind {
		return false
	}
	switch d.Kind {
	case KindPrimitive:
		return d.Type == o.Type
	case KindArray:
		return d.Items.Equal(o.Items)
	case KindObject:
		if len(d.Properties) != len(o.Properties) {
			return false
		}
		for i := range d.Properties {
			if d.Properties[i].Name != o.Properties[i].Name || !d.Properties[i].Value.Equal(o.Properties[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the descriptor in its canvas wire form.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Descriptor) encode(buf *bytes.Buffer) error {
	if d == nil {
		buf.WriteString("null")
		return nil
	}
	switch d.Kind {
	case KindPrimitive:
		b, err := json.Marshal(string(d.Type))
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		items := d.Items
		if items == nil {
			items = String()
		}
		if err := items.encode(buf); err != nil {
			return err
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, p := range d.Properties {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(p.Name)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := p.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("schema: cannot encode %v", d.Kind)
	}
	return nil
}

// UnmarshalJSON decodes the canvas wire form, keeping object key order.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if parsed == nil {
		*d = Descriptor{Kind: KindObject}
		return nil
	}
	*d = *parsed
	return nil
}

// Parse decodes a descriptor from its wire form. A JSON null yields nil.
func Parse(data []byte) (*Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return decodeValue(dec)
}

func decodeValue(dec *json.Decoder) (*Descriptor, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	switch v := tok.(type) {
	case nil:
		return nil, nil
	case string:
		return &Descriptor{Kind: KindPrimitive, Type: Primitive(v)}, nil
	case json.Delim:
		switch v {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		}
	}
	return nil, fmt.Errorf("schema: unexpected token %v", tok)
}

func decodeArray(dec *json.Decoder) (*Descriptor, error) {
	var items *Descriptor
	first := true
	for dec.More() {
		item, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		// Arrays are homogeneous: the first element describes every item.
		if first {
			items = item
			first = false
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if items == nil {
		items = String()
	}
	return ArrayOf(items), nil
}

func decodeObject(dec *json.Decoder) (*Descriptor, error) {
	obj := &Descriptor{Kind: KindObject, Properties: []Property{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("schema: expected object key, got %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: %w", key, err)
		}
		if value == nil {
			value = String()
		}
		obj.Properties = append(obj.Properties, Property{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return obj, nil
}
