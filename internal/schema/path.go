package schema

import (
	"fmt"
	"strings"
)

// Field is one selectable position in a descriptor tree.
type Field struct {
	Path  string
	Name  string
	Kind  Kind
	Type  Primitive
	Depth int
}

// Fields enumerates every selectable path of an object descriptor in
// display order. Object children are joined with ".", the item of an array
// is addressed as "[0]". Non-object roots have no selectable fields.
func Fields(d *Descriptor) []Field {
	if d == nil || d.Kind != KindObject {
		return nil
	}
	var out []Field
	for _, p := range d.Properties {
		out = walkFields(out, p.Value, p.Name, p.Name, 0)
	}
	return out
}

func walkFields(out []Field, d *Descriptor, path, name string, depth int) []Field {
	if d == nil {
		return out
	}
	out = append(out, Field{Path: path, Name: name, Kind: d.Kind, Type: d.Type, Depth: depth})
	switch d.Kind {
	case KindArray:
		out = walkFields(out, d.Items, path+"[0]", name+"[0]", depth+1)
	case KindObject:
		for _, p := range d.Properties {
			out = walkFields(out, p.Value, path+"."+p.Name, p.Name, depth+1)
		}
	}
	return out
}

// Segment is one step of a field path: either a property name or the array
// item marker.
type Segment struct {
	Name string
	Item bool
}

// SplitPath parses "a.b[0].c" into segments. The empty path is the root.
func SplitPath(path string) ([]Segment, error) {
	if path == "" {
		return nil, nil
	}
	var segs []Segment
	for _, part := range strings.Split(path, ".") {
		name := part
		items := 0
		for strings.HasSuffix(name, "[0]") {
			name = strings.TrimSuffix(name, "[0]")
			items++
		}
		if strings.ContainsAny(name, "[]") {
			return nil, fmt.Errorf("schema: bad path segment %q in %q", part, path)
		}
		if name == "" && (len(segs) > 0 || items == 0) {
			return nil, fmt.Errorf("schema: empty segment in %q", path)
		}
		if name != "" {
			segs = append(segs, Segment{Name: name})
		}
		for i := 0; i < items; i++ {
			segs = append(segs, Segment{Item: true})
		}
	}
	return segs, nil
}

// Lookup returns the descriptor addressed by path.
func Lookup(d *Descriptor, path string) (*Descriptor, bool) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, false
	}
	cur := d
	for _, s := range segs {
		if cur == nil {
			return nil, false
		}
		if s.Item {
			if cur.Kind != KindArray {
				return nil, false
			}
			cur = cur.Items
			continue
		}
		next, ok := cur.Get(s.Name)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

// IsDescendant reports whether path lies strictly below parent.
func IsDescendant(path, parent string) bool {
	if parent == "" {
		return path != ""
	}
	return strings.HasPrefix(path, parent+".") || strings.HasPrefix(path, parent+"[")
}
