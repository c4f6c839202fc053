package schema

import (
	"fmt"
	"strings"
)

// TypeName is the type chosen for a property in the editor.
type TypeName string

const (
	TypeNameString  TypeName = "string"
	TypeNameNumber  TypeName = "number"
	TypeNameBoolean TypeName = "boolean"
	TypeNameObject  TypeName = "object"
	TypeNameArray   TypeName = "array"
)

// TypeOf reports the editor type name of d.
func TypeOf(d *Descriptor) TypeName {
	if d == nil {
		return TypeNameString
	}
	switch d.Kind {
	case KindArray:
		return TypeNameArray
	case KindObject:
		return TypeNameObject
	}
	switch d.Type {
	case TypeNumber:
		return TypeNameNumber
	case TypeBoolean:
		return TypeNameBoolean
	}
	return TypeNameString
}

// NewOfType returns the default descriptor for a type name. Arrays default
// to an array of strings; unknown names fall back to string.
func NewOfType(t TypeName) *Descriptor {
	switch t {
	case TypeNameNumber:
		return Number()
	case TypeNameBoolean:
		return Boolean()
	case TypeNameObject:
		return Object()
	case TypeNameArray:
		return ArrayOf(String())
	default:
		return String()
	}
}

// Problem is one validation failure found at commit time.
type Problem struct {
	Path    string
	Message string
}

// ValidationError lists every problem that blocked a commit.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		p := e.Problems[0]
		return fmt.Sprintf("schema: %s: %s", displayPath(p.Path), p.Message)
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = displayPath(p.Path) + ": " + p.Message
	}
	return "schema: " + strings.Join(parts, "; ")
}

func displayPath(p string) string {
	if p == "" {
		return "root"
	}
	return p
}

// Validate checks the invariants a committed descriptor must hold: object
// keys are non-empty and unique within their object, and primitive tags are
// known.
func Validate(d *Descriptor) error {
	var problems []Problem
	validateInto(d, "", &problems)
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func validateInto(d *Descriptor, path string, problems *[]Problem) {
	if d == nil {
		return
	}
	switch d.Kind {
	case KindPrimitive:
		if !d.Type.Known() {
			*problems = append(*problems, Problem{Path: path, Message: fmt.Sprintf("unknown type %q", d.Type)})
		}
	case KindArray:
		validateInto(d.Items, path+"[0]", problems)
	case KindObject:
		seen := make(map[string]bool, len(d.Properties))
		for _, p := range d.Properties {
			child := p.Name
			if path != "" {
				child = path + "." + p.Name
			}
			if strings.TrimSpace(p.Name) == "" {
				*problems = append(*problems, Problem{Path: path, Message: "property name cannot be empty"})
				continue
			}
			if seen[p.Name] {
				*problems = append(*problems, Problem{Path: path, Message: fmt.Sprintf("property %q already exists", p.Name)})
				continue
			}
			seen[p.Name] = true
			validateInto(p.Value, child, problems)
		}
	}
}

// Editor separates in-progress edits from the committed descriptor. Edits
// land on the draft without validation; Commit validates the draft and only
// then publishes it.
type Editor struct {
	committed *Descriptor
	draft     *Descriptor
	onCommit  func(*Descriptor)
	nextKey   int
}

// NewEditor starts editing d. A nil descriptor starts from an empty object.
func NewEditor(d *Descriptor, onCommit func(*Descriptor)) *Editor {
	if d == nil {
		d = Object()
	}
	return &Editor{
		committed: d.Clone(),
		draft:     d.Clone(),
		onCommit:  onCommit,
	}
}

// Draft returns the live, unvalidated value.
func (e *Editor) Draft() *Descriptor { return e.draft }

// Committed returns the last validated value.
func (e *Editor) Committed() *Descriptor { return e.committed }

// Dirty reports whether the draft differs from the committed value.
func (e *Editor) Dirty() bool { return !e.draft.Equal(e.committed) }

// Reset discards the draft.
func (e *Editor) Reset() { e.draft = e.committed.Clone() }

func (e *Editor) object(parent string) (*Descriptor, error) {
	obj, ok := Lookup(e.draft, parent)
	if !ok || obj.Kind != KindObject {
		return nil, fmt.Errorf("schema: %s is not an object", displayPath(parent))
	}
	return obj, nil
}

// AddProperty appends a string property with a generated unique name under
// parent and returns that name.
func (e *Editor) AddProperty(parent string) (string, error) {
	obj, err := e.object(parent)
	if err != nil {
		return "", err
	}
	for {
		e.nextKey++
		name := fmt.Sprintf("property_%d", e.nextKey)
		if _, taken := obj.Get(name); !taken {
			obj.Properties = append(obj.Properties, Prop(name, String()))
			return name, nil
		}
	}
}

// RemoveProperty deletes key from the object at parent.
func (e *Editor) RemoveProperty(parent, key string) error {
	obj, err := e.object(parent)
	if err != nil {
		return err
	}
	if !obj.Delete(key) {
		return fmt.Errorf("schema: %s has no property %q", displayPath(parent), key)
	}
	return nil
}

// RenameProperty changes a key in place, keeping its position. Empty and
// duplicate names are accepted here and rejected by Commit.
func (e *Editor) RenameProperty(parent, oldKey, newKey string) error {
	obj, err := e.object(parent)
	if err != nil {
		return err
	}
	for i, p := range obj.Properties {
		if p.Name == oldKey {
			obj.Properties[i].Name = newKey
			return nil
		}
	}
	return fmt.Errorf("schema: %s has no property %q", displayPath(parent), oldKey)
}

// SetType replaces the value of key with the default for t.
func (e *Editor) SetType(parent, key string, t TypeName) error {
	obj, err := e.object(parent)
	if err != nil {
		return err
	}
	if _, ok := obj.Get(key); !ok {
		return fmt.Errorf("schema: %s has no property %q", displayPath(parent), key)
	}
	obj.Set(key, NewOfType(t))
	return nil
}

// SetItemType replaces the item shape of the array at path.
func (e *Editor) SetItemType(path string, t TypeName) error {
	arr, ok := Lookup(e.draft, path)
	if !ok || arr.Kind != KindArray {
		return fmt.Errorf("schema: %s is not an array", displayPath(path))
	}
	arr.Items = NewOfType(t)
	return nil
}

// Commit validates the draft. On success the draft becomes the committed
// value and the commit callback fires; on failure nothing is published.
func (e *Editor) Commit() error {
	if err := Validate(e.draft); err != nil {
		return err
	}
	e.committed = e.draft.Clone()
	if e.onCommit != nil {
		e.onCommit(e.committed.Clone())
	}
	return nil
}
