package schema

import (
	"encoding/json"
	"testing"
)

func TestParsePreservesKeyOrder(t *testing.T) {
	raw := `{"zeta":"string","alpha":{"b":"number","a":"boolean"},"list":["string"]}`

	d, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := d.Keys(); len(got) != 3 || got[0] != "zeta" || got[1] != "alpha" || got[2] != "list" {
		t.Fatalf("Keys = %v, want [zeta alpha list]", got)
	}

	alpha, ok := d.Get("alpha")
	if !ok {
		t.Fatal("alpha missing")
	}
	if got := alpha.Keys(); got[0] != "b" || got[1] != "a" {
		t.Errorf("nested Keys = %v, want [b a]", got)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("Marshal = %s, want %s", out, raw)
	}
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
		typ  Primitive
	}{
		{"string", `"string"`, KindPrimitive, TypeString},
		{"number", `"number"`, KindPrimitive, TypeNumber},
		{"boolean", `"boolean"`, KindPrimitive, TypeBoolean},
		{"array", `["number"]`, KindArray, ""},
		{"object", `{}`, KindObject, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if d.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", d.Kind, tt.kind)
			}
			if d.Type != tt.typ {
				t.Errorf("Type = %q, want %q", d.Type, tt.typ)
			}
		})
	}
}

func TestParseArrayUsesFirstElement(t *testing.T) {
	d, err := Parse([]byte(`[{"a":"string"},"number"]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Items == nil || d.Items.Kind != KindObject {
		t.Fatalf("Items = %+v, want object", d.Items)
	}

	empty, err := Parse([]byte(`[]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if empty.Items == nil || empty.Items.Type != TypeString {
		t.Errorf("empty array items = %+v, want string", empty.Items)
	}
}

func TestParseRejectsNonShapes(t *testing.T) {
	for _, raw := range []string{`42`, `true`, `{"a":1}`, `{"a":`} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("Parse(%s) expected error", raw)
		}
	}
}

func TestParseNull(t *testing.T) {
	d, err := Parse([]byte(`null`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d != nil {
		t.Errorf("Parse(null) = %+v, want nil", d)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Object(Prop("a", Object(Prop("b", String()))))
	c := orig.Clone()

	inner, _ := c.Get("a")
	inner.Set("b", Number())

	origInner, _ := orig.Get("a")
	b, _ := origInner.Get("b")
	if b.Type != TypeString {
		t.Errorf("mutation leaked into original: %v", b.Type)
	}
	if orig.Equal(c) {
		t.Error("expected clone to differ after mutation")
	}
}

func TestSetAndDelete(t *testing.T) {
	d := Object(Prop("a", String()))
	d.Set("b", Number())
	d.Set("a", Boolean())

	if got := d.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Keys = %v", got)
	}
	a, _ := d.Get("a")
	if a.Type != TypeBoolean {
		t.Errorf("a = %v, want boolean", a.Type)
	}
	if !d.Delete("a") {
		t.Error("Delete(a) = false")
	}
	if d.Delete("missing") {
		t.Error("Delete(missing) = true")
	}
}
