package schema

import (
	"errors"
	"reflect"
	"testing"
)

func kybResults() *Descriptor {
	return Object(
		Prop("RecommendedIndustry", Object(
			Prop("primary_industry", String()),
			Prop("secondary_industries", ArrayOf(String())),
			Prop("confidence_score", Number()),
		)),
		Prop("issues_found", ArrayOf(Object(Prop("code", String())))),
	)
}

func TestFields(t *testing.T) {
	got := Fields(kybResults())

	var paths []string
	for _, f := range got {
		paths = append(paths, f.Path)
	}
	want := []string{
		"RecommendedIndustry",
		"RecommendedIndustry.primary_industry",
		"RecommendedIndustry.secondary_industries",
		"RecommendedIndustry.secondary_industries[0]",
		"RecommendedIndustry.confidence_score",
		"issues_found",
		"issues_found[0]",
		"issues_found[0].code",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths =\n%v\nwant\n%v", paths, want)
	}
	if got[1].Depth != 1 || got[3].Depth != 2 {
		t.Errorf("unexpected depths: %d %d", got[1].Depth, got[3].Depth)
	}
}

func TestFieldsNonObjectRoot(t *testing.T) {
	if got := Fields(ArrayOf(String())); got != nil {
		t.Errorf("Fields(array) = %v, want nil", got)
	}
}

func TestLookup(t *testing.T) {
	d := kybResults()

	tests := []struct {
		path string
		kind Kind
		ok   bool
	}{
		{"", KindObject, true},
		{"RecommendedIndustry.confidence_score", KindPrimitive, true},
		{"RecommendedIndustry.secondary_industries[0]", KindPrimitive, true},
		{"issues_found[0].code", KindPrimitive, true},
		{"issues_found.code", 0, false},
		{"missing", 0, false},
		{"a..b", 0, false},
	}
	for _, tt := range tests {
		got, ok := Lookup(d, tt.path)
		if ok != tt.ok {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			continue
		}
		if ok && got.Kind != tt.kind {
			t.Errorf("Lookup(%q) kind = %v, want %v", tt.path, got.Kind, tt.kind)
		}
	}
}

func TestSelectionToggleParentClearsChildren(t *testing.T) {
	sel := Selection{}
	sel.Toggle("RecommendedIndustry.primary_industry", true)
	sel.Toggle("issues_found[0].code", true)
	sel.Toggle("RecommendedIndustryX", true)

	sel.Toggle("RecommendedIndustry", true)
	if sel.Selected("RecommendedIndustry.primary_industry") {
		t.Error("child should be cleared when parent is selected")
	}
	if !sel.Selected("RecommendedIndustryX") {
		t.Error("sibling with shared prefix must not be cleared")
	}

	sel.Toggle("issues_found", true)
	if sel.Selected("issues_found[0].code") {
		t.Error("array item child should be cleared when array is selected")
	}

	want := []string{"RecommendedIndustry", "RecommendedIndustryX", "issues_found"}
	if got := sel.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths = %v, want %v", got, want)
	}
}

func TestSelectionCovered(t *testing.T) {
	sel := Selection{"issues_found": true}
	if !sel.Covered("issues_found[0].code") {
		t.Error("descendant should be covered by selected parent")
	}
	if sel.Covered("RecommendedIndustry") {
		t.Error("unrelated path should not be covered")
	}
}

func TestSelectionPrune(t *testing.T) {
	sel := Selection{
		"RecommendedIndustry.primary_industry": true,
		"gone":                                 true,
		"issues_found":                         false,
	}
	if n := sel.Prune(kybResults()); n != 2 {
		t.Errorf("Prune removed %d, want 2", n)
	}
	if len(sel) != 1 || !sel["RecommendedIndustry.primary_industry"] {
		t.Errorf("after prune: %v", sel)
	}
}

func TestEditorDraftAndCommit(t *testing.T) {
	var published *Descriptor
	ed := NewEditor(Object(Prop("name", String())), func(d *Descriptor) { published = d })

	key, err := ed.AddProperty("")
	if err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	if err := ed.RenameProperty("", key, "name"); err != nil {
		t.Fatalf("RenameProperty: %v", err)
	}
	if !ed.Dirty() {
		t.Error("expected dirty draft")
	}

	err = ed.Commit()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Commit err = %v, want ValidationError", err)
	}
	if published != nil {
		t.Error("invalid draft must not be published")
	}
	if len(ed.Committed().Properties) != 1 {
		t.Error("committed value changed after failed commit")
	}

	if err := ed.RenameProperty("", "name", ""); err != nil {
		t.Fatalf("RenameProperty: %v", err)
	}
	if err := ed.Commit(); err == nil {
		t.Fatal("expected empty key to fail commit")
	}

	if err := ed.RenameProperty("", "", "address"); err != nil {
		t.Fatalf("RenameProperty: %v", err)
	}
	if err := ed.SetType("", "address", TypeNameObject); err != nil {
		t.Fatalf("SetType: %v", err)
	}
	if _, err := ed.AddProperty("address"); err != nil {
		t.Fatalf("AddProperty nested: %v", err)
	}
	if err := ed.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if published == nil || !published.Equal(ed.Committed()) {
		t.Fatal("commit callback did not receive committed value")
	}
	if got := published.Keys(); !reflect.DeepEqual(got, []string{"address", "name"}) {
		t.Errorf("Keys = %v", got)
	}
}

func TestEditorReset(t *testing.T) {
	ed := NewEditor(nil, nil)
	if _, err := ed.AddProperty(""); err != nil {
		t.Fatal(err)
	}
	ed.Reset()
	if ed.Dirty() {
		t.Error("Reset should discard the draft")
	}
}

func TestEditorSetTypeArray(t *testing.T) {
	ed := NewEditor(Object(Prop("tags", String())), nil)
	if err := ed.SetType("", "tags", TypeNameArray); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetItemType("tags", TypeNameNumber); err != nil {
		t.Fatal(err)
	}
	tags, _ := ed.Draft().Get("tags")
	if tags.Kind != KindArray || tags.Items.Type != TypeNumber {
		t.Errorf("tags = %+v", tags)
	}
	if err := ed.SetItemType("missing", TypeNameNumber); err == nil {
		t.Error("expected error for non-array path")
	}
}

func TestValidateUnknownPrimitive(t *testing.T) {
	d, err := Parse([]byte(`{"when":"date"}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(d); err == nil {
		t.Error("expected unknown primitive to fail validation")
	}
}

func TestValidateSample(t *testing.T) {
	d := kybResults()

	if err := ValidateSample(d, []byte(`{"RecommendedIndustry":{"primary_industry":"fintech","confidence_score":0.8}}`)); err != nil {
		t.Errorf("valid sample rejected: %v", err)
	}

	err := ValidateSample(d, []byte(`{"RecommendedIndustry":{"confidence_score":"high"}}`))
	var serr *SampleError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SampleError", err)
	}

	if err := ValidateSample(d, []byte(`{not json`)); err == nil {
		t.Error("expected malformed sample to fail")
	}
}
