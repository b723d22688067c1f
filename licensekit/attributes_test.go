package licensekit

import (
	"errors"
	"testing"
)

func TestParseAttributeText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want AttributeMap
	}{
		{
			name: "empty input",
			text: "",
			want: AttributeMap{},
		},
		{
			name: "whitespace only",
			text: "  \n\t\n  ",
			want: AttributeMap{},
		},
		{
			name: "simple pairs",
			text: "Key1=Value1\nKey2=Value2",
			want: AttributeMap{"Key1": "Value1", "Key2": "Value2"},
		},
		{
			name: "trims whitespace around keys and values",
			text: "  Key1 = Value1  \n\tKey2=Value2\t",
			want: AttributeMap{"Key1": "Value1", "Key2": "Value2"},
		},
		{
			name: "empty value kept",
			text: "Key1= \nKey2=Value\nEmptyValue",
			want: AttributeMap{"Key1": "", "Key2": "Value", "EmptyValue": ""},
		},
		{
			name: "line starting with equals is skipped",
			text: "=Value\nKey=Other",
			want: AttributeMap{"Key": "Other"},
		},
		{
			name: "only first equals splits",
			text: "Key=a=b=c",
			want: AttributeMap{"Key": "a=b=c"},
		},
		{
			name: "later duplicates win",
			text: "Key=first\nKey=second",
			want: AttributeMap{"Key": "second"},
		},
		{
			name: "blank lines skipped",
			text: "Key1=Value1\n\n\nKey2=Value2",
			want: AttributeMap{"Key1": "Value1", "Key2": "Value2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAttributeText(tt.text)
			if !got.Equal(tt.want) {
				t.Errorf("ParseAttributeText(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAttributeMap_Get(t *testing.T) {
	m := AttributeMap{"Edition": "Pro"}

	v, err := m.Get("Edition")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "Pro" {
		t.Errorf("expected Pro, got %s", v)
	}

	if _, err := m.Get("Missing"); !errors.Is(err, ErrAttributeNotFound) {
		t.Errorf("expected ErrAttributeNotFound, got %v", err)
	}
}

func TestAttributeMap_Clone(t *testing.T) {
	m := AttributeMap{"Edition": "Pro"}
	c := m.Clone()
	c["Edition"] = "Trial"

	if m["Edition"] != "Pro" {
		t.Error("mutation of clone leaked into original")
	}

	var nilMap AttributeMap
	c = nilMap.Clone()
	if c == nil {
		t.Error("clone of nil map should be non-nil")
	}
}

func TestAttributeMap_Equal(t *testing.T) {
	a := AttributeMap{"K1": "V1", "K2": ""}
	b := AttributeMap{"K2": "", "K1": "V1"}
	if !a.Equal(b) {
		t.Error("order-independent maps should be equal")
	}

	b["K2"] = "x"
	if a.Equal(b) {
		t.Error("maps with differing values should not be equal")
	}

	if a.Equal(AttributeMap{"K1": "V1"}) {
		t.Error("maps with differing sizes should not be equal")
	}
}

func TestReservedNames(t *testing.T) {
	for _, name := range []string{FeatureNameProduct, FeatureNameVersion, FeatureNamePublishDate} {
		if !IsReservedFeatureName(name) {
			t.Errorf("%q should be a reserved feature name", name)
		}
	}
	for _, name := range []string{AttributeNameProductIdentity, AttributeNameAssemblyIdentity, AttributeNameExpirationDays} {
		if !IsReservedAttributeName(name) {
			t.Errorf("%q should be a reserved attribute name", name)
		}
	}

	// Matching is exact and case-sensitive.
	if IsReservedFeatureName("product") {
		t.Error("reserved feature match should be case-sensitive")
	}
	if IsReservedAttributeName("Product") {
		t.Error("feature names are not attribute names")
	}
}
