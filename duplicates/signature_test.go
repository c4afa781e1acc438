package duplicates

import (
	"reflect"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestBuildSignature_ResolutionOrder(t *testing.T) {
	cases := []struct {
		name     string
		item     ItemRow
		expected string
	}{
		{"catalog", ItemRow{ProductID: intPtr(1), DescriptionID: intPtr(2), ManualDescription: "ignored"}, "p:1|d:2"},
		{"manual", ItemRow{ProductID: intPtr(3), ManualDescription: "Hojas Tamaño Carta"}, "p:3|m:hojas tamano carta"},
		{"product only", ItemRow{ProductID: intPtr(4), ManualDescription: "  !! "}, "p:4"},
		{"manual text", ItemRow{ManualDescription: "Lápices"}, "t:lapices"},
		{"label text", ItemRow{Label: DisplayLabel("Grapas #10")}, "t:grapas 10"},
		{"unknown", ItemRow{}, "unknown"},
	}
	for _, tc := range cases {
		if got := BuildSignature(tc.item).Key(); got != tc.expected {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.expected, got)
		}
	}
}

func TestBuildSignature_IgnoresCaseAndAccents(t *testing.T) {
	a := BuildSignature(ItemRow{ProductID: intPtr(9), ManualDescription: "Papelería"})
	b := BuildSignature(ItemRow{ProductID: intPtr(9), ManualDescription: "PAPELERIA"})
	if a.Key() != b.Key() {
		t.Fatalf("expected equal signatures, got %q and %q", a.Key(), b.Key())
	}
}

func TestSignatureSet_DedupesAndKeepsOrder(t *testing.T) {
	set := NewSignatureSet([]ItemRow{
		{ProductID: intPtr(1), DescriptionID: intPtr(2)},
		{ProductID: intPtr(3)},
		{ProductID: intPtr(1), DescriptionID: intPtr(2)},
		{},
	})
	expected := []string{"p:1|d:2", "p:3", "unknown"}
	if !reflect.DeepEqual(set.Keys(), expected) {
		t.Fatalf("expected %v, got %v", expected, set.Keys())
	}
}

func TestSignatureSet_UnknownNeverIntersects(t *testing.T) {
	a := NewSignatureSet([]ItemRow{{}, {ProductID: intPtr(5)}})
	b := NewSignatureSet([]ItemRow{{}, {ProductID: intPtr(5)}})
	got := a.Intersect(b)
	if !reflect.DeepEqual(got, []string{"p:5"}) {
		t.Fatalf("expected only p:5 in intersection, got %v", got)
	}
}
