package store

import "testing"

func TestCloneDetachesNestedStructures(t *testing.T) {
	type inner struct {
		Tags []string
	}
	type outer struct {
		Name   string
		Nested *inner
		Lookup map[string]int
	}

	original := outer{
		Name:   "original",
		Nested: &inner{Tags: []string{"a", "b"}},
		Lookup: map[string]int{"x": 1},
	}

	cloned := Clone(original)
	cloned.Nested.Tags[0] = "mutated"
	cloned.Lookup["x"] = 99

	if original.Nested.Tags[0] != "a" {
		t.Fatal("expected nested slice to be detached")
	}
	if original.Lookup["x"] != 1 {
		t.Fatal("expected map to be detached")
	}
	if cloned.Name != "original" {
		t.Fatalf("expected copied scalar, got %q", cloned.Name)
	}
}

func TestCloneHandlesNilAndZeroValues(t *testing.T) {
	if got := Clone[*int](nil); got != nil {
		t.Fatalf("expected nil pointer, got %v", got)
	}
	if got := Clone[map[string]int](nil); got != nil {
		t.Fatalf("expected nil map, got %v", got)
	}
	if got := Clone(0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := Clone("text"); got != "text" {
		t.Fatalf("expected text, got %v", got)
	}
}

func TestCloneSnapshot(t *testing.T) {
	snapshot := Snapshot{
		"counter": 3,
		"todos":   []string{"one"},
	}
	cloned := Clone(snapshot)
	if sameSnapshot(snapshot, cloned) {
		t.Fatal("expected a new snapshot allocation")
	}
	cloned["counter"] = 99
	if snapshot["counter"] != 3 {
		t.Fatal("expected the original to stay untouched")
	}
	items := cloned["todos"].([]string)
	items[0] = "mutated"
	if snapshot["todos"].([]string)[0] != "one" {
		t.Fatal("expected nested slices to be detached")
	}
}
