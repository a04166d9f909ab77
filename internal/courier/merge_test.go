package courier

import (
	"reflect"
	"testing"
)

func TestMergeRightBias(t *testing.T) {
	dst := map[string]any{"a": 1.0, "b": "left"}
	src := map[string]any{"b": "right", "c": true}

	got := Merge(dst, src)

	want := map[string]any{"a": 1.0, "b": "right", "c": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}
}

func TestMergeRecursesIntoObjects(t *testing.T) {
	dst := map[string]any{
		"entities": map[string]any{
			"Q1": map[string]any{"id": "Q1"},
		},
	}
	src := map[string]any{
		"entities": map[string]any{
			"Q2": map[string]any{"id": "Q2"},
		},
	}

	got := Merge(dst, src)

	entities := got["entities"].(map[string]any)
	if len(entities) != 2 {
		t.Errorf("entities has %d keys, want 2: %v", len(entities), entities)
	}
}

func TestMergeReplacesArraysWholesale(t *testing.T) {
	dst := map[string]any{"list": []any{1.0, 2.0}}
	src := map[string]any{"list": []any{3.0}}

	got := Merge(dst, src)

	want := []any{3.0}
	if !reflect.DeepEqual(got["list"], want) {
		t.Errorf("list = %v, want %v (replaced, not concatenated)", got["list"], want)
	}
}

func TestMergeObjectOverScalar(t *testing.T) {
	dst := map[string]any{"k": "scalar"}
	src := map[string]any{"k": map[string]any{"nested": true}}

	got := Merge(dst, src)

	if _, ok := got["k"].(map[string]any); !ok {
		t.Errorf("k = %v, want src object to win", got["k"])
	}
}
