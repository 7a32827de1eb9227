package executor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeFlat_CopiesTopLevelFields(t *testing.T) {
	target := map[string]interface{}{"id": "1"}
	mergeFlat(target, map[string]interface{}{"name": "widget"})
	want := map[string]interface{}{"id": "1", "name": "widget"}
	if diff := cmp.Diff(want, target); diff != "" {
		t.Fatalf("mergeFlat mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeFlat_OverwritesExistingKeys(t *testing.T) {
	target := map[string]interface{}{"reviewCount": 0}
	mergeFlat(target, map[string]interface{}{"reviewCount": 3})
	want := map[string]interface{}{"reviewCount": 3}
	if diff := cmp.Diff(want, target); diff != "" {
		t.Fatalf("mergeFlat mismatch (-want +got):\n%s", diff)
	}
}

func TestNavigate_FlattensThroughLists(t *testing.T) {
	data := map[string]interface{}{
		"products": []interface{}{
			map[string]interface{}{"id": "1", "reviews": []interface{}{
				map[string]interface{}{"id": "r1"},
				map[string]interface{}{"id": "r2"},
			}},
			map[string]interface{}{"id": "2", "reviews": []interface{}{
				map[string]interface{}{"id": "r3"},
			}},
		},
	}

	got := navigate(data, []string{"products", "reviews"})
	if len(got) != 3 {
		t.Fatalf("expected 3 nodes, got %d: %v", len(got), got)
	}
	ids := map[string]bool{}
	for _, n := range got {
		ids[n["id"].(string)] = true
	}
	for _, want := range []string{"r1", "r2", "r3"} {
		if !ids[want] {
			t.Fatalf("missing review %q in %v", want, got)
		}
	}
}

func TestNavigate_EmptyPathReturnsRootItself(t *testing.T) {
	data := map[string]interface{}{"a": 1}
	got := navigate(data, nil)
	if len(got) != 1 || !cmp.Equal(got[0], data) {
		t.Fatalf("expected root itself, got %v", got)
	}
}
