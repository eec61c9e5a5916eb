package bookmark

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistry_RoundTrip(t *testing.T) {
	r := NewRegistry()

	if err := r.PushInto(1, "AAAAAAAAAA"); err != nil {
		t.Fatalf("PushInto() error = %v", err)
	}
	if !r.Has(1) || !r.Contain("AAAAAAAAAA") {
		t.Fatal("pushed highlight is not visible")
	}
	if mark, ok := r.GetKey("AAAAAAAAAA"); !ok || mark != 1 {
		t.Errorf("GetKey() = %d, %v", mark, ok)
	}

	r.Delete(1)
	if r.Has(1) || r.Contain("AAAAAAAAAA") {
		t.Error("deleted mark is still visible")
	}
	if _, ok := r.GetKey("AAAAAAAAAA"); ok {
		t.Error("GetKey() must fail after delete")
	}
	if err := r.Check(); err != nil {
		t.Errorf("Check() error = %v", err)
	}
}

func TestRegistry_Order(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"C", "A", "B"} {
		if err := r.PushInto(5, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.PushInto(2, "D"); err != nil {
		t.Fatal(err)
	}

	if got := r.Get(5); !reflect.DeepEqual(got, []string{"C", "A", "B"}) {
		t.Errorf("Get(5) = %v, want render order", got)
	}
	if got := r.Marks(); !reflect.DeepEqual(got, []MarkID{2, 5}) {
		t.Errorf("Marks() = %v", got)
	}
	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}

	// returned list is a copy
	r.Get(5)[0] = "X"
	if r.Get(5)[0] != "C" {
		t.Error("Get() exposes internal state")
	}

	r.Clear()
	if r.Len() != 0 || len(r.Marks()) != 0 || r.Contain("D") {
		t.Error("Clear() left entries behind")
	}
}

func TestRegistry_NoAliases(t *testing.T) {
	r := NewRegistry()
	if err := r.PushInto(1, "SAME"); err != nil {
		t.Fatal(err)
	}

	for _, mark := range []MarkID{2, 1} {
		err := r.PushInto(mark, "SAME")
		var cerr *RegistryConsistencyError
		if !errors.As(err, &cerr) {
			t.Fatalf("PushInto(%d) error = %v, want RegistryConsistencyError", mark, err)
		}
		if cerr.HighlightID != "SAME" {
			t.Errorf("error does not name highlight: %v", cerr)
		}
	}
	if mark, _ := r.GetKey("SAME"); mark != 1 {
		t.Errorf("highlight owner changed to %d", mark)
	}
	if got := r.Get(1); len(got) != 1 {
		t.Errorf("Get(1) = %v", got)
	}
}

func TestRegistry_Sequences(t *testing.T) {
	r := NewRegistry()
	ops := []struct {
		push   bool
		mark   MarkID
		id     string
		exists bool
	}{
		{true, 1, "a", true},
		{true, 2, "b", true},
		{true, 1, "c", true},
		{false, 1, "a", false},
		{true, 3, "a", true},
		{false, 2, "b", false},
		{true, 2, "b", true},
	}
	for i, op := range ops {
		if op.push {
			if err := r.PushInto(op.mark, op.id); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		} else {
			r.Delete(op.mark)
		}
		if r.Contain(op.id) != op.exists {
			t.Fatalf("step %d: Contain(%q) = %v", i, op.id, !op.exists)
		}
		if err := r.Check(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := r.Marks(); !reflect.DeepEqual(got, []MarkID{2, 3}) {
		t.Errorf("Marks() = %v", got)
	}
}
