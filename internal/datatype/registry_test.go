package datatype

import (
	"errors"
	"testing"
)

func TestBuiltinRegistry(t *testing.T) {
	r := Builtin()
	want := []string{"boolean", "fraction", "severity-counts", "test-summary", "threshold-number", "threshold-percentage"}
	types := r.Types()
	if len(types) != len(want) {
		t.Fatalf("Types() len=%d, want %d", len(types), len(want))
	}
	for i, dt := range types {
		if dt.ID() != want[i] {
			t.Fatalf("Types()[%d]=%q, want %q", i, dt.ID(), want[i])
		}
		resolved, err := r.Resolve(dt.ID())
		if err != nil || resolved.ID() != dt.ID() {
			t.Fatalf("Resolve(%q) err=%v", dt.ID(), err)
		}
	}
	if Builtin() != r {
		t.Fatalf("Builtin() should be built once")
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Builtin().Resolve("sonar-measures")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.TypeID != "sonar-measures" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

type renamedType struct {
	DataType
	id string
}

func (r renamedType) ID() string { return r.id }

func TestNewRegistryRejectsPaddedIDs(t *testing.T) {
	for _, id := range []string{" boolean", "boolean\t", "  "} {
		if _, err := NewRegistry(renamedType{DataType: Erase(BooleanType()), id: id}); err == nil {
			t.Fatalf("NewRegistry(%q) expected error", id)
		}
	}
	r, err := NewRegistry(renamedType{DataType: Erase(BooleanType()), id: "flag"})
	if err != nil {
		t.Fatalf("NewRegistry() err=%v", err)
	}
	dt, err := r.Resolve(" flag ")
	if err != nil || dt.ID() != "flag" {
		t.Fatalf("Resolve() should trim lookups, got %v err=%v", dt, err)
	}
	for _, dt := range r.Types() {
		if got, err := r.Resolve(dt.ID()); err != nil || got.ID() != dt.ID() {
			t.Fatalf("Resolve(%q) should round-trip, err=%v", dt.ID(), err)
		}
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(Erase(BooleanType()), Erase(BooleanType())); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Fatalf("expected nil type error")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("MustNewRegistry should panic on duplicates")
		}
	}()
	MustNewRegistry(Erase(FractionType()), Erase(FractionType()))
}
