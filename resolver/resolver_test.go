package resolver

import (
	"testing"

	"github.com/tsawler/pdfprobe/core"
)

type mapSource map[core.IndirectRef]core.Object

func (m mapSource) Resolve(ref core.IndirectRef) (core.Object, error) {
	if obj, ok := m[ref]; ok {
		return obj, nil
	}
	return core.Null{}, nil
}

func ref(num int) core.IndirectRef {
	return core.IndirectRef{Number: num, Generation: 0}
}

func TestResolveDirect(t *testing.T) {
	r := New(mapSource{})
	obj, err := r.Resolve(core.Int(42))
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := obj.(core.Int); !ok || n != 42 {
		t.Errorf("Resolve(42) = %v", obj)
	}
}

func TestResolveChain(t *testing.T) {
	source := mapSource{
		ref(1): ref(2),
		ref(2): ref(3),
		ref(3): core.String("end"),
	}
	r := New(source)
	obj, err := r.Resolve(ref(1))
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := obj.(core.String); !ok || string(s) != "end" {
		t.Errorf("Resolve(chain) = %v, want (end)", obj)
	}
}

func TestResolveLoopYieldsNull(t *testing.T) {
	source := mapSource{
		ref(1): ref(2),
		ref(2): ref(1),
	}
	r := New(source)
	obj, err := r.Resolve(ref(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := obj.(core.Null); !ok {
		t.Errorf("Resolve(loop) = %v, want null", obj)
	}
}

func TestResolveUnknownYieldsNull(t *testing.T) {
	r := New(mapSource{})
	obj, err := r.Resolve(ref(99))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := obj.(core.Null); !ok {
		t.Errorf("Resolve(unknown) = %v, want null", obj)
	}
}

func TestResolveDeep(t *testing.T) {
	source := mapSource{
		ref(1): core.Dict{
			"Kids":  core.Array{ref(2), ref(3)},
			"Count": core.Int(2),
		},
		ref(2): core.Dict{"Type": core.Name("Page")},
		ref(3): core.String("leaf"),
	}
	r := New(source)
	obj, err := r.ResolveDeep(ref(1))
	if err != nil {
		t.Fatal(err)
	}
	dict, ok := obj.(core.Dict)
	if !ok {
		t.Fatalf("ResolveDeep = %T, want Dict", obj)
	}
	kids, _ := dict.GetArray("Kids")
	if len(kids) != 2 {
		t.Fatalf("Kids = %v", kids)
	}
	if kid, ok := kids[0].(core.Dict); !ok {
		t.Errorf("kid 0 = %T, want resolved Dict", kids[0])
	} else if typ, _ := kid.GetName("Type"); typ != "Page" {
		t.Errorf("kid 0 Type = %q", typ)
	}
	if s, ok := kids[1].(core.String); !ok || string(s) != "leaf" {
		t.Errorf("kid 1 = %v", kids[1])
	}
}

func TestResolveDeepCycle(t *testing.T) {
	// A dictionary that references itself through an array. The
	// cycle point resolves to null; the rest survives.
	source := mapSource{}
	source[ref(1)] = core.Dict{
		"Self":  ref(1),
		"Value": core.Int(7),
	}
	r := New(source)
	obj, err := r.ResolveDeep(ref(1))
	if err != nil {
		t.Fatal(err)
	}
	dict := obj.(core.Dict)
	if _, ok := dict.Get("Self").(core.Null); !ok {
		t.Errorf("Self = %v, want null", dict.Get("Self"))
	}
	if n, _ := dict.GetInt("Value"); n != 7 {
		t.Errorf("Value = %d, want 7", n)
	}
}

func TestResolveDeepDepthBound(t *testing.T) {
	// Nested arrays deeper than the bound; resolution stops with
	// null rather than recursing away.
	deep := core.Object(core.Int(1))
	for i := 0; i < 50; i++ {
		deep = core.Array{deep}
	}
	r := New(mapSource{}, WithMaxDepth(10))
	obj, err := r.ResolveDeep(deep)
	if err != nil {
		t.Fatal(err)
	}
	// Containers at depth <= 10 survive; the object one level past
	// the bound is null.
	cur := obj
	for i := 0; i < 11; i++ {
		arr, ok := cur.(core.Array)
		if !ok {
			t.Fatalf("level %d = %T, want Array", i, cur)
		}
		cur = arr[0]
	}
	if _, ok := cur.(core.Null); !ok {
		t.Errorf("past depth bound = %T, want Null", cur)
	}
}
