package object

import "testing"

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("Z", Integer(1))
	d.Set("A", Integer(2))
	d.Set("M", Integer(3))
	want := []Name{"Z", "A", "M"}
	got := d.Keys()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDictGetAbsentReturnsNull(t *testing.T) {
	d := NewDict()
	if _, isNull := d.Get("Missing").(Null); !isNull {
		t.Fatalf("expected Null for absent key")
	}
}

func TestDictRemovePreservesOrder(t *testing.T) {
	d := NewDict()
	d.Set("A", Integer(1))
	d.Set("B", Integer(2))
	d.Set("C", Integer(3))
	d.Remove("B")
	want := []Name{"A", "C"}
	got := d.Keys()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDictCloneIsShallow(t *testing.T) {
	inner := NewArray(Integer(1))
	d := NewDict()
	d.Set("A", inner)
	clone := d.Clone().(*Dict)
	clone.Set("B", Integer(2))
	if _, ok := d.Lookup("B"); ok {
		t.Fatalf("mutating clone's top level leaked into original")
	}
	inner.Push(Integer(2))
	if clone.Get("A").(*Array).Size() != 2 {
		t.Fatalf("shallow clone should share child Array")
	}
}

func TestArrayInsertEraseGetSet(t *testing.T) {
	a := NewArray(Integer(1), Integer(2), Integer(3))
	a.Insert(1, Integer(99))
	if a.Get(1).(Integer) != 99 || a.Size() != 4 {
		t.Fatalf("insert failed: %v", a.Items())
	}
	a.Erase(0)
	if a.Get(0).(Integer) != 99 || a.Size() != 3 {
		t.Fatalf("erase failed: %v", a.Items())
	}
	a.Set(0, Integer(7))
	if a.Get(0).(Integer) != 7 {
		t.Fatalf("set failed: %v", a.Items())
	}
}

func TestNamePDFStringEscapesSpecialBytes(t *testing.T) {
	n := Name("A#B C")
	got := n.PDFString()
	want := "/A#23B#20C"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStringTextUTF16BEBOM(t *testing.T) {
	raw := []byte{0xFE, 0xFF, 0x00, 0x41, 0x00, 0x42}
	s := String{Raw: raw}
	if s.Text() != "AB" {
		t.Fatalf("got %q", s.Text())
	}
}

func TestStringTextPlainASCII(t *testing.T) {
	s := String{Raw: []byte("hello")}
	if s.Text() != "hello" {
		t.Fatalf("got %q", s.Text())
	}
}

func TestNewTextStringRoundTrip(t *testing.T) {
	s := NewTextString("héllo")
	if s.Text() != "héllo" {
		t.Fatalf("got %q", s.Text())
	}
}

func TestMergeResourcesSameReferenceDeduplicates(t *testing.T) {
	self := NewDict()
	selfFonts := NewDict()
	selfFonts.Set("F1", NewReference(10, 0))
	self.Set("Font", selfFonts)

	other := NewDict()
	otherFonts := NewDict()
	otherFonts.Set("F1", NewReference(10, 0)) // same target
	other.Set("Font", otherFonts)

	renames := MergeResources(self, other)
	if len(renames) != 0 {
		t.Fatalf("expected no renames for identical references, got %v", renames)
	}
}

func TestMergeResourcesCollisionRenames(t *testing.T) {
	self := NewDict()
	selfFonts := NewDict()
	selfFonts.Set("F1", NewReference(10, 0))
	self.Set("Font", selfFonts)

	other := NewDict()
	otherFonts := NewDict()
	otherFonts.Set("F1", NewReference(20, 0)) // different target, same name
	other.Set("Font", otherFonts)

	renames := MergeResources(self, other)
	newName, ok := renames["Font"]["F1"]
	if !ok {
		t.Fatalf("expected a rename entry for colliding F1, got %v", renames)
	}
	merged := self.Get("Font").(*Dict)
	if got := merged.Get(newName); got.(Reference) != NewReference(20, 0) {
		t.Fatalf("renamed key does not point at other's object: %v", got)
	}
}

func TestMakeDirectResolvesAndDetectsCycles(t *testing.T) {
	store := map[ObjGen]Object{}
	resolve := func(og ObjGen) (Object, bool) {
		v, ok := store[og]
		return v, ok
	}

	leaf := NewDict()
	leaf.Set("V", Integer(42))
	store[ObjGen{Num: 2, Gen: 0}] = leaf

	root := NewDict()
	root.Set("Child", NewReference(2, 0))
	store[ObjGen{Num: 1, Gen: 0}] = root

	direct, err := MakeDirect(NewReference(1, 0), resolve, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := direct.(*Dict).Get("Child").(*Dict).Get("V")
	if got.(Integer) != 42 {
		t.Fatalf("got %v", got)
	}

	// Now introduce a cycle: 1 -> 2 -> 1
	store[ObjGen{Num: 2, Gen: 0}].(*Dict).Set("Back", NewReference(1, 0))
	_, err = MakeDirect(NewReference(1, 0), resolve, false)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
}
