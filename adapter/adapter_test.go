package adapter

import (
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/candanumut/shs"
)

func withTempAdapter(t *testing.T) *Adapter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.shs")
	store, err := shs.Open(path, KeySize)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	a := New(store)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestPutGetRawBytes(t *testing.T) {
	a := withTempAdapter(t)

	if err := a.Put("selector-1", []byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, ok, err := a.Get("selector-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if len(value) != 3 || value[0] != 0x01 || value[1] != 0x02 || value[2] != 0x03 {
		t.Fatalf("got %v, want [1 2 3]", value)
	}
}

func TestPutGetUTF8String(t *testing.T) {
	a := withTempAdapter(t)

	if err := a.Put("greeting", "hello world"); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, ok, err := a.Get("greeting")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || string(value) != "hello world" {
		t.Fatalf("got (%q, %v), want (\"hello world\", true)", value, ok)
	}
}

func TestPutGetBase64String(t *testing.T) {
	a := withTempAdapter(t)

	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	encoded := base64.StdEncoding.EncodeToString(raw)

	if err := a.Put("blob", encoded); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, ok, err := a.Get("blob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || len(value) != 4 {
		t.Fatalf("got %v, want 4 decoded bytes", value)
	}
	for i, b := range raw {
		if value[i] != b {
			t.Fatalf("byte %d: got %x, want %x", i, value[i], b)
		}
	}
}

func TestDifferentSelectorsDoNotCollide(t *testing.T) {
	a := withTempAdapter(t)

	if err := a.Put("a", "value-a"); err != nil {
		t.Fatal(err)
	}
	if err := a.Put("b", "value-b"); err != nil {
		t.Fatal(err)
	}

	va, _, err := a.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	vb, _, err := a.Get("b")
	if err != nil {
		t.Fatal(err)
	}
	if string(va) != "value-a" || string(vb) != "value-b" {
		t.Fatalf("got (%q, %q), want (\"value-a\", \"value-b\")", va, vb)
	}
}

func TestGetAbsentSelector(t *testing.T) {
	a := withTempAdapter(t)

	_, ok, err := a.Get("missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestPutRejectsUnsupportedType(t *testing.T) {
	a := withTempAdapter(t)

	err := a.Put("bad", 42)
	if err == nil {
		t.Fatal("expected error for unsupported value type")
	}
	if _, ok := err.(*UnsupportedValueError); !ok {
		t.Fatalf("got %T, want *UnsupportedValueError", err)
	}
}
