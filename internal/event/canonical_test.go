package event

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"mango": int64(3),
	})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	want := `{"alpha":2,"mango":3,"zebra":1}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalCanonical_NestedObjects(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"outer": map[string]any{
			"b": "two",
			"a": "one",
		},
		"list": []any{int64(1), "x", true, nil},
	})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	want := `{"list":[1,"x",true,null],"outer":{"a":"one","b":"two"}}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"cmd": "a < b && c > d"})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	want := `{"cmd":"a < b && c > d"}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalCanonical_NumberLiteralPreserved(t *testing.T) {
	// Large integers beyond 2^53 must survive decode/encode untouched.
	src := []byte(`{"big":9007199254740993,"small":-1,"frac":0.25}`)
	m, err := DecodeJSON(src)
	if err != nil {
		t.Fatalf("DecodeJSON() failed: %v", err)
	}
	got, err := MarshalCanonical(m)
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	want := `{"big":9007199254740993,"frac":0.25,"small":-1}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMarshalCanonical_RoundTripStable(t *testing.T) {
	src := []byte(`{"a":{"z":[1,2,3],"y":"text"},"b":null,"c":true}`)
	m, err := DecodeJSON(src)
	if err != nil {
		t.Fatalf("DecodeJSON() failed: %v", err)
	}
	first, err := MarshalCanonical(m)
	if err != nil {
		t.Fatalf("first MarshalCanonical() failed: %v", err)
	}

	m2, err := DecodeJSON(first)
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	second, err := MarshalCanonical(m2)
	if err != nil {
		t.Fatalf("second MarshalCanonical() failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("round trip not stable:\n first: %s\nsecond: %s", first, second)
	}
}

func TestMarshalCanonical_OutputIsValidJSON(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"text":  "line1\nline2\ttabbed \"quoted\"",
		"path":  `C:\temp\file`,
		"caps":  []string{"apply", "dry_run"},
		"count": 42,
	})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	var v any
	if err := json.Unmarshal(got, &v); err != nil {
		t.Errorf("output is not valid JSON: %v\n%s", err, got)
	}
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	if _, err := MarshalCanonical(map[string]any{"bad": math.Inf(1)}); err == nil {
		t.Error("expected error for +Inf, got nil")
	}
	if _, err := MarshalCanonical(map[string]any{"bad": math.NaN()}); err == nil {
		t.Error("expected error for NaN, got nil")
	}
}

func TestMarshalCanonical_UnsupportedType(t *testing.T) {
	type opaque struct{ X int }
	if _, err := MarshalCanonical(map[string]any{"v": opaque{1}}); err == nil {
		t.Error("expected error for unsupported type, got nil")
	}
}
