package api

import (
	"encoding/json"
	"testing"
)

func TestFormFieldsRoundTripPreservesOrder(t *testing.T) {
	raw := `{"key":"u/d/f.pdf","Content-Type":"application/pdf","x-amz-meta-user":"u1","policy":"abc","signature":"sig"}`

	var fields FormFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	wantOrder := []string{"key", "Content-Type", "x-amz-meta-user", "policy", "signature"}
	if len(fields) != len(wantOrder) {
		t.Fatalf("got %d fields, want %d", len(fields), len(wantOrder))
	}
	for i, name := range wantOrder {
		if fields[i].Name != name {
			t.Errorf("field %d = %s, want %s", i, fields[i].Name, name)
		}
	}

	out, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != raw {
		t.Errorf("round trip changed the payload:\n got %s\nwant %s", out, raw)
	}
}

func TestFormFieldsGet(t *testing.T) {
	fields := FormFields{{Name: "key", Value: "a/b"}, {Name: "policy", Value: "p"}}
	if v, ok := fields.Get("policy"); !ok || v != "p" {
		t.Errorf("Get(policy) = %q, %v", v, ok)
	}
	if _, ok := fields.Get("missing"); ok {
		t.Error("Get(missing) should report absence")
	}
}

func TestFormFieldsRejectsNonObject(t *testing.T) {
	var fields FormFields
	if err := json.Unmarshal([]byte(`["a","b"]`), &fields); err == nil {
		t.Fatal("expected an error for a JSON array")
	}
}
