package variables

import "testing"

func TestOSBuiltinsLookupCaseInsensitive(t *testing.T) {
	b := &OSBuiltins{}
	if _, ok := b.Lookup("privileged"); !ok {
		t.Fatalf("expected lowercase lookup to match Privileged")
	}
	if _, ok := b.Lookup("PRIVILEGED"); !ok {
		t.Fatalf("expected uppercase lookup to match Privileged")
	}
	if _, ok := b.Lookup("NotARealBuiltin"); ok {
		t.Fatalf("expected unknown name to miss")
	}
}

func TestOSBuiltinsOverrides(t *testing.T) {
	b := &OSBuiltins{Overrides: map[string]Value{"WixBundleName": String("chainburn")}}
	v, ok := b.Lookup("wixbundlename")
	if !ok || v.AsString() != "chainburn" {
		t.Fatalf("expected override lookup to match case-insensitively, got %v %v", v, ok)
	}
	names := b.Names()
	found := false
	for _, n := range names {
		if n == "WixBundleName" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Names() to include override name")
	}
}

func TestOSBuiltinsComputedTypes(t *testing.T) {
	b := &OSBuiltins{}
	priv, _ := b.Lookup("Privileged")
	if priv.Type != TypeNumeric {
		t.Fatalf("expected Privileged to be numeric, got %v", priv.Type)
	}
	tmp, _ := b.Lookup("TempFolder")
	if tmp.Type != TypeString {
		t.Fatalf("expected TempFolder to be string, got %v", tmp.Type)
	}
	vernt, _ := b.Lookup("VersionNT")
	if vernt.Type != TypeVersion {
		t.Fatalf("expected VersionNT to be version, got %v", vernt.Type)
	}
}
