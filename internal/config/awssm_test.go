package config

import "testing"

func TestSecretField(t *testing.T) {
	raw := `{"username":"sa","password":"p@ss"}`

	v, err := secretField(raw, "password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "p@ss" {
		t.Errorf("expected p@ss, got %q", v)
	}

	if _, err := secretField(raw, "host"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := secretField("not-json", "password"); err == nil {
		t.Error("expected error for non-JSON secret")
	}
}
