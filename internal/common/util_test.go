package common

import (
	"encoding/hex"
	"testing"
)

// ---------- MakeRandHexString ----------

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 40
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestMakeRandHexString_Distinct(t *testing.T) {
	a, _ := MakeRandHexString(32)
	b, _ := MakeRandHexString(32)
	if a == b {
		t.Fatalf("two random strings are identical: %s", a)
	}
}

// ---------- HashToken ----------

func TestHashToken_StableAndHex(t *testing.T) {
	a := HashToken("refresh-token")
	b := HashToken("refresh-token")
	if a != b {
		t.Fatalf("hash must be deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if HashToken("other") == a {
		t.Fatal("different inputs must hash differently")
	}
}

// ---------- NormalizeEmail / EmailLocalPart ----------

func TestNormalizeEmail(t *testing.T) {
	tests := map[string]string{
		"  A@X.com ":      "a@x.com",
		"bob@Example.org": "bob@example.org",
		"":                "",
	}
	for in, want := range tests {
		if got := NormalizeEmail(in); got != want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmailLocalPart(t *testing.T) {
	if got := EmailLocalPart("alice@x.com"); got != "alice" {
		t.Fatalf("got %q", got)
	}
	if got := EmailLocalPart("no-at-sign"); got != "no-at-sign" {
		t.Fatalf("got %q", got)
	}
}

// ---------- WipeByteArray ----------

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}
