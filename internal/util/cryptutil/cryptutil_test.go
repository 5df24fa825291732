package cryptutil

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	box := New("test-secret")
	for _, text := range []string{
		"hello",
		"with:separator:inside",
		":leading",
		"trailing:",
		"unicode ☕ text",
		strings.Repeat("x", 500),
	} {
		enc := box.Encrypt(text)
		if enc == text {
			t.Fatalf("expected ciphertext for %q", text)
		}
		if !strings.Contains(enc, ":") {
			t.Fatalf("missing separator in %q", enc)
		}
		if got := box.Decrypt(enc); got != text {
			t.Fatalf("round trip: got %q want %q", got, text)
		}
	}
}

func TestEmptyPassthrough(t *testing.T) {
	box := New("test-secret")
	if box.Encrypt("") != "" || box.Decrypt("") != "" {
		t.Fatal("empty input must pass through")
	}
}

func TestLegacyPlaintextPassthrough(t *testing.T) {
	box := New("test-secret")
	// No separator: treated as a legacy unencrypted row.
	if got := box.Decrypt("plain old message"); got != "plain old message" {
		t.Fatalf("got %q", got)
	}
}

func TestMalformedCiphertextReturnsInput(t *testing.T) {
	box := New("test-secret")
	for _, raw := range []string{
		"nothex:nothex",
		"abcd:abcd", // iv too short
		"00000000000000000000000000000000:zz",
	} {
		if got := box.Decrypt(raw); got != raw {
			t.Fatalf("malformed input must pass through, got %q for %q", got, raw)
		}
	}
}

func TestDifferentKeysDoNotDecrypt(t *testing.T) {
	a := New("key-a")
	b := New("key-b")
	enc := a.Encrypt("secret text")
	if got := b.Decrypt(enc); got == "secret text" {
		t.Fatal("wrong key must not decrypt")
	}
}

func TestRandomIV(t *testing.T) {
	box := New("test-secret")
	if box.Encrypt("same") == box.Encrypt("same") {
		t.Fatal("two encryptions of the same text must differ")
	}
}
