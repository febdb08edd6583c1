package storage

import (
	"bytes"
	"strings"
	"testing"
)

func TestContentHashDeterministic(t *testing.T) {
	payloads := [][]byte{
		nil,
		{},
		[]byte("hello"),
		bytes.Repeat([]byte{0xAB}, 1<<20),
	}

	for _, payload := range payloads {
		first, err := ContentHash(payload)
		if err != nil {
			t.Fatalf("ContentHash failed: %v", err)
		}
		second, err := ContentHash(payload)
		if err != nil {
			t.Fatalf("ContentHash failed: %v", err)
		}
		if first != second {
			t.Errorf("hash not deterministic for %d bytes: %s != %s", len(payload), first, second)
		}
		if !strings.HasPrefix(first, "baf") {
			t.Errorf("expected CIDv1 base32 string, got %s", first)
		}
	}
}

func TestContentHashDistinguishesContent(t *testing.T) {
	a, err := ContentHash([]byte("hello"))
	if err != nil {
		t.Fatalf("ContentHash failed: %v", err)
	}
	b, err := ContentHash([]byte("hello!"))
	if err != nil {
		t.Fatalf("ContentHash failed: %v", err)
	}
	if a == b {
		t.Error("different payloads produced identical hashes")
	}
}

func TestVerifyContent(t *testing.T) {
	payload := []byte("some payload bytes")
	hash, err := ContentHash(payload)
	if err != nil {
		t.Fatalf("ContentHash failed: %v", err)
	}

	if err := VerifyContent(hash, payload); err != nil {
		t.Errorf("verification of matching payload failed: %v", err)
	}

	if err := VerifyContent(hash, []byte("tampered payload")); err == nil {
		t.Error("verification of tampered payload should fail")
	}

	if err := VerifyContent("not-a-cid", payload); err == nil {
		t.Error("verification against an invalid hash should fail")
	}
}
