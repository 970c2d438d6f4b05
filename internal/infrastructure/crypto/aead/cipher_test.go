package aead

import (
	"bytes"
	"testing"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)
	payloads := [][]byte{
		[]byte("This is a test document."),
		{},
		bytes.Repeat([]byte{0, 1, 2, 255}, 4096),
	}
	for _, p := range payloads {
		sealed, err := c.Encrypt(p, "key-1")
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if len(p) > 0 && bytes.Contains(sealed, p) {
			t.Fatalf("ciphertext contains plaintext")
		}
		opened, err := c.Decrypt(sealed, "key-1")
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(opened, p) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", len(opened), len(p))
		}
	}
}

func TestDecryptRejectsWrongKeyID(t *testing.T) {
	c := newTestCipher(t)
	sealed, err := c.Encrypt([]byte("privileged"), "key-a")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := c.Decrypt(sealed, "key-b"); err == nil {
		t.Fatalf("expected decrypt failure under a different key id")
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	c := newTestCipher(t)
	sealed, err := c.Encrypt([]byte("privileged"), "key-a")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := c.Decrypt(sealed, "key-a"); err == nil {
		t.Fatalf("expected authentication failure")
	}
	if _, err := c.Decrypt([]byte{1, 2, 3}, "key-a"); err != ErrCiphertextTooShort {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	c := newTestCipher(t)
	a, _ := c.Encrypt([]byte("same"), "k")
	b, _ := c.Encrypt([]byte("same"), "k")
	if bytes.Equal(a, b) {
		t.Fatalf("expected distinct ciphertexts for repeated encryption")
	}
}

func TestNewRejectsShortMasterKey(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Fatalf("expected error for short master key")
	}
}

func TestParseMasterKey(t *testing.T) {
	raw, err := ParseMasterKey("AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=")
	if err != nil {
		t.Fatalf("ParseMasterKey() error = %v", err)
	}
	if len(raw) != 32 || raw[31] != 31 {
		t.Fatalf("unexpected decoded key: %v", raw)
	}
	if _, err := ParseMasterKey("not a key!"); err == nil {
		t.Fatalf("expected error for invalid encoding")
	}
}

func TestHashIsHexSHA256(t *testing.T) {
	got := newTestCipher(t).Hash("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("Hash() = %s, want %s", got, want)
	}
}
