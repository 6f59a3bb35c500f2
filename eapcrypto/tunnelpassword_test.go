package eapcrypto

import (
	"testing"
)

func TestRewrapLeapSessionKeyRoundTrip(t *testing.T) {
	homeSecret := "homesecret"
	clientSecret := "clientsecret"
	proxyAuth := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	origAuth := [16]byte{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}

	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	salt := []byte{0x81, 0x02}
	plain := append([]byte{16}, key...)
	cipher := encryptSalted(plain, proxyAuth, homeSecret, salt)

	value := string(salt) + string(cipher)
	if len(value) != 2+32 {
		t.Fatalf("test fixture has unexpected length %d", len(value))
	}

	rewrapped, err := RewrapLeapSessionKey(value, homeSecret, proxyAuth, clientSecret, origAuth)
	if err != nil {
		t.Fatalf("RewrapLeapSessionKey: %v", err)
	}
	if len(rewrapped) != 2+32 {
		t.Fatalf("rewrapped value has unexpected length %d", len(rewrapped))
	}

	rest := []byte(rewrapped)
	newSalt := rest[:2]
	newCipher := rest[2:]
	decoded := decryptSalted(newCipher, origAuth, clientSecret, newSalt)
	if decoded[0] != 16 {
		t.Fatalf("expected decoded length byte 16, got %d", decoded[0])
	}
	for i, b := range decoded[1:17] {
		if b != key[i] {
			t.Fatalf("key mismatch at %d: got %x want %x", i, b, key[i])
		}
	}
}

func TestRewrapLeapSessionKeyRejectsBadLength(t *testing.T) {
	_, err := RewrapLeapSessionKey("short", "s", [16]byte{}, "s", [16]byte{})
	if err == nil {
		t.Fatal("expected error for malformed value")
	}
}
