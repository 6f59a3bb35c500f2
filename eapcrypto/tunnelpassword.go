// Package eapcrypto implements the cryptographic primitives the EAP
// dispatch layer needs beyond plain packet framing: the RFC 2868
// tunnel-password salted encryption used to rewrap a proxied LEAP
// session key, and TLS exported-keying-material derivation of MPPE keys
// for tunnelled methods. Grounded on the salted-attribute encrypt1/decrypt1
// construction in core/radius_AVP.go, generalised out of the AVP codec so
// it can be reused for the Cisco-AVPair leap:session-key= rewrap.
package eapcrypto

import (
	"crypto/md5"
	"crypto/rand"
	"fmt"
)

// encryptSalted implements the RFC 2868 §3.5 / draft-ietf-radius-saltencrypt
// salted encryption chain: each 16-octet block is XORed with
// MD5(secret + authenticator|salt-or-previous-block).
func encryptSalted(payload []byte, authenticator [16]byte, secret string, salt []byte) []byte {
	upLen := len(payload)
	pLen := upLen
	if upLen%16 != 0 {
		pLen = upLen + (16 - upLen%16)
	}

	var out, b, c []byte
	for i := 0; i < pLen; i += 16 {
		hasher := md5.New()
		hasher.Write([]byte(secret))
		if b == nil {
			hasher.Write(authenticator[:])
			hasher.Write(salt)
		} else {
			hasher.Write(c)
		}
		b = hasher.Sum(nil)

		c = make([]byte, 16)
		for j := 0; j < 16; j++ {
			if i+j < upLen {
				c[j] = b[j] ^ payload[i+j]
			} else {
				c[j] = b[j]
			}
		}
		out = append(out, c...)
	}
	return out
}

func decryptSalted(payload []byte, authenticator [16]byte, secret string, salt []byte) []byte {
	upLen := len(payload)
	pLen := upLen
	if upLen%16 != 0 {
		pLen = upLen + (16 - upLen%16)
	}

	out := make([]byte, pLen)
	for i := pLen - 16; i >= 0; i -= 16 {
		hasher := md5.New()
		hasher.Write([]byte(secret))
		if i == 0 {
			hasher.Write(authenticator[:])
			hasher.Write(salt)
		} else {
			hasher.Write(payload[i-16 : i])
		}
		b := hasher.Sum(nil)
		for j := 0; j < 16; j++ {
			if i+j < upLen {
				out[i+j] = b[j] ^ payload[i+j]
			}
		}
	}
	return out[:upLen]
}

// RewrapLeapSessionKey decodes the value half of a Cisco-AVPair
// "leap:session-key=<value>" received from the home server (salted under
// homeSecret/proxyAuth) and re-encodes its 16-octet plaintext key under the
// client-facing clientSecret/origAuth, producing the value half to forward
// to the NAS. value excludes the "leap:session-key=" name prefix (callers
// go through Cisco-AVPair accessors that already split on the first "=");
// combined with the 17-byte prefix the full attribute is 51 bytes. The wire
// layout of value is a 2-octet salt followed by a 32-octet encrypted blob
// ([1-octet length][16-octet key], padded to 32).
func RewrapLeapSessionKey(value string, homeSecret string, proxyAuth [16]byte, clientSecret string, origAuth [16]byte) (string, error) {
	if len(value) != 2+32 {
		return "", fmt.Errorf("leap:session-key= value has unexpected length %d", len(value))
	}
	rest := []byte(value)
	salt := rest[:2]
	cipher := rest[2:]

	plain := decryptSalted(cipher, proxyAuth, homeSecret, salt)
	keyLen := int(plain[0])
	if keyLen != 16 || len(plain) < 1+keyLen {
		return "", fmt.Errorf("decoded leap:session-key= plaintext length %d, want 16", keyLen)
	}
	key := plain[1 : 1+keyLen]

	newSalt := make([]byte, 2)
	if _, err := rand.Read(newSalt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	newSalt[0] |= 0x80 // high bit set, per RFC 2868 §3.5

	newPlain := append([]byte{byte(keyLen)}, key...)
	newCipher := encryptSalted(newPlain, origAuth, clientSecret, newSalt)

	return string(newSalt) + string(newCipher), nil
}
