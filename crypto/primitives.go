// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crypto provides the cryptographic primitives the rest of
// the sync core is built on: a CSPRNG, HMAC-SHA-512 (the basis of
// SLIP-21 key derivation), XChaCha20-Poly1305 AEAD sealing, PADMÉ
// length padding, a timing-safe comparison, and a BIP-39-shaped
// mnemonic scheme.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: random bytes: %w", err)
	}
	return b, nil
}

// HMACSHA512 returns HMAC-SHA-512(key, msg).
func HMACSHA512(key, msg []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

// TimingSafeEqual reports whether a and b are equal, in time
// independent of where they first differ.
func TimingSafeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
