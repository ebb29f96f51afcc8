// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealXChaCha20Poly1305 encrypts plaintext with a fresh random 24-byte
// nonce under key (must be 32 bytes), returning the nonce and the
// ciphertext separately so callers can frame them per the wire layout
// in package wire.
func SealXChaCha20Poly1305(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: new xchacha20poly1305: %w", err)
	}
	nonce, err = RandomBytes(aead.NonceSize())
	if err != nil {
		return nil, nil, err
	}
	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// OpenXChaCha20Poly1305 decrypts ciphertext under key and nonce,
// returning ErrDecryptFailed on any authentication failure.
func OpenXChaCha20Poly1305(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new xchacha20poly1305: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// SealAndFrame pads plaintext with PadmePaddedLength, encrypts it, and
// returns nonce||ciphertext as a single buffer, the form a
// CrdtMessage's ciphertext takes once it leaves the local store (spec
// §4.6 step 2: "plaintext is padded ... before encryption to mask
// message size").
func SealAndFrame(key, plaintext []byte) ([]byte, error) {
	nonce, ciphertext, err := SealXChaCha20Poly1305(key, PadPlaintext(plaintext))
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// OpenFramed is the inverse of SealAndFrame.
func OpenFramed(key, framed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new xchacha20poly1305: %w", err)
	}
	nonceSize := aead.NonceSize()
	if len(framed) < nonceSize {
		return nil, ErrDecryptFailed
	}
	padded, err := OpenXChaCha20Poly1305(key, framed[:nonceSize], framed[nonceSize:])
	if err != nil {
		return nil, err
	}
	return UnpadPlaintext(padded)
}
