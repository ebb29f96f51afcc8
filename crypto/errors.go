// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import "errors"

var (
	// ErrDecryptFailed is returned when an AEAD open fails
	// authentication; it never distinguishes a bad key from a
	// corrupted ciphertext.
	ErrDecryptFailed = errors.New("crypto: decryption failed")

	// ErrMalformedPadding is returned when PADMÉ-padded plaintext is
	// too short or its embedded length is inconsistent.
	ErrMalformedPadding = errors.New("crypto: malformed padding")

	// ErrInvalidMnemonic is returned when a mnemonic fails wordlist
	// lookup or checksum verification.
	ErrInvalidMnemonic = errors.New("crypto: invalid mnemonic")
)
