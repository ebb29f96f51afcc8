// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import "math/bits"

// PadmePaddedLength rounds n up per the PADMÉ scheme: e = floor(log2
// n); s = floor(log2 e); mask = (1<<(e-s))-1; result = (n+mask) &^
// mask. This bounds the number of distinct ciphertext lengths an
// observer can see to O(log log n) per message size, without the
// near-2x blowup of padding to the next power of two.
func PadmePaddedLength(n int) int {
	if n <= 1 {
		return n
	}
	e := bits.Len(uint(n)) - 1
	s := bits.Len(uint(e)) - 1
	mask := (1 << uint(e-s)) - 1
	return (n + mask) &^ mask
}

// PadPlaintext appends zero bytes to plaintext until its length
// equals PadmePaddedLength(len(plaintext)), and prepends a 4-byte
// big-endian length prefix recording the true length so UnpadPlaintext
// can recover it. The result is always exactly
// 4+PadmePaddedLength(len(plaintext)) bytes.
func PadPlaintext(plaintext []byte) []byte {
	padded := PadmePaddedLength(len(plaintext))
	out := make([]byte, 4+padded)
	out[0] = byte(len(plaintext) >> 24)
	out[1] = byte(len(plaintext) >> 16)
	out[2] = byte(len(plaintext) >> 8)
	out[3] = byte(len(plaintext))
	copy(out[4:], plaintext)
	return out
}

// UnpadPlaintext reverses PadPlaintext, returning ErrMalformedPadding
// if padded is too short or its recorded length is inconsistent with
// its actual size.
func UnpadPlaintext(padded []byte) ([]byte, error) {
	if len(padded) < 4 {
		return nil, ErrMalformedPadding
	}
	n := int(padded[0])<<24 | int(padded[1])<<16 | int(padded[2])<<8 | int(padded[3])
	if n < 0 || 4+n > len(padded) {
		return nil, ErrMalformedPadding
	}
	out := make([]byte, n)
	copy(out, padded[4:4+n])
	return out, nil
}
