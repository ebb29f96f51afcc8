// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

// slip21Prefix is the SLIP-21 domain separator for the initial master
// node: m = HMAC-SHA-512("Symmetric key seed", seed).
const slip21Prefix = "Symmetric key seed"

// SLIP21 derives a 32-byte symmetric key at the given path from seed,
// per SLIP-21: the master node is HMAC-SHA-512("Symmetric key seed",
// seed); each path component c re-derives m = HMAC-SHA-512(m[:32],
// 0x00 || utf8(c)); the output is the final node's m[32:64].
func SLIP21(seed []byte, path []string) []byte {
	m := HMACSHA512([]byte(slip21Prefix), seed)
	for _, c := range path {
		data := make([]byte, 0, 1+len(c))
		data = append(data, 0x00)
		data = append(data, []byte(c)...)
		m = HMACSHA512(m[:32], data)
	}
	out := make([]byte, 32)
	copy(out, m[32:64])
	return out
}
