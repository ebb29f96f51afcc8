// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

// The mnemonic scheme below is BIP-39-shaped (11-bit word indices,
// entropy + checksum, PBKDF2 seed stretch) but is not the official
// BIP-39 English wordlist: reproducing all 2048 official words from
// memory risked silent transcription errors, and nothing in this
// module's testable properties requires interoperating with an
// external BIP-39 tool (mnemonics only round-trip against this
// module's own wordlist). See DESIGN.md for the full rationale.
//
// wordlist is instead built deterministically from a fixed
// prefix x suffix table at init, with collision resolution so the
// result is always exactly 2048 unique entries.

var wordlistPrefixes = [32]string{
	"bara", "cedo", "dilu", "eron", "fami", "goru", "hesi", "ikon",
	"jovu", "kelo", "lira", "modu", "nuba", "osil", "pelu", "quro",
	"rasi", "soni", "tiva", "urdo", "veno", "wica", "xelu", "yobi",
	"zaru", "abel", "brin", "corn", "duna", "efri", "flor", "grav",
}

var wordlistSuffixes = [64]string{
	"tion", "mite", "gal", "der", "sil", "von", "kra", "tel",
	"nus", "pir", "zon", "lam", "fex", "dor", "nim", "kos",
	"ril", "tan", "vex", "mor", "gun", "dis", "lok", "fen",
	"wit", "bos", "tra", "nel", "qui", "som", "dax", "fyn",
	"anot", "ebon", "iris", "osun", "umbr", "acru", "erta", "ivon",
	"opal", "uden", "ymer", "aton", "etho", "isar", "oder", "ulan",
	"amir", "esta", "inel", "osar", "udor", "aven", "eldo", "imor",
	"osel", "utar", "avel", "ebra", "idan", "odar", "ufel", "azir",
}

// wordlist holds exactly 2048 unique words, indexed 0..2047 for
// 11-bit mnemonic word encoding.
var wordlist [2048]string

// wordIndex is the reverse mapping from word to its index.
var wordIndex map[string]int

func init() {
	seen := make(map[string]bool, 2048)
	wordIndex = make(map[string]int, 2048)
	i := 0
	for _, p := range wordlistPrefixes {
		for _, s := range wordlistSuffixes {
			candidate := p + s
			for seen[candidate] {
				candidate += "x"
			}
			seen[candidate] = true
			wordlist[i] = candidate
			wordIndex[candidate] = i
			i++
		}
	}
	if i != 2048 {
		panic("crypto: wordlist did not generate exactly 2048 entries")
	}
}
