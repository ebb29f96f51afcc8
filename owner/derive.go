// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package owner

import (
	"github.com/evoluhq/evolu-sub007/crypto"
)

var (
	ownerIDPath        = []string{"Evolu", "Owner Id"}
	encryptionKeyPath  = []string{"Evolu", "Encryption Key"}
	writeKeyPath       = []string{"Evolu", "Write Key"}
)

// NewAppOwner creates the top-level AppOwner from a fresh or
// restored 32-byte secret, deriving its id, encryption key, and write
// key along the three fixed SLIP-21 paths of spec §4.2.
func NewAppOwner(secret Secret) (Owner, error) {
	return deriveLeafOwner(KindApp, secret[:], secret)
}

// NewAppOwnerFromMnemonic restores an AppOwner from its recovery
// mnemonic, the host-facing restoreAppOwner operation of spec §6.
func NewAppOwnerFromMnemonic(mnemonic string) (Owner, error) {
	secret, err := crypto.MnemonicToSecret(mnemonic)
	if err != nil {
		return Owner{}, err
	}
	o, err := NewAppOwner(Secret(secret))
	if err != nil {
		return Owner{}, err
	}
	o.mnemonic = mnemonic
	return o, nil
}

// GenerateAppOwner creates a brand-new AppOwner from fresh entropy,
// the host-facing createEvolu default-owner path.
func GenerateAppOwner() (Owner, error) {
	b, err := crypto.RandomBytes(32)
	if err != nil {
		return Owner{}, err
	}
	var secret Secret
	copy(secret[:], b)

	o, err := NewAppOwner(secret)
	if err != nil {
		return Owner{}, err
	}
	mnemonic, err := crypto.SecretToMnemonic([32]byte(secret))
	if err != nil {
		return Owner{}, err
	}
	o.mnemonic = mnemonic
	return o, nil
}

// DeriveShardOwner derives a ShardOwner from a parent owner capable
// of deriving children (an AppOwner or another ShardOwner), at the
// SLIP-21 path ["Evolu","Shard", path...]. It returns ErrCannotDerive
// if parent carries no secret (e.g. a SharedReadonlyOwner).
func DeriveShardOwner(parent Owner, path []string) (Owner, error) {
	parentSecret, ok := parent.Secret()
	if !ok {
		return Owner{}, ErrCannotDerive
	}
	fullPath := append([]string{"Evolu", "Shard"}, path...)
	leaf := crypto.SLIP21(parentSecret[:], fullPath)
	var childSecret Secret
	copy(childSecret[:], leaf)
	return deriveLeafOwner(KindShard, leaf, childSecret)
}

// NewSharedOwner creates a SharedOwner from a 32-byte secret obtained
// out-of-band (e.g. shared by another device). It carries the same
// key set as an AppOwner but is never the local app's own owner.
func NewSharedOwner(secret Secret) (Owner, error) {
	return deriveLeafOwner(KindShared, secret[:], secret)
}

// deriveLeafOwner derives {id, encryptionKey, writeKey} from seed via
// the three fixed SLIP-21 paths, and stores childSecret on the result
// so it can itself parent further shard derivations.
func deriveLeafOwner(kind Kind, seed []byte, childSecret Secret) (Owner, error) {
	idLeaf := crypto.SLIP21(seed, ownerIDPath)
	encKey := crypto.SLIP21(seed, encryptionKeyPath)
	wkLeaf := crypto.SLIP21(seed, writeKeyPath)

	s := childSecret
	return Owner{
		kind:          kind,
		id:            idFromSLIP21Leaf(idLeaf),
		writeKey:      append([]byte(nil), wkLeaf[:16]...),
		encryptionKey: append([]byte(nil), encKey...),
		secret:        &s,
	}, nil
}
