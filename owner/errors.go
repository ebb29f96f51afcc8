// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package owner

import "errors"

// ErrCannotDerive is returned when DeriveShardOwner is called on an
// owner with no derivation secret (e.g. a SharedReadonlyOwner).
var ErrCannotDerive = errors.New("owner: cannot derive a child from an owner with no secret")
