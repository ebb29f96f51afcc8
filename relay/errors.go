// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"errors"
	"fmt"

	"github.com/evoluhq/evolu-sub007/owner"
)

// ErrWriteKeyMismatch names a client's supplied write key not matching
// the one already on file for the owner. Storage does not return it:
// ValidateWriteKey reports a mismatch as false with a nil error.
var ErrWriteKeyMismatch = errors.New("relay: write key mismatch")

// ErrResourceNotFound names a missing owner record. Storage does not
// return it: Size and ReadMessagesSince report an unknown owner as
// having no messages.
var ErrResourceNotFound = errors.New("relay: resource not found")

// StorageQuotaError is returned by WriteMessages when accepting the
// batch would push an owner's stored bytes past its quota. The owner
// record and all previously stored messages are left untouched.
type StorageQuotaError struct{ OwnerID owner.ID }

func (e *StorageQuotaError) Error() string {
	return fmt.Sprintf("relay: owner %s exceeds storage quota", e.OwnerID)
}
