// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"context"

	"github.com/evoluhq/evolu-sub007/owner"
)

// QuotaPolicy decides whether an owner may store `required` total
// bytes. Storage calls it inside the write_messages transaction so a
// host can swap in a billing-aware policy without the core depending
// on a billing system.
type QuotaPolicy interface {
	IsOwnerWithinQuota(ctx context.Context, ownerID owner.ID, required uint64) (bool, error)
}

// FixedQuota is the default QuotaPolicy: every owner shares the same
// byte ceiling, per config.Relay.DefaultQuotaBytes.
type FixedQuota struct{ LimitBytes uint64 }

func (q FixedQuota) IsOwnerWithinQuota(ctx context.Context, ownerID owner.ID, required uint64) (bool, error) {
	return required <= q.LimitBytes, nil
}
