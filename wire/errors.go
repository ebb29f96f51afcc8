// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import "errors"

var (
	// ErrTruncated is returned when a buffer ends before a fixed or
	// varint-framed field can be fully read.
	ErrTruncated = errors.New("wire: truncated buffer")
	// ErrBadMagic is returned when an envelope's first two bytes are
	// not 0x45 0x56 ("EV").
	ErrBadMagic = errors.New("wire: bad magic bytes")
	// ErrUnsupportedVersion is returned by DecodeEnvelope for an
	// envelope version other than Version.
	ErrUnsupportedVersion = errors.New("wire: unsupported version")
	// ErrUnexpectedKind names an envelope whose kind byte does not
	// match the payload expected. This package does not return it:
	// DecodeEnvelope accepts any kind and callers compare Kind.
	ErrUnexpectedKind = errors.New("wire: unexpected envelope kind")
)
