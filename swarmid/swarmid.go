// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swarmid defines the swarm identifier: the root hash of a swarm's
// Merkle hash tree. It follows the same fixed-width-array idiom as
// github.com/luxfi/ids.ID (its hex string is computed on each String call,
// not cached), adapted to a 20-byte SHA-1 digest (the
// default content-integrity scheme's hash width) rather than ids.ID's
// 32 bytes, which is why this is its own small type instead of a reuse of
// ids.ID.
package swarmid

import (
	"encoding/hex"
	"errors"
)

// Len is the width in bytes of the default content-integrity scheme's hash
// (SHA-1), and therefore of a swarm ID.
const Len = 20

// ErrInvalidLength is returned by FromBytes/FromHex when the input isn't
// exactly Len bytes.
var ErrInvalidLength = errors.New("swarmid: invalid length")

// ID identifies a swarm by the root hash of its content.
type ID [Len]byte

// Empty is the zero ID, never a valid swarm root.
var Empty ID

// FromBytes copies b into an ID. b must be exactly Len bytes.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Len {
		return id, ErrInvalidLength
	}
	copy(id[:], b)
	return id, nil
}

// FromHex parses a hex-encoded swarm ID, as used for content-file and
// sidecar naming.
func FromHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Empty, err
	}
	return FromBytes(b)
}

// Bytes returns id's bytes as a fresh slice.
func (id ID) Bytes() []byte {
	b := make([]byte, Len)
	copy(b, id[:])
	return b
}

// IsEmpty reports whether id is the zero value.
func (id ID) IsEmpty() bool {
	return id == Empty
}

// String renders id as lowercase hex, suitable for a content-file name.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}
