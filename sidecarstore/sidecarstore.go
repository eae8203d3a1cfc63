// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sidecarstore persists a swarm's hash-tree sidecar and binmap
// checkpoint in an embedded key-value store rather than flat files.
// Content bytes themselves stay out of scope and are read back through a
// caller-supplied ContentReader, so this package owns only the checkpoint
// index.
package sidecarstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
	"github.com/luxfi/swift/hashtree"
)

// ErrNotInitialized names the state before Init has recorded the swarm's
// shape. No method of Store returns it: before Init, Root and NumChunks
// return zero values.
var ErrNotInitialized = errors.New("sidecarstore: not initialized")

var (
	metaKey       = []byte("m")
	checkpointKey = []byte("c")
	hashPrefix    = byte('h')
)

// ContentReader reads back verified chunk bytes; satisfied by a transfer's
// content-file storage. Reading content is explicitly out of this
// package's scope.
type ContentReader interface {
	ReadChunk(b bin.Bin) ([]byte, error)
}

// Store is a pebble-backed implementation of hashtree.SidecarReader plus
// a write side (Init, WriteHash, WriteCheckpoint); a transfer calls Init
// on Open and WriteCheckpoint from Checkpoint.
type Store struct {
	db          *pebble.DB
	content     ContentReader
	root        hashtree.Hash
	chunkSize   uint32
	numChunks   uint64
	contentSize uint64
	init        bool
}

// Open opens (creating if absent) the pebble store at dir and loads any
// previously-recorded meta (root/chunk-size/chunk-count).
func Open(dir string, content ContentReader) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("sidecarstore: open %s: %w", dir, err)
	}
	s := &Store{db: db, content: content}
	if err := s.loadMeta(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying pebble store.
func (s *Store) Close() error { return s.db.Close() }

// Init records a freshly-opened swarm's root, chunk size, chunk count and
// exact content size (0 if not yet known, a growing/live swarm). A no-op if
// the store already holds meta for this swarm (root matches).
func (s *Store) Init(root hashtree.Hash, chunkSize uint32, numChunks uint64, contentSize uint64) error {
	if s.init && s.root == root {
		return nil
	}
	buf := make([]byte, 20+4+8+8)
	copy(buf[:20], root[:])
	binary.BigEndian.PutUint32(buf[20:24], chunkSize)
	binary.BigEndian.PutUint64(buf[24:32], numChunks)
	binary.BigEndian.PutUint64(buf[32:], contentSize)
	if err := s.db.Set(metaKey, buf, pebble.Sync); err != nil {
		return fmt.Errorf("sidecarstore: write meta: %w", err)
	}
	s.root, s.chunkSize, s.numChunks, s.contentSize, s.init = root, chunkSize, numChunks, contentSize, true
	return nil
}

func (s *Store) loadMeta() error {
	val, closer, err := s.db.Get(metaKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sidecarstore: read meta: %w", err)
	}
	defer closer.Close()
	if len(val) != 20+4+8+8 {
		return fmt.Errorf("sidecarstore: corrupt meta record (%d bytes)", len(val))
	}
	copy(s.root[:], val[:20])
	s.chunkSize = binary.BigEndian.Uint32(val[20:24])
	s.numChunks = binary.BigEndian.Uint64(val[24:32])
	s.contentSize = binary.BigEndian.Uint64(val[32:])
	s.init = true
	return nil
}

// Root returns the swarm's root hash (hashtree.SidecarReader).
func (s *Store) Root() hashtree.Hash { return s.root }

// NumChunks returns the swarm's chunk count (hashtree.SidecarReader).
func (s *Store) NumChunks() uint64 { return s.numChunks }

// ContentSize returns the swarm's exact byte length, or 0 if not yet known.
func (s *Store) ContentSize() uint64 { return s.contentSize }

// ReadChunk delegates to the content collaborator (hashtree.SidecarReader).
func (s *Store) ReadChunk(b bin.Bin) ([]byte, error) {
	return s.content.ReadChunk(b)
}

// ReadHash looks up a persisted interior or peak hash for b.
func (s *Store) ReadHash(b bin.Bin) (hashtree.Hash, bool) {
	val, closer, err := s.db.Get(hashKey(b))
	if err != nil {
		return hashtree.Hash{}, false
	}
	defer closer.Close()
	var h hashtree.Hash
	copy(h[:], val)
	return h, true
}

// WriteHash persists a single interior or peak hash for b. Unsynced: hash
// writes happen on every verified chunk and a fsync each time would be
// needlessly slow; durability for a crash mid-transfer is recovered by
// re-requesting the affected bins, not by this log being perfectly durable.
func (s *Store) WriteHash(b bin.Bin, h hashtree.Hash) error {
	if err := s.db.Set(hashKey(b), h[:], pebble.NoSync); err != nil {
		return fmt.Errorf("sidecarstore: write hash %s: %w", b, err)
	}
	return nil
}

// WriteCheckpoint persists bm's filled ranges as the swarm's checkpoint
// record, synced so a clean shutdown's checkpoint survives a crash.
func (s *Store) WriteCheckpoint(bm *binmap.Binmap) error {
	ranges := bm.FilledRanges()
	buf := make([]byte, 0, len(ranges)*9)
	for _, b := range ranges {
		buf = append(buf, encodeBin(b)...)
	}
	if err := s.db.Set(checkpointKey, buf, pebble.Sync); err != nil {
		return fmt.Errorf("sidecarstore: write checkpoint: %w", err)
	}
	return nil
}

// ReadCheckpoint rebuilds a Binmap from the last-written checkpoint, or an
// empty one if none was ever written.
func (s *Store) ReadCheckpoint() (*binmap.Binmap, error) {
	val, closer, err := s.db.Get(checkpointKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return binmap.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("sidecarstore: read checkpoint: %w", err)
	}
	defer closer.Close()
	if len(val)%9 != 0 {
		return nil, fmt.Errorf("sidecarstore: corrupt checkpoint record (%d bytes)", len(val))
	}
	ranges := make([]bin.Bin, 0, len(val)/9)
	for i := 0; i < len(val); i += 9 {
		ranges = append(ranges, decodeBin(val[i:i+9]))
	}
	return binmap.FromFilledRanges(ranges)
}

func hashKey(b bin.Bin) []byte {
	key := make([]byte, 1+9)
	key[0] = hashPrefix
	copy(key[1:], encodeBin(b))
	return key
}

func encodeBin(b bin.Bin) []byte {
	out := make([]byte, 9)
	out[0] = byte(b.Layer())
	binary.BigEndian.PutUint64(out[1:], b.BaseOffset())
	return out
}

func decodeBin(buf []byte) bin.Bin {
	layer := uint(buf[0])
	baseOffset := binary.BigEndian.Uint64(buf[1:])
	return bin.New(layer, baseOffset>>layer)
}
